package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/farmqa/models"
)

const categoryCacheTTL = 24 * time.Hour

// CategorySource is the backing store of the taxonomy.
type CategorySource interface {
	LoadCategories(ctx context.Context) ([]models.Category, error)
}

// Taxonomy is the immutable, ordered set of categories known to the process.
type Taxonomy struct {
	ordered []models.Category
	byID    map[string]models.Category
}

// NewTaxonomy builds a registry from categories in display order.
func NewTaxonomy(categories []models.Category) *Taxonomy {
	t := &Taxonomy{
		ordered: make([]models.Category, len(categories)),
		byID:    make(map[string]models.Category, len(categories)),
	}
	copy(t.ordered, categories)
	for _, c := range categories {
		t.byID[c.ID] = c
	}
	return t
}

// LoadTaxonomy reads the categories through the cache, keyed by deployment version.
// A new version is the only thing that invalidates the cached copy.
func LoadTaxonomy(ctx context.Context, src CategorySource, cache Cache, version string, logger *zap.Logger) (*Taxonomy, error) {
	if cache == nil {
		cache = noCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	key := "cache:categories:" + version
	if b, ok := cache.GetBytes(ctx, key); ok {
		var cached []models.Category
		if err := json.Unmarshal(b, &cached); err == nil && len(cached) > 0 {
			logger.Debug("taxonomy loaded from cache", zap.String("key", key), zap.Int("count", len(cached)))
			return NewTaxonomy(cached), nil
		}
		logger.Warn("taxonomy cache entry unreadable, reloading", zap.String("key", key))
	}
	categories, err := src.LoadCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("load categories: taxonomy is empty")
	}
	cache.SetJSON(ctx, key, categories, categoryCacheTTL)
	logger.Info("taxonomy loaded", zap.String("version", version), zap.Int("count", len(categories)))
	return NewTaxonomy(categories), nil
}

// List returns the categories in display order.
func (t *Taxonomy) List() []models.Category {
	out := make([]models.Category, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Resolve looks a category up by id.
func (t *Taxonomy) Resolve(id string) (models.Category, error) {
	c, ok := t.byID[id]
	if !ok {
		return models.Category{}, notFound(fmt.Sprintf("category %q", id))
	}
	return c, nil
}

// DBCategorySource reads the taxonomy from the categories table.
type DBCategorySource struct {
	DB *gorm.DB
}

// LoadCategories implements CategorySource.
func (s DBCategorySource) LoadCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	if err := s.DB.WithContext(ctx).Order("position ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SeedCategories upserts the configured taxonomy, keeping the given order.
func SeedCategories(ctx context.Context, db *gorm.DB, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	rows := make([]models.Category, len(categories))
	for i, c := range categories {
		c.Position = i
		rows[i] = c
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "icon", "description", "position"}),
	}).Create(&rows).Error
}
