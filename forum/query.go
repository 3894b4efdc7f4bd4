package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/cppla/farmqa/models"
)

// List keys embed the generation, which every invalidation bumps, so a page
// computed before a write can never be served after it.
const (
	listCachePrefix   = "cache:posts:list:"
	listGenerationKey = "cache:posts:gen"
)

// SortOrder names a post list ordering.
type SortOrder string

const (
	SortNewest       SortOrder = "newest"
	SortOldest       SortOrder = "oldest"
	SortMostVoted    SortOrder = "most-voted"
	SortMostAnswered SortOrder = "most-answered"
	SortMostViewed   SortOrder = "most-viewed"
)

// Every order ends on a unique column so equal keys never swap between calls.
var sortClauses = map[SortOrder]string{
	SortNewest:       "created_at DESC, id DESC",
	SortOldest:       "created_at ASC, id ASC",
	SortMostVoted:    "score DESC, created_at DESC, id DESC",
	SortMostAnswered: "answer_count DESC, created_at DESC, id DESC",
	SortMostViewed:   "view_count DESC, created_at DESC, id DESC",
}

// ParseSort maps a client value to a SortOrder; empty means newest.
func ParseSort(raw string) (SortOrder, error) {
	s := SortOrder(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return SortNewest, nil
	}
	if _, ok := sortClauses[s]; !ok {
		return "", invalid("unknown sort %q", raw)
	}
	return s, nil
}

// PostQuery filters, orders and pages the post list. Filters combine with AND.
type PostQuery struct {
	Category string
	Search   string
	Tag      string
	Resolved *bool
	AuthorID uint
	Sort     SortOrder
	Page     int
	PageSize int
}

// PostSummary is the list representation of a post.
type PostSummary struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Excerpt        string    `json:"excerpt"`
	Category       string    `json:"category"`
	CategoryLabel  string    `json:"category_label"`
	CategoryIcon   string    `json:"category_icon"`
	Tags           []string  `json:"tags"`
	NetScore       int64     `json:"net_score"`
	AnswerCount    int64     `json:"answer_count"`
	ViewCount      int64     `json:"view_count"`
	IsResolved     bool      `json:"is_resolved"`
	IsLocked       bool      `json:"is_locked"`
	AuthorName     string    `json:"author_name"`
	AuthorRole     string    `json:"author_role"`
	AuthorLocation string    `json:"author_location"`
	CreatedAt      time.Time `json:"created_at"`
}

// PostPage is one page of the post list. Page is the clamped page actually served.
type PostPage struct {
	Items      []PostSummary `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	PageCount  int           `json:"page_count"`
	TotalCount int64         `json:"total_count"`
}

// QueryEngine serves the read-only post list.
type QueryEngine struct {
	db              *gorm.DB
	taxonomy        *Taxonomy
	cache           Cache
	cacheTTL        time.Duration
	excerptLength   int
	defaultPageSize int
	maxPageSize     int
	logger          *zap.Logger
	group           singleflight.Group
}

// Query runs a post list query. Out-of-range pages are clamped, never rejected.
func (q *QueryEngine) Query(ctx context.Context, in PostQuery) (PostPage, error) {
	sort, err := ParseSort(string(in.Sort))
	if err != nil {
		return PostPage{}, err
	}
	in.Sort = sort
	in.Search = strings.TrimSpace(in.Search)
	in.Category = strings.TrimSpace(in.Category)
	in.Tag = strings.ToLower(strings.TrimSpace(in.Tag))
	in.PageSize = clampPageSize(in.PageSize, q.defaultPageSize, q.maxPageSize)
	if in.Page < 1 {
		in.Page = 1
	}

	// Free-text queries are not cached to avoid key explosion.
	if in.Search != "" {
		return q.load(ctx, in)
	}
	key := listCacheKey(in, q.generation(ctx))
	if b, ok := q.cache.GetBytes(ctx, key); ok {
		var page PostPage
		decodeErr := json.Unmarshal(b, &page)
		if decodeErr == nil {
			return page, nil
		}
		q.logger.Warn("discarding unreadable list cache entry", zap.String("key", key), zap.Error(decodeErr))
	}
	// The shared load must not fail every waiter when the first caller goes away.
	shared := context.WithoutCancel(ctx)
	v, err, _ := q.group.Do(key, func() (interface{}, error) {
		page, err := q.load(shared, in)
		if err != nil {
			return nil, err
		}
		q.cache.SetJSON(shared, key, page, q.cacheTTL)
		return page, nil
	})
	if err != nil {
		return PostPage{}, err
	}
	return v.(PostPage), nil
}

func (q *QueryEngine) load(ctx context.Context, in PostQuery) (PostPage, error) {
	base := q.filtered(q.db.WithContext(ctx).Model(&models.Post{}), in)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return PostPage{}, fmt.Errorf("count posts: %w", err)
	}
	page, pageCount := clampPage(in.Page, in.PageSize, total)

	var posts []models.Post
	if err := base.Session(&gorm.Session{}).
		Order(sortClauses[in.Sort]).
		Offset((page - 1) * in.PageSize).
		Limit(in.PageSize).
		Find(&posts).Error; err != nil {
		return PostPage{}, fmt.Errorf("list posts: %w", err)
	}

	items := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		items = append(items, q.summarize(p))
	}
	return PostPage{
		Items:      items,
		Page:       page,
		PageSize:   in.PageSize,
		PageCount:  pageCount,
		TotalCount: total,
	}, nil
}

func (q *QueryEngine) filtered(tx *gorm.DB, in PostQuery) *gorm.DB {
	if in.Category != "" {
		tx = tx.Where("category_id = ?", in.Category)
	}
	if in.Search != "" {
		// search_text is folded in Go, so non-ASCII case matches on every driver.
		tx = tx.Where(`search_text LIKE ? ESCAPE '!'`, "%"+escapeLike(strings.ToLower(in.Search))+"%")
	}
	if in.Tag != "" {
		quoted, _ := json.Marshal(in.Tag)
		tx = tx.Where(`tags LIKE ? ESCAPE '!'`, "%"+escapeLike(string(quoted))+"%")
	}
	if in.Resolved != nil {
		tx = tx.Where("is_resolved = ?", *in.Resolved)
	}
	if in.AuthorID != 0 {
		tx = tx.Where("author_id = ?", in.AuthorID)
	}
	return tx
}

func (q *QueryEngine) summarize(p models.Post) PostSummary {
	label, icon := p.CategoryID, ""
	if c, err := q.taxonomy.Resolve(p.CategoryID); err == nil {
		label, icon = c.Label, c.Icon
	}
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	return PostSummary{
		ID:             p.ID,
		Title:          p.Title,
		Excerpt:        Excerpt(p.Body, q.excerptLength),
		Category:       p.CategoryID,
		CategoryLabel:  label,
		CategoryIcon:   icon,
		Tags:           tags,
		NetScore:       p.Score,
		AnswerCount:    p.AnswerCount,
		ViewCount:      p.ViewCount,
		IsResolved:     p.IsResolved,
		IsLocked:       p.IsLocked,
		AuthorName:     p.AuthorName,
		AuthorRole:     p.AuthorRole,
		AuthorLocation: p.AuthorLocation,
		CreatedAt:      p.CreatedAt,
	}
}

// generation reads the current list generation; a missing counter is 0.
func (q *QueryEngine) generation(ctx context.Context) int64 {
	b, ok := q.cache.GetBytes(ctx, listGenerationKey)
	if !ok {
		return 0
	}
	gen, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

// invalidate moves readers to a new generation and drops the old pages.
func (q *QueryEngine) invalidate(ctx context.Context) {
	if _, ok := q.cache.Incr(ctx, listGenerationKey); !ok {
		q.logger.Debug("list cache generation not bumped")
	}
	q.cache.InvalidatePrefix(ctx, listCachePrefix)
}

func listCacheKey(in PostQuery, gen int64) string {
	resolved := "any"
	if in.Resolved != nil {
		resolved = fmt.Sprint(*in.Resolved)
	}
	return fmt.Sprintf("%sgen=%d:cat=%s:tag=%s:resolved=%s:author=%d:sort=%s:page=%d:size=%d",
		listCachePrefix, gen, in.Category, in.Tag, resolved, in.AuthorID, in.Sort, in.Page, in.PageSize)
}

func clampPageSize(size, def, max int) int {
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	if size < 1 {
		size = 1
	}
	return size
}

// clampPage returns the page to serve and the page count for total rows.
func clampPage(page, pageSize int, total int64) (int, int) {
	pageCount := int((total + int64(pageSize) - 1) / int64(pageSize))
	if page > pageCount {
		page = pageCount
	}
	if page < 1 {
		page = 1
	}
	return page, pageCount
}

// Excerpt truncates body to n runes and marks the cut with "...".
func Excerpt(body string, n int) string {
	if n <= 0 || utf8.RuneCountInString(body) <= n {
		return body
	}
	runes := []rune(body)
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// escapeLike quotes LIKE wildcards using '!' as the escape character,
// which behaves the same on MySQL and SQLite.
func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}
