package forum

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/farmqa/config"
	"github.com/cppla/farmqa/models"
)

var (
	farmer     = Identity{UserID: 1, Name: "Ravi Kumar", Role: "farmer", Location: "Punjab"}
	neighbour  = Identity{UserID: 2, Name: "Meena Devi", Role: "farmer", Location: "Haryana"}
	agronomist = Identity{UserID: 3, Name: "Dr. Singh", Role: "expert", Location: "Ludhiana"}
	moderator  = Identity{UserID: 9, Name: "mod", Role: "moderator", Privileged: true}
	anonymous  = Identity{}
)

var testCategories = []models.Category{
	{ID: "pest-control", Label: "Pest Control", Icon: "🐛"},
	{ID: "soil-health", Label: "Soil Health", Icon: "🪱"},
	{ID: "irrigation", Label: "Irrigation", Icon: "💧"},
}

// fakeClock advances one second on every reading so creation order is strict.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.InitDatabase(config.AppConfig{DBDriver: "sqlite", DBPath: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = config.CloseDatabase(db) })
	require.NoError(t, SeedCategories(context.Background(), db, testCategories))
	return db
}

func newTestService(t *testing.T, opts Options) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	taxonomy, err := LoadTaxonomy(context.Background(), DBCategorySource{DB: db}, opts.Cache, "test", nil)
	require.NoError(t, err)
	if opts.Now == nil {
		opts.Now = newFakeClock().Now
	}
	return NewService(db, taxonomy, opts), db
}

func samplePost(title string) NewPost {
	return NewPost{
		Title:    title,
		Body:     "Leaves are curling and there are small insects underneath them.",
		Category: "pest-control",
	}
}

func mustCreatePost(t *testing.T, svc *Service, in NewPost, author Identity) models.Post {
	t.Helper()
	post, err := svc.CreatePost(context.Background(), in, author)
	require.NoError(t, err)
	return post
}

func mustAnswer(t *testing.T, svc *Service, postID uint, body string, author Identity) models.Answer {
	t.Helper()
	answer, err := svc.AddAnswer(context.Background(), postID, body, author)
	require.NoError(t, err)
	return answer
}

func mustVote(t *testing.T, svc *Service, itemType string, id uint, direction string, voter Identity) VoteResult {
	t.Helper()
	res, err := svc.CastVote(context.Background(), itemType, id, direction, voter)
	require.NoError(t, err)
	return res
}

func answerIDs(answers []models.Answer) []uint {
	ids := make([]uint, len(answers))
	for i, a := range answers {
		ids[i] = a.ID
	}
	return ids
}

func summaryIDs(items []PostSummary) []uint {
	ids := make([]uint, len(items))
	for i, s := range items {
		ids[i] = s.ID
	}
	return ids
}

func voterIdentity(id uint) Identity {
	return Identity{UserID: id, Name: "voter", Role: "farmer"}
}

func longText(n int) string {
	return strings.Repeat("a", n)
}
