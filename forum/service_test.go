package forum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/farmqa/models"
)

func TestCreatePost(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	post, err := svc.CreatePost(context.Background(), NewPost{
		Title:    "How to control aphids on cotton",
		Body:     "I have noticed small insects on the underside of my cotton leaves.",
		Category: "pest-control",
		Tags:     []string{"Cotton", " pests "},
	}, farmer)
	require.NoError(t, err)

	assert.NotZero(t, post.ID)
	assert.False(t, post.IsResolved)
	assert.False(t, post.IsLocked)
	assert.Nil(t, post.BestAnswerID)
	assert.Zero(t, post.Score)
	assert.Zero(t, post.AnswerCount)
	assert.Equal(t, models.TagList{"cotton", "pests"}, post.Tags)
	assert.Equal(t, "Ravi Kumar", post.AuthorName)
	assert.Equal(t, "Punjab", post.AuthorLocation)
	assert.Equal(t, StateOpen, StateOf(post))
}

func TestCreatePostValidation(t *testing.T) {
	svc, _ := newTestService(t, Options{MaxTags: 2})
	ctx := context.Background()

	cases := []struct {
		name string
		in   NewPost
	}{
		{"short title", NewPost{Title: "Aphids?", Body: samplePost("").Body, Category: "pest-control"}},
		{"long title", NewPost{Title: longText(201), Body: samplePost("").Body, Category: "pest-control"}},
		{"short body", NewPost{Title: "Yellow leaves on wheat", Body: "help please", Category: "soil-health"}},
		{"unknown category", NewPost{Title: "Yellow leaves on wheat", Body: samplePost("").Body, Category: "astrology"}},
		{"duplicate tags", NewPost{Title: "Yellow leaves on wheat", Body: samplePost("").Body, Category: "soil-health", Tags: []string{"wheat", "WHEAT"}}},
		{"empty tag", NewPost{Title: "Yellow leaves on wheat", Body: samplePost("").Body, Category: "soil-health", Tags: []string{" "}}},
		{"too many tags", NewPost{Title: "Yellow leaves on wheat", Body: samplePost("").Body, Category: "soil-health", Tags: []string{"a", "b", "c"}}},
		{"markup only title", NewPost{Title: "<script>alert(1)</script>", Body: samplePost("").Body, Category: "soil-health"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tc.in, farmer)
			require.ErrorIs(t, err, ErrValidation)
			assert.NotEmpty(t, Reason(err))
		})
	}

	_, err := svc.CreatePost(ctx, samplePost("Whitefly on tomato plants"), anonymous)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PostCount)
}

func TestCreatePostSanitizesMarkup(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	in := samplePost("Whitefly on tomato <b>plants</b>")
	in.Body = "Sticky leaves everywhere <script>alert(1)</script> what should I spray?"
	post := mustCreatePost(t, svc, in, farmer)

	assert.Equal(t, "Whitefly on tomato <b>plants</b>", post.Title)
	assert.NotContains(t, post.Body, "<script>")
}

func TestCreatePostMeasuresUnescapedTitle(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	title := longText(97) + " & " + longText(100)
	require.Len(t, []rune(title), 200)

	post := mustCreatePost(t, svc, samplePost(title), farmer)
	assert.Equal(t, title, post.Title)

	_, err := svc.CreatePost(context.Background(), samplePost(title+"a"), farmer)
	assert.ErrorIs(t, err, ErrValidation)

	in := samplePost("Can I spray &lt;script&gt; safely?")
	in.Body = "Typed entities must not come back as live markup &lt;script&gt;alert(1)&lt;/script&gt; here."
	encoded := mustCreatePost(t, svc, in, farmer)
	assert.NotContains(t, encoded.Title, "<script>")
	assert.NotContains(t, encoded.Body, "<script>")
}

func TestUpdatePost(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	post := mustCreatePost(t, svc, samplePost("Whitefly on tomato plants"), farmer)

	edit := NewPost{Title: "Whitefly on greenhouse tomatoes", Body: post.Body, Category: "pest-control", Tags: []string{"tomato"}}
	_, err := svc.UpdatePost(ctx, post.ID, edit, neighbour)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdatePost(ctx, post.ID, edit, farmer)
	require.NoError(t, err)
	assert.Equal(t, "Whitefly on greenhouse tomatoes", updated.Title)
	assert.Equal(t, models.TagList{"tomato"}, updated.Tags)

	_, err = svc.UpdatePost(ctx, post.ID+100, edit, farmer)
	assert.ErrorIs(t, err, ErrNotFound)

	edit.Category = "astrology"
	_, err = svc.UpdatePost(ctx, post.ID, edit, farmer)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetPostDetail(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	post := mustCreatePost(t, svc, samplePost("Whitefly on tomato plants"), farmer)
	a1 := mustAnswer(t, svc, post.ID, "Use yellow sticky traps.", neighbour)
	mustVote(t, svc, models.ItemTypeAnswer, a1.ID, models.DirectionDown, agronomist)
	mustVote(t, svc, models.ItemTypePost, post.ID, models.DirectionUp, agronomist)

	detail, err := svc.GetPostDetail(ctx, post.ID, anonymous)
	require.NoError(t, err)
	assert.EqualValues(t, 1, detail.Post.ViewCount)
	assert.Equal(t, "Pest Control", detail.Category.Label)
	require.Len(t, detail.Answers, 1)
	assert.Empty(t, detail.PostVote)
	assert.Nil(t, detail.AnswerVotes)

	detail, err = svc.GetPostDetail(ctx, post.ID, agronomist)
	require.NoError(t, err)
	assert.EqualValues(t, 2, detail.Post.ViewCount)
	assert.Equal(t, VoteUp, detail.PostVote)
	assert.Equal(t, map[uint]VoteState{a1.ID: VoteDown}, detail.AnswerVotes)

	_, err = svc.GetPostDetail(ctx, post.ID+100, anonymous)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddAnswer(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	post := mustCreatePost(t, svc, samplePost("Whitefly on tomato plants"), farmer)

	_, err := svc.AddAnswer(ctx, post.ID, "   ", neighbour)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddAnswer(ctx, post.ID, "Neem oil works.", anonymous)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.AddAnswer(ctx, post.ID+100, "Neem oil works.", neighbour)
	assert.ErrorIs(t, err, ErrNotFound)

	answer := mustAnswer(t, svc, post.ID, "Neem oil works.", neighbour)
	assert.Equal(t, post.ID, answer.PostID)
	assert.False(t, answer.IsBestAnswer)
	assert.Zero(t, answer.Score)

	reloaded, err := svc.reader(ctx).FindPost(post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reloaded.AnswerCount)
}

func TestLockedPostRejectsAnswers(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	post := mustCreatePost(t, svc, samplePost("Whitefly on tomato plants"), farmer)

	_, err := svc.SetLocked(ctx, post.ID, true, neighbour)
	assert.ErrorIs(t, err, ErrForbidden)

	locked, err := svc.SetLocked(ctx, post.ID, true, farmer)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)

	_, err = svc.AddAnswer(ctx, post.ID, "Neem oil works.", neighbour)
	require.ErrorIs(t, err, ErrLocked)

	_, err = svc.SetLocked(ctx, post.ID, false, moderator)
	require.NoError(t, err)
	mustAnswer(t, svc, post.ID, "Neem oil works.", neighbour)
}

func TestDeletePostCascades(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	post := mustCreatePost(t, svc, samplePost("Whitefly on tomato plants"), farmer)
	keep := mustCreatePost(t, svc, samplePost("Termites in sugarcane field"), neighbour)
	a1 := mustAnswer(t, svc, post.ID, "Neem oil works.", neighbour)
	mustAnswer(t, svc, keep.ID, "Chlorpyrifos drench.", farmer)
	mustVote(t, svc, models.ItemTypeAnswer, a1.ID, models.DirectionUp, agronomist)
	mustVote(t, svc, models.ItemTypePost, post.ID, models.DirectionUp, agronomist)
	mustVote(t, svc, models.ItemTypePost, keep.ID, models.DirectionUp, agronomist)

	assert.ErrorIs(t, svc.DeletePost(ctx, post.ID, neighbour), ErrForbidden)
	assert.ErrorIs(t, svc.DeletePost(ctx, post.ID, anonymous), ErrUnauthorized)
	require.NoError(t, svc.DeletePost(ctx, post.ID, farmer))

	_, err := svc.GetPostDetail(ctx, post.ID, anonymous)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeletePost(ctx, post.ID, farmer), ErrNotFound)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{PostCount: 1, AnswerCount: 1, VoteCount: 1}, stats)
}

func TestModeratorCanDeleteAnyPost(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	post := mustCreatePost(t, svc, samplePost("Whitefly on tomato plants"), farmer)
	require.NoError(t, svc.DeletePost(context.Background(), post.ID, moderator))
}

func TestDeleteAnswer(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	post := mustCreatePost(t, svc, samplePost("Whitefly on tomato plants"), farmer)
	a1 := mustAnswer(t, svc, post.ID, "Neem oil works.", neighbour)
	a2 := mustAnswer(t, svc, post.ID, "Yellow sticky traps.", agronomist)
	mustVote(t, svc, models.ItemTypeAnswer, a1.ID, models.DirectionUp, farmer)

	assert.ErrorIs(t, svc.DeleteAnswer(ctx, a1.ID, agronomist), ErrForbidden)
	require.NoError(t, svc.DeleteAnswer(ctx, a1.ID, neighbour))
	assert.ErrorIs(t, svc.DeleteAnswer(ctx, a1.ID, neighbour), ErrNotFound)

	answers, err := svc.ListAnswers(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a2.ID}, answerIDs(answers))

	reloaded, err := svc.reader(ctx).FindPost(post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reloaded.AnswerCount)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.VoteCount)
}

func TestBestAnswerCannotBeDeleted(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	post := mustCreatePost(t, svc, samplePost("Whitefly on tomato plants"), farmer)
	a1 := mustAnswer(t, svc, post.ID, "Neem oil works.", neighbour)
	_, _, err := svc.MarkBestAnswer(ctx, post.ID, a1.ID, farmer)
	require.NoError(t, err)

	err = svc.DeleteAnswer(ctx, a1.ID, neighbour)
	assert.ErrorIs(t, err, ErrConflict)
	err = svc.DeleteAnswer(ctx, a1.ID, moderator)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListAnswersUnknownPost(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.ListAnswers(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCategories(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	cats := svc.ListCategories()
	require.Len(t, cats, 3)
	assert.Equal(t, "pest-control", cats[0].ID)
	assert.Equal(t, "irrigation", cats[2].ID)

	cats[0].Label = "changed"
	assert.Equal(t, "Pest Control", svc.ListCategories()[0].Label)
}
