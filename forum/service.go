package forum

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/farmqa/models"
)

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	ExcerptLength   int
	DefaultPageSize int
	MaxPageSize     int
	MaxTags         int
	ListCacheTTL    time.Duration
	AllowSelfVote   bool
	Cache           Cache
	Logger          *zap.Logger
	Now             func() time.Time
}

// Service is the single entry point of the Q&A engine.
// Every mutation runs in one database transaction and either fully applies or not at all.
type Service struct {
	db       *gorm.DB
	taxonomy *Taxonomy
	query    *QueryEngine
	cache    Cache
	logger   *zap.Logger
	now      func() time.Time

	maxTags       int
	allowSelfVote bool
}

// NewService composes the engine over db and the loaded taxonomy.
func NewService(db *gorm.DB, taxonomy *Taxonomy, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = noCache{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = 160
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.MaxTags <= 0 {
		opts.MaxTags = 10
	}
	if opts.ListCacheTTL <= 0 {
		opts.ListCacheTTL = 30 * time.Second
	}
	logger := opts.Logger.Named("forum")
	return &Service{
		db:       db,
		taxonomy: taxonomy,
		query: &QueryEngine{
			db:              db,
			taxonomy:        taxonomy,
			cache:           opts.Cache,
			cacheTTL:        opts.ListCacheTTL,
			excerptLength:   opts.ExcerptLength,
			defaultPageSize: opts.DefaultPageSize,
			maxPageSize:     opts.MaxPageSize,
			logger:          logger,
		},
		cache:         opts.Cache,
		logger:        logger,
		now:           opts.Now,
		maxTags:       opts.MaxTags,
		allowSelfVote: opts.AllowSelfVote,
	}
}

// atomic runs fn in a transaction with a store and a ledger bound to it.
func (s *Service) atomic(ctx context.Context, fn func(st *Store, votes *VoteLedger) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx), NewVoteLedger(tx))
	})
}

func (s *Service) reader(ctx context.Context) *Store {
	return NewStore(s.db.WithContext(ctx))
}

// ListCategories returns the taxonomy in display order.
func (s *Service) ListCategories() []models.Category {
	return s.taxonomy.List()
}

// QueryPosts serves the filtered, sorted and paginated post list.
func (s *Service) QueryPosts(ctx context.Context, q PostQuery) (PostPage, error) {
	return s.query.Query(ctx, q)
}

// NewPost is the author-supplied part of a post.
type NewPost struct {
	Title    string
	Body     string
	Category string
	Tags     []string
}

func (s *Service) validatePost(in NewPost) (NewPost, models.TagList, error) {
	title, err := cleanTitle(in.Title)
	if err != nil {
		return NewPost{}, nil, err
	}
	body, err := cleanBody(in.Body)
	if err != nil {
		return NewPost{}, nil, err
	}
	if _, err := s.taxonomy.Resolve(in.Category); err != nil {
		return NewPost{}, nil, invalid("unknown category %q", in.Category)
	}
	tags, err := cleanTags(in.Tags, s.maxTags)
	if err != nil {
		return NewPost{}, nil, err
	}
	return NewPost{Title: title, Body: body, Category: in.Category}, tags, nil
}

// CreatePost validates and stores a new open, unlocked post.
func (s *Service) CreatePost(ctx context.Context, in NewPost, author Identity) (models.Post, error) {
	if err := requireIdentity(author); err != nil {
		return models.Post{}, err
	}
	clean, tags, err := s.validatePost(in)
	if err != nil {
		return models.Post{}, err
	}
	now := s.now()
	post := models.Post{
		Title:          clean.Title,
		Body:           clean.Body,
		CategoryID:     clean.Category,
		Tags:           tags,
		SearchText:     searchText(clean.Title, clean.Body),
		AuthorID:       author.UserID,
		AuthorName:     author.Name,
		AuthorRole:     author.Role,
		AuthorLocation: author.Location,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.atomic(ctx, func(st *Store, _ *VoteLedger) error {
		return st.createPost(&post)
	}); err != nil {
		s.logger.Error("create post failed", zap.Uint("author_id", author.UserID), zap.Error(err))
		return models.Post{}, err
	}
	s.query.invalidate(ctx)
	s.logger.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("author_id", author.UserID), zap.String("category", post.CategoryID))
	return post, nil
}

// UpdatePost replaces the editable fields of a post.
func (s *Service) UpdatePost(ctx context.Context, postID uint, in NewPost, requester Identity) (models.Post, error) {
	if err := requireIdentity(requester); err != nil {
		return models.Post{}, err
	}
	clean, tags, err := s.validatePost(in)
	if err != nil {
		return models.Post{}, err
	}
	var post models.Post
	err = s.atomic(ctx, func(st *Store, _ *VoteLedger) error {
		p, err := st.lockPost(postID)
		if err != nil {
			return err
		}
		if !requester.canManage(p.AuthorID) {
			return newError(ErrForbidden, "you can only edit your own posts")
		}
		if err := st.updatePost(&p, map[string]interface{}{
			"title":       clean.Title,
			"body":        clean.Body,
			"category_id": clean.Category,
			"tags":        tags,
			"search_text": searchText(clean.Title, clean.Body),
			"updated_at":  s.now(),
		}); err != nil {
			return err
		}
		post, err = st.FindPost(postID)
		return err
	})
	if err != nil {
		return models.Post{}, err
	}
	s.query.invalidate(ctx)
	s.logger.Info("post updated", zap.Uint("post_id", postID), zap.Uint("requester_id", requester.UserID))
	return post, nil
}

// PostDetail is a post with its ordered answers and, for signed-in callers, their votes.
type PostDetail struct {
	Post        models.Post        `json:"post"`
	Category    models.Category    `json:"category"`
	Answers     []models.Answer    `json:"answers"`
	PostVote    VoteState          `json:"post_vote,omitempty"`
	AnswerVotes map[uint]VoteState `json:"answer_votes,omitempty"`
}

// GetPostDetail counts one view and returns the post with its answers.
func (s *Service) GetPostDetail(ctx context.Context, postID uint, viewer Identity) (PostDetail, error) {
	st := s.reader(ctx)
	if err := st.incrementViews(postID); err != nil {
		return PostDetail{}, err
	}
	post, err := st.FindPost(postID)
	if err != nil {
		return PostDetail{}, err
	}
	answers, err := st.ListAnswers(postID)
	if err != nil {
		return PostDetail{}, err
	}
	detail := PostDetail{Post: post, Answers: answers}
	if c, err := s.taxonomy.Resolve(post.CategoryID); err == nil {
		detail.Category = c
	} else {
		detail.Category = models.Category{ID: post.CategoryID, Label: post.CategoryID}
	}
	if viewer.Authenticated() {
		ledger := NewVoteLedger(s.db.WithContext(ctx))
		if detail.PostVote, err = ledger.VoteState(models.ItemTypePost, post.ID, viewer.UserID); err != nil {
			return PostDetail{}, err
		}
		ids := make([]uint, len(answers))
		for i, a := range answers {
			ids[i] = a.ID
		}
		if detail.AnswerVotes, err = ledger.VoteStates(models.ItemTypeAnswer, ids, viewer.UserID); err != nil {
			return PostDetail{}, err
		}
	}
	return detail, nil
}

// DeletePost removes a post, its answers and all their votes.
func (s *Service) DeletePost(ctx context.Context, postID uint, requester Identity) error {
	if err := requireIdentity(requester); err != nil {
		return err
	}
	err := s.atomic(ctx, func(st *Store, _ *VoteLedger) error {
		post, err := st.lockPost(postID)
		if err != nil {
			return err
		}
		if !requester.canManage(post.AuthorID) {
			return newError(ErrForbidden, "you can only delete your own posts")
		}
		return st.removePost(post)
	})
	if err != nil {
		return err
	}
	s.query.invalidate(ctx)
	s.logger.Info("post deleted", zap.Uint("post_id", postID), zap.Uint("requester_id", requester.UserID))
	return nil
}

// SetLocked opens or closes a post for new answers.
func (s *Service) SetLocked(ctx context.Context, postID uint, locked bool, requester Identity) (models.Post, error) {
	if err := requireIdentity(requester); err != nil {
		return models.Post{}, err
	}
	var post models.Post
	err := s.atomic(ctx, func(st *Store, _ *VoteLedger) error {
		p, err := st.lockPost(postID)
		if err != nil {
			return err
		}
		if !requester.canManage(p.AuthorID) {
			return newError(ErrForbidden, "only the post author or a moderator can lock a post")
		}
		if err := st.updatePost(&p, map[string]interface{}{"is_locked": locked}); err != nil {
			return err
		}
		p.IsLocked = locked
		post = p
		return nil
	})
	if err != nil {
		return models.Post{}, err
	}
	s.query.invalidate(ctx)
	s.logger.Info("post lock changed", zap.Uint("post_id", postID), zap.Bool("locked", locked))
	return post, nil
}

// ListAnswers returns a post's answers, best answer first.
func (s *Service) ListAnswers(ctx context.Context, postID uint) ([]models.Answer, error) {
	st := s.reader(ctx)
	if _, err := st.FindPost(postID); err != nil {
		return nil, err
	}
	return st.ListAnswers(postID)
}

// AddAnswer attaches an answer to an unlocked post.
func (s *Service) AddAnswer(ctx context.Context, postID uint, body string, author Identity) (models.Answer, error) {
	if err := requireIdentity(author); err != nil {
		return models.Answer{}, err
	}
	clean, err := cleanAnswerBody(body)
	if err != nil {
		return models.Answer{}, err
	}
	now := s.now()
	answer := models.Answer{
		PostID:         postID,
		Body:           clean,
		AuthorID:       author.UserID,
		AuthorName:     author.Name,
		AuthorRole:     author.Role,
		AuthorLocation: author.Location,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.atomic(ctx, func(st *Store, _ *VoteLedger) error {
		post, err := st.lockPost(postID)
		if err != nil {
			return err
		}
		if post.IsLocked {
			return newError(ErrLocked, "post %d is locked for new answers", post.ID)
		}
		return st.insertAnswer(&answer)
	})
	if err != nil {
		return models.Answer{}, err
	}
	s.query.invalidate(ctx)
	s.logger.Info("answer added", zap.Uint("post_id", postID), zap.Uint("answer_id", answer.ID), zap.Uint("author_id", author.UserID))
	return answer, nil
}

// DeleteAnswer removes an answer and its votes. The accepted answer of a resolved post stays.
func (s *Service) DeleteAnswer(ctx context.Context, answerID uint, requester Identity) error {
	if err := requireIdentity(requester); err != nil {
		return err
	}
	err := s.atomic(ctx, func(st *Store, _ *VoteLedger) error {
		peek, err := st.FindAnswer(answerID)
		if err != nil {
			return err
		}
		// Lock order is post then answer, the same as MarkBestAnswer.
		if _, err := st.lockPost(peek.PostID); err != nil {
			return err
		}
		answer, err := st.lockAnswer(answerID)
		if err != nil {
			return err
		}
		if !requester.canManage(answer.AuthorID) {
			return newError(ErrForbidden, "you can only delete your own answers")
		}
		if answer.IsBestAnswer {
			return newError(ErrConflict, "the accepted answer of a resolved post cannot be deleted")
		}
		return st.removeAnswer(answer)
	})
	if err != nil {
		return err
	}
	s.query.invalidate(ctx)
	s.logger.Info("answer deleted", zap.Uint("answer_id", answerID), zap.Uint("requester_id", requester.UserID))
	return nil
}

// CastVote toggles voter's vote on a post or an answer.
func (s *Service) CastVote(ctx context.Context, itemType string, itemID uint, direction string, voter Identity) (VoteResult, error) {
	if err := requireIdentity(voter); err != nil {
		return VoteResult{}, err
	}
	if !validItemType(itemType) {
		return VoteResult{}, invalid("item type must be %q or %q", models.ItemTypePost, models.ItemTypeAnswer)
	}
	if !validDirection(direction) {
		return VoteResult{}, invalid("direction must be %q or %q", models.DirectionUp, models.DirectionDown)
	}
	var result VoteResult
	err := s.atomic(ctx, func(st *Store, votes *VoteLedger) error {
		authorID, err := st.lockItem(itemType, itemID)
		if err != nil {
			return err
		}
		if authorID == voter.UserID && !s.allowSelfVote {
			return newError(ErrForbidden, "you cannot vote on your own %s", itemType)
		}
		result, err = votes.cast(itemType, itemID, voter.UserID, direction)
		return err
	})
	if err != nil {
		s.logger.Debug("vote rejected", zap.String("item_type", itemType), zap.Uint("item_id", itemID), zap.Error(err))
		return VoteResult{}, err
	}
	if itemType == models.ItemTypePost {
		s.query.invalidate(ctx)
	}
	s.logger.Info("vote cast",
		zap.String("item_type", itemType),
		zap.Uint("item_id", itemID),
		zap.Uint("voter_id", voter.UserID),
		zap.String("state", string(result.State)),
		zap.Int64("net_score", result.NetScore),
	)
	return result, nil
}

// MarkBestAnswer resolves a post by accepting one of its answers.
func (s *Service) MarkBestAnswer(ctx context.Context, postID, answerID uint, requester Identity) (models.Post, models.Answer, error) {
	if err := requireIdentity(requester); err != nil {
		return models.Post{}, models.Answer{}, err
	}
	var (
		post   models.Post
		answer models.Answer
	)
	err := s.atomic(ctx, func(st *Store, _ *VoteLedger) error {
		var err error
		post, answer, err = resolve(st, postID, answerID, requester)
		return err
	})
	if err != nil {
		s.logger.Debug("best answer rejected", zap.Uint("post_id", postID), zap.Uint("answer_id", answerID), zap.Error(err))
		return models.Post{}, models.Answer{}, err
	}
	s.query.invalidate(ctx)
	s.logger.Info("post resolved", zap.Uint("post_id", postID), zap.Uint("answer_id", answerID), zap.Uint("requester_id", requester.UserID))
	return post, answer, nil
}

// Stats returns forum-wide totals.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.reader(ctx).stats()
}
