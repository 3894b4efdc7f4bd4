package forum

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/farmqa/models"
)

// Store owns posts and answers. Bind it to a transaction for mutations.
type Store struct {
	db *gorm.DB
}

// NewStore wraps db, which may be a transaction.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// FindPost loads a post without side effects.
func (s *Store) FindPost(id uint) (models.Post, error) {
	var post models.Post
	if err := s.db.First(&post, id).Error; err != nil {
		return models.Post{}, translate(err, "post")
	}
	return post, nil
}

// FindAnswer loads an answer without side effects.
func (s *Store) FindAnswer(id uint) (models.Answer, error) {
	var answer models.Answer
	if err := s.db.First(&answer, id).Error; err != nil {
		return models.Answer{}, translate(err, "answer")
	}
	return answer, nil
}

func (s *Store) lockPost(id uint) (models.Post, error) {
	var post models.Post
	if err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, id).Error; err != nil {
		return models.Post{}, translate(err, "post")
	}
	return post, nil
}

func (s *Store) lockAnswer(id uint) (models.Answer, error) {
	var answer models.Answer
	if err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&answer, id).Error; err != nil {
		return models.Answer{}, translate(err, "answer")
	}
	return answer, nil
}

// lockItem locks a vote target and reports its author.
func (s *Store) lockItem(itemType string, id uint) (authorID uint, err error) {
	if itemType == models.ItemTypeAnswer {
		a, err := s.lockAnswer(id)
		return a.AuthorID, err
	}
	p, err := s.lockPost(id)
	return p.AuthorID, err
}

func (s *Store) createPost(post *models.Post) error {
	if err := s.db.Create(post).Error; err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *Store) updatePost(post *models.Post, fields map[string]interface{}) error {
	if err := s.db.Model(post).Updates(fields).Error; err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// incrementViews bumps the view counter outside of any transaction; approximate counts are fine.
func (s *Store) incrementViews(id uint) error {
	res := s.db.Model(&models.Post{}).Where("id = ?", id).UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("increment views: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("post")
	}
	return nil
}

// ListAnswers returns a post's answers: best answer first, then score, then oldest first.
func (s *Store) ListAnswers(postID uint) ([]models.Answer, error) {
	var answers []models.Answer
	err := s.db.Where("post_id = ?", postID).
		Order("is_best_answer DESC, score DESC, created_at ASC, id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

func (s *Store) insertAnswer(answer *models.Answer) error {
	if err := s.db.Create(answer).Error; err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	if err := s.db.Model(&models.Post{}).Where("id = ?", answer.PostID).
		UpdateColumn("answer_count", gorm.Expr("answer_count + 1")).Error; err != nil {
		return fmt.Errorf("bump answer count: %w", err)
	}
	return nil
}

func (s *Store) removeAnswer(answer models.Answer) error {
	if err := NewVoteLedger(s.db).purge(models.ItemTypeAnswer, []uint{answer.ID}); err != nil {
		return err
	}
	if err := s.db.Delete(&models.Answer{}, answer.ID).Error; err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	if err := s.db.Model(&models.Post{}).Where("id = ? AND answer_count > 0", answer.PostID).
		UpdateColumn("answer_count", gorm.Expr("answer_count - 1")).Error; err != nil {
		return fmt.Errorf("drop answer count: %w", err)
	}
	return nil
}

// removePost deletes a post together with its answers and every vote on either.
func (s *Store) removePost(post models.Post) error {
	var answerIDs []uint
	if err := s.db.Model(&models.Answer{}).Where("post_id = ?", post.ID).Pluck("id", &answerIDs).Error; err != nil {
		return fmt.Errorf("list answer ids: %w", err)
	}
	ledger := NewVoteLedger(s.db)
	if err := ledger.purge(models.ItemTypeAnswer, answerIDs); err != nil {
		return err
	}
	if err := ledger.purge(models.ItemTypePost, []uint{post.ID}); err != nil {
		return err
	}
	if err := s.db.Where("post_id = ?", post.ID).Delete(&models.Answer{}).Error; err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	if err := s.db.Delete(&models.Post{}, post.ID).Error; err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// Stats are forum-wide totals.
type Stats struct {
	PostCount     int64 `json:"post_count"`
	AnswerCount   int64 `json:"answer_count"`
	ResolvedCount int64 `json:"resolved_count"`
	VoteCount     int64 `json:"vote_count"`
}

func (s *Store) stats() (Stats, error) {
	var st Stats
	if err := s.db.Model(&models.Post{}).Count(&st.PostCount).Error; err != nil {
		return Stats{}, fmt.Errorf("count posts: %w", err)
	}
	if err := s.db.Model(&models.Post{}).Where("is_resolved = ?", true).Count(&st.ResolvedCount).Error; err != nil {
		return Stats{}, fmt.Errorf("count resolved posts: %w", err)
	}
	if err := s.db.Model(&models.Answer{}).Count(&st.AnswerCount).Error; err != nil {
		return Stats{}, fmt.Errorf("count answers: %w", err)
	}
	if err := s.db.Model(&models.Vote{}).Count(&st.VoteCount).Error; err != nil {
		return Stats{}, fmt.Errorf("count votes: %w", err)
	}
	return st, nil
}
