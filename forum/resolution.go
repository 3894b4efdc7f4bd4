package forum

import (
	"fmt"

	"github.com/cppla/farmqa/models"
)

// PostState is the resolution state of a post.
type PostState string

const (
	StateOpen     PostState = "open"
	StateResolved PostState = "resolved"
)

// StateOf reports where post sits in the resolution workflow.
func StateOf(post models.Post) PostState {
	if post.IsResolved {
		return StateResolved
	}
	return StateOpen
}

// resolve moves a post from Open to Resolved by accepting answerID.
// It runs inside the caller's transaction; Resolved is terminal.
func resolve(st *Store, postID, answerID uint, requester Identity) (models.Post, models.Answer, error) {
	post, err := st.lockPost(postID)
	if err != nil {
		return models.Post{}, models.Answer{}, err
	}
	if !requester.canManage(post.AuthorID) {
		return models.Post{}, models.Answer{}, newError(ErrForbidden, "only the post author or a moderator can choose the best answer")
	}
	if StateOf(post) != StateOpen {
		return models.Post{}, models.Answer{}, newError(ErrConflict, "post %d is already resolved", post.ID)
	}

	answer, err := st.lockAnswer(answerID)
	if err != nil {
		return models.Post{}, models.Answer{}, err
	}
	if answer.PostID != post.ID {
		return models.Post{}, models.Answer{}, newError(ErrNotFound, "answer %d does not belong to post %d", answerID, postID)
	}

	// Clear first so at most one answer of the post carries the flag.
	if err := st.db.Model(&models.Answer{}).
		Where("post_id = ? AND is_best_answer = ?", post.ID, true).
		UpdateColumn("is_best_answer", false).Error; err != nil {
		return models.Post{}, models.Answer{}, fmt.Errorf("clear best answer: %w", err)
	}
	if err := st.db.Model(&answer).UpdateColumn("is_best_answer", true).Error; err != nil {
		return models.Post{}, models.Answer{}, fmt.Errorf("set best answer: %w", err)
	}
	if err := st.updatePost(&post, map[string]interface{}{
		"is_resolved":    true,
		"best_answer_id": answer.ID,
	}); err != nil {
		return models.Post{}, models.Answer{}, err
	}

	answer.IsBestAnswer = true
	post.IsResolved = true
	post.BestAnswerID = &answer.ID
	return post, answer, nil
}
