package forum

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/farmqa/models"
)

// VoteState is a voter's standing on one item.
type VoteState string

const (
	VoteNone VoteState = "none"
	VoteUp   VoteState = "up"
	VoteDown VoteState = "down"
)

// VoteResult is returned by CastVote.
type VoteResult struct {
	NetScore int64     `json:"net_score"`
	State    VoteState `json:"voter_state"`
}

// nextVote is the three-state toggle: a repeated direction clears the vote,
// anything else moves the voter to the requested direction.
func nextVote(current VoteState, direction string) VoteState {
	requested := VoteState(direction)
	if current == requested {
		return VoteNone
	}
	return requested
}

// voteDelta returns the counter changes for moving a voter between states.
func voteDelta(from, to VoteState) (up, down int64) {
	switch from {
	case VoteUp:
		up--
	case VoteDown:
		down--
	}
	switch to {
	case VoteUp:
		up++
	case VoteDown:
		down++
	}
	return up, down
}

func validItemType(itemType string) bool {
	return itemType == models.ItemTypePost || itemType == models.ItemTypeAnswer
}

func validDirection(direction string) bool {
	return direction == models.DirectionUp || direction == models.DirectionDown
}

func itemModel(itemType string) interface{} {
	if itemType == models.ItemTypeAnswer {
		return &models.Answer{}
	}
	return &models.Post{}
}

// VoteLedger records who voted which way on posts and answers.
// Counters on the item row move in the same transaction as the vote rows.
type VoteLedger struct {
	db *gorm.DB
}

// NewVoteLedger binds a ledger to db, which may be a transaction.
func NewVoteLedger(db *gorm.DB) *VoteLedger {
	return &VoteLedger{db: db}
}

// cast applies one click. The caller must hold the item row lock.
func (l *VoteLedger) cast(itemType string, itemID, voterID uint, direction string) (VoteResult, error) {
	var existing models.Vote
	current := VoteNone
	err := l.db.Where("item_type = ? AND item_id = ? AND voter_id = ?", itemType, itemID, voterID).First(&existing).Error
	switch {
	case err == nil:
		current = VoteState(existing.Direction)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return VoteResult{}, fmt.Errorf("load vote: %w", err)
	}

	next := nextVote(current, direction)
	switch {
	case next == VoteNone:
		if err := l.db.Delete(&models.Vote{}, existing.ID).Error; err != nil {
			return VoteResult{}, fmt.Errorf("delete vote: %w", err)
		}
	case current == VoteNone:
		row := models.Vote{ItemType: itemType, ItemID: itemID, VoterID: voterID, Direction: string(next)}
		if err := l.db.Create(&row).Error; err != nil {
			return VoteResult{}, fmt.Errorf("insert vote: %w", err)
		}
	default:
		if err := l.db.Model(&existing).Update("direction", string(next)).Error; err != nil {
			return VoteResult{}, fmt.Errorf("update vote: %w", err)
		}
	}

	up, down := voteDelta(current, next)
	if err := l.db.Model(itemModel(itemType)).Where("id = ?", itemID).UpdateColumns(map[string]interface{}{
		"upvotes":   gorm.Expr("upvotes + ?", up),
		"downvotes": gorm.Expr("downvotes + ?", down),
		"score":     gorm.Expr("score + ?", up-down),
	}).Error; err != nil {
		return VoteResult{}, fmt.Errorf("update vote counters: %w", err)
	}

	score, err := l.NetScore(itemType, itemID)
	if err != nil {
		return VoteResult{}, err
	}
	return VoteResult{NetScore: score, State: next}, nil
}

// NetScore counts upvoters minus downvoters from the vote rows.
func (l *VoteLedger) NetScore(itemType string, itemID uint) (int64, error) {
	var tally struct {
		UpCount   int64
		DownCount int64
	}
	err := l.db.Model(&models.Vote{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END),0) AS up_count, COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END),0) AS down_count",
			models.DirectionUp, models.DirectionDown).
		Where("item_type = ? AND item_id = ?", itemType, itemID).
		Scan(&tally).Error
	if err != nil {
		return 0, fmt.Errorf("net score: %w", err)
	}
	return tally.UpCount - tally.DownCount, nil
}

// VoteState returns voterID's current vote on the item.
func (l *VoteLedger) VoteState(itemType string, itemID, voterID uint) (VoteState, error) {
	states, err := l.VoteStates(itemType, []uint{itemID}, voterID)
	if err != nil {
		return VoteNone, err
	}
	return states[itemID], nil
}

// VoteStates returns voterID's vote on each item; items without a vote map to VoteNone.
func (l *VoteLedger) VoteStates(itemType string, itemIDs []uint, voterID uint) (map[uint]VoteState, error) {
	states := make(map[uint]VoteState, len(itemIDs))
	for _, id := range itemIDs {
		states[id] = VoteNone
	}
	if len(itemIDs) == 0 || voterID == 0 {
		return states, nil
	}
	var rows []models.Vote
	if err := l.db.Where("item_type = ? AND voter_id = ? AND item_id IN ?", itemType, voterID, itemIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load vote states: %w", err)
	}
	for _, r := range rows {
		states[r.ItemID] = VoteState(r.Direction)
	}
	return states, nil
}

// purge drops every vote on the given items.
func (l *VoteLedger) purge(itemType string, itemIDs []uint) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if err := l.db.Where("item_type = ? AND item_id IN ?", itemType, itemIDs).Delete(&models.Vote{}).Error; err != nil {
		return fmt.Errorf("purge %s votes: %w", itemType, err)
	}
	return nil
}
