package progress

import "time"

// UserProgress is the persisted record for one player.
type UserProgress struct {
	UserID           string    `json:"user_id"`
	State            State     `json:"state"`
	LastActivityTime time.Time `json:"last_activity_time"`
	CreatedAt        time.Time `json:"created_at"`
	// Version counts successful writes; 0 means the record has never been
	// stored. Stores reject a write whose Version does not match theirs.
	Version int64 `json:"version"`
}

// New returns a first-contact record in the Welcome state.
func New(userID string, now time.Time) *UserProgress {
	return &UserProgress{
		UserID:           userID,
		State:            Welcome(),
		LastActivityTime: now,
		CreatedAt:        now,
	}
}

// IsNew reports whether the record has not been stored yet.
func (p *UserProgress) IsNew() bool {
	return p.Version == 0
}
