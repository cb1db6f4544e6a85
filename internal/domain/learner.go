package domain

import "time"

// Learner is an anonymous per-device user of the companion.
type Learner struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// QuotaRecord is the persisted demo-usage counter for one anonymous user.
// A record older than the quota window is logically expired and reads as
// zero until the next increment rewrites it.
type QuotaRecord struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"timestamp"`
}

// Expired reports whether the record's window has elapsed at the given time.
func (r QuotaRecord) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.WindowStart) >= window
}

// Transcript is a persisted chat transcript for one user/session pair.
type Transcript struct {
	UserID       string
	SessionID    string
	MessagesJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
