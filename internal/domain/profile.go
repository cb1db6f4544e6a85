package domain

import "time"

// AgeGroup is a coarse difficulty bucket derived from a child profile.
type AgeGroup string

const (
	AgeGroupYoung AgeGroup = "YOUNG"
	AgeGroupOlder AgeGroup = "OLDER"
)

// youngAgeCutoff is the exclusive upper bound for the YOUNG bucket.
const youngAgeCutoff = 9

// ChildProfile is a child learner profile owned by an anonymous device user.
type ChildProfile struct {
	ChildID   string    `json:"child_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	BirthYear int       `json:"birth_year"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgeGroupAt buckets the child by age at the given time. Unknown birth
// years fall into the OLDER bucket so content is never over-simplified
// by accident.
func (p *ChildProfile) AgeGroupAt(now time.Time) AgeGroup {
	if p == nil || p.BirthYear <= 0 {
		return AgeGroupOlder
	}
	age := now.Year() - p.BirthYear
	if age >= 0 && age < youngAgeCutoff {
		return AgeGroupYoung
	}
	return AgeGroupOlder
}

// ProfileRef is the resolved generation context for tool calls.
type ProfileRef struct {
	ChildID  string
	AgeGroup AgeGroup
}

// DefaultProfileRef is used when no profile is available or resolution
// fails; resolution never errors.
func DefaultProfileRef() ProfileRef {
	return ProfileRef{AgeGroup: AgeGroupOlder}
}
