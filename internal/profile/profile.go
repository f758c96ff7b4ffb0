// Package profile contains hotel profiles and the completeness rule
// that is recomputed on every profile write.
package profile

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// PlaceholderLocation is the location value profiles get at
	// registration. It counts as "not filled in" for completeness.
	PlaceholderLocation = "Not specified"

	// DefaultCategory is the category value profiles get at registration.
	DefaultCategory = "Hotel"
)

// HotelProfile is the public face of a hotel on the marketplace.
type HotelProfile struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Name     string
	Location string
	Category string
	About    string
	Website  string

	// Complete and CompletedAt are derived, they are recomputed by the
	// store on every write and never set directly by callers.
	Complete    bool
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsComplete is the completeness rule over the watched fields. A profile
// is complete when location, about and website are all filled in and the
// location is not the registration placeholder.
func IsComplete(p HotelProfile) bool {
	return nonBlank(p.Location) &&
		strings.TrimSpace(p.Location) != PlaceholderLocation &&
		nonBlank(p.About) &&
		nonBlank(p.Website)
}

func nonBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Recompute applies the completeness rule to p as of now. The first time
// the profile transitions to complete, CompletedAt is set. It is never
// cleared or moved afterwards, even when Complete flips back to false:
// it records the first instant the profile was ever complete.
func Recompute(p *HotelProfile, now time.Time) {
	p.Complete = IsComplete(*p)

	if p.Complete && p.CompletedAt == nil {
		t := now
		p.CompletedAt = &t
	}
}
