package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether s can be used as a public business slug.
func ValidSlug(s string) bool {
	return len(s) >= 3 && len(s) <= 64 && slugPattern.MatchString(s)
}

// Settings holds per-business feature toggles. Unset fields fall back to
// the defaults documented on their accessors.
type Settings struct {
	TextReviewsEnabled   *bool `json:"textReviewsEnabled,omitempty"`
	GoogleReviewsEnabled *bool `json:"googleReviewsEnabled,omitempty"`
}

// TextReviews defaults to true.
func (s Settings) TextReviews() bool {
	if s.TextReviewsEnabled == nil {
		return true
	}
	return *s.TextReviewsEnabled
}

// GoogleReviews defaults to false.
func (s Settings) GoogleReviews() bool {
	if s.GoogleReviewsEnabled == nil {
		return false
	}
	return *s.GoogleReviewsEnabled
}

// Merge returns s with every field set in patch applied on top.
func (s Settings) Merge(patch Settings) Settings {
	if patch.TextReviewsEnabled != nil {
		v := *patch.TextReviewsEnabled
		s.TextReviewsEnabled = &v
	}
	if patch.GoogleReviewsEnabled != nil {
		v := *patch.GoogleReviewsEnabled
		s.GoogleReviewsEnabled = &v
	}
	return s
}

func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Settings) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = Settings{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("settings: unsupported scan type %T", src)
	}
}

type Business struct {
	ID           uuid.UUID `db:"id"`
	OwnerID      string    `db:"owner_id"`
	Slug         string    `db:"slug"`
	Name         string    `db:"name"`
	LogoURL      string    `db:"logo_url"`
	BrandColor   string    `db:"brand_color"`
	ContactEmail string    `db:"contact_email"`
	Website      string    `db:"website"`
	Settings     Settings  `db:"settings"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
