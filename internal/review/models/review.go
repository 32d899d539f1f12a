package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ReviewType string

const (
	TextReview  ReviewType = "text"
	VideoReview ReviewType = "video"
	AudioReview ReviewType = "audio"
)

func (t ReviewType) Valid() bool {
	return t == TextReview || t == VideoReview || t == AudioReview
}

// HasMedia reports whether reviews of this type carry exactly one media asset.
func (t ReviewType) HasMedia() bool {
	return t == VideoReview || t == AudioReview
}

type Status string

const (
	PendingStatus  Status = "pending"
	ApprovedStatus Status = "approved"
	RejectedStatus Status = "rejected"
)

type Review struct {
	ID             uuid.UUID  `db:"id"`
	BusinessID     uuid.UUID  `db:"business_id"`
	Type           ReviewType `db:"type"`
	Status         Status     `db:"status"`
	Title          string     `db:"title"`
	BodyText       string     `db:"body_text"`
	Rating         int        `db:"rating"`
	ReviewerName   string     `db:"reviewer_name"`
	ConsentChecked bool       `db:"consent_checked"`
	SubmittedAt    time.Time  `db:"submitted_at"`
	PublishedAt    *time.Time `db:"published_at"`
}

// AssetMetadata is stored as JSON next to the asset row.
type AssetMetadata struct {
	OriginalFilename string `json:"originalFilename,omitempty"`
	MimeType         string `json:"mimeType,omitempty"`
}

func (m AssetMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *AssetMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = AssetMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("asset metadata: unsupported scan type %T", src)
	}
}

// MediaAsset points at an object in storage. Deleting the row never
// deletes the object.
type MediaAsset struct {
	ID         uuid.UUID     `db:"id"`
	BusinessID uuid.UUID     `db:"business_id"`
	ReviewID   uuid.UUID     `db:"review_id"`
	S3Key      string        `db:"s3_key"`
	AssetType  ReviewType    `db:"asset_type"`
	SizeBytes  int64         `db:"size_bytes"`
	Metadata   AssetMetadata `db:"metadata_json"`
	CreatedAt  time.Time     `db:"created_at"`
}

type JobStatus string

const JobQueued JobStatus = "queued"

type TranscodeJob struct {
	ID           uuid.UUID `db:"id"`
	BusinessID   uuid.UUID `db:"business_id"`
	ReviewID     uuid.UUID `db:"review_id"`
	InputAssetID uuid.UUID `db:"input_asset_id"`
	Target       string    `db:"target"`
	Status       JobStatus `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

type ConsentAction string

const (
	ConsentSubmitted ConsentAction = "submitted"
	ConsentDeleted   ConsentAction = "deleted"
)

// ConsentLog rows are append-only.
type ConsentLog struct {
	ID               uuid.UUID     `db:"id"`
	BusinessID       uuid.UUID     `db:"business_id"`
	ReviewID         uuid.UUID     `db:"review_id"`
	Action           ConsentAction `db:"action"`
	ConsentText      string        `db:"consent_text"`
	IP               string        `db:"ip"`
	UserAgent        string        `db:"user_agent"`
	ConsentCheckedAt time.Time     `db:"consent_checked_at"`
}

type ReviewFilter struct {
	BusinessID uuid.UUID
	Status     Status // empty means any
	Limit      int
	Offset     int
}

type ReviewStats struct {
	Pending       int     `db:"pending"`
	Approved      int     `db:"approved"`
	Rejected      int     `db:"rejected"`
	AverageRating float64 `db:"average_rating"`
}
