package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/truetestify/internal/review/models"
	"github.com/romariotrain/truetestify/internal/review/repository"
)

const (
	businessColumns = `id, owner_id, slug, name, logo_url, brand_color, contact_email, website, settings, created_at, updated_at`
	reviewColumns   = `id, business_id, type, status, title, body_text, rating, reviewer_name, consent_checked, submitted_at, published_at`
	assetColumns    = `id, business_id, review_id, s3_key, asset_type, size_bytes, metadata_json, created_at`
)

// ReviewRepo is the Postgres implementation of repository.Store.
type ReviewRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
}

var _ repository.Store = (*ReviewRepo)(nil)

func NewReviewRepo(db *sqlx.DB, outbox *OutboxRepo) *ReviewRepo {
	return &ReviewRepo{db: db, outbox: outbox}
}

func (r *ReviewRepo) CreateBusiness(ctx context.Context, b *models.Business) error {
	const q = `
		INSERT INTO businesses (` + businessColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, q,
		b.ID, b.OwnerID, b.Slug, b.Name, b.LogoURL, b.BrandColor,
		b.ContactEmail, b.Website, b.Settings, b.CreatedAt, b.UpdatedAt,
	)
	return mapError("business create", err)
}

func (r *ReviewRepo) GetBusinessByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	const q = `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`

	var b models.Business
	if err := r.db.GetContext(ctx, &b, q, id); err != nil {
		return nil, mapError("business get by id", err)
	}
	return &b, nil
}

func (r *ReviewRepo) GetBusinessBySlug(ctx context.Context, slug string) (*models.Business, error) {
	const q = `SELECT ` + businessColumns + ` FROM businesses WHERE slug = $1`

	var b models.Business
	if err := r.db.GetContext(ctx, &b, q, slug); err != nil {
		return nil, mapError("business get by slug", err)
	}
	return &b, nil
}

func (r *ReviewRepo) UpdateBusiness(ctx context.Context, b *models.Business) error {
	const q = `
		UPDATE businesses
		SET name = $2, logo_url = $3, brand_color = $4, contact_email = $5,
		    website = $6, settings = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q,
		b.ID, b.Name, b.LogoURL, b.BrandColor, b.ContactEmail, b.Website, b.Settings, b.UpdatedAt,
	)
	if err != nil {
		return mapError("business update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *ReviewRepo) GetReview(ctx context.Context, businessID, reviewID uuid.UUID) (*models.Review, error) {
	const q = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1 AND business_id = $2`

	var rev models.Review
	if err := r.db.GetContext(ctx, &rev, q, reviewID, businessID); err != nil {
		return nil, mapError("review get", err)
	}
	return &rev, nil
}

func (r *ReviewRepo) ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, int, error) {
	order := `submitted_at DESC, id`
	if f.Status == models.ApprovedStatus {
		order = `published_at DESC, id`
	}

	// An empty status matches every row.
	q := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE business_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY ` + order + `
		LIMIT $3 OFFSET $4
	`
	const countQ = `SELECT COUNT(*) FROM reviews WHERE business_id = $1 AND ($2 = '' OR status = $2)`

	var total int
	if err := r.db.GetContext(ctx, &total, countQ, f.BusinessID, string(f.Status)); err != nil {
		return nil, 0, mapError("review count", err)
	}

	reviews := make([]models.Review, 0)
	if err := r.db.SelectContext(ctx, &reviews, q, f.BusinessID, string(f.Status), f.Limit, f.Offset); err != nil {
		return nil, 0, mapError("review list", err)
	}
	return reviews, total, nil
}

func (r *ReviewRepo) ListMediaAssets(ctx context.Context, reviewIDs []uuid.UUID) ([]models.MediaAsset, error) {
	assets := make([]models.MediaAsset, 0)
	if len(reviewIDs) == 0 {
		return assets, nil
	}

	q, args, err := sqlx.In(`SELECT `+assetColumns+` FROM media_assets WHERE review_id IN (?) ORDER BY created_at, id`, reviewIDs)
	if err != nil {
		return nil, fmt.Errorf("media assets query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &assets, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("media assets list", err)
	}
	return assets, nil
}

func (r *ReviewRepo) GetMediaAsset(ctx context.Context, businessID, assetID uuid.UUID) (*models.MediaAsset, error) {
	const q = `SELECT ` + assetColumns + ` FROM media_assets WHERE id = $1 AND business_id = $2`

	var a models.MediaAsset
	if err := r.db.GetContext(ctx, &a, q, assetID, businessID); err != nil {
		return nil, mapError("media asset get", err)
	}
	return &a, nil
}

func (r *ReviewRepo) ReviewStats(ctx context.Context, businessID uuid.UUID) (*models.ReviewStats, error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending')  AS pending,
			COUNT(*) FILTER (WHERE status = 'approved') AS approved,
			COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
			COALESCE(AVG(rating) FILTER (WHERE status = 'approved'), 0)::float8 AS average_rating
		FROM reviews
		WHERE business_id = $1
	`
	var s models.ReviewStats
	if err := r.db.GetContext(ctx, &s, q, businessID); err != nil {
		return nil, mapError("review stats", err)
	}
	return &s, nil
}

// InTx runs fn in a database transaction and commits when it returns nil.
func (r *ReviewRepo) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(&reviewTx{tx: tx, outbox: r.outbox}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type reviewTx struct {
	tx     *sqlx.Tx
	outbox *OutboxRepo
}

func (t *reviewTx) CreateReview(ctx context.Context, rev *models.Review) error {
	const q = `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := t.tx.ExecContext(ctx, q,
		rev.ID, rev.BusinessID, rev.Type, rev.Status, rev.Title, rev.BodyText,
		rev.Rating, rev.ReviewerName, rev.ConsentChecked, rev.SubmittedAt, rev.PublishedAt,
	)
	return mapError("review create", err)
}

func (t *reviewTx) CreateConsentLog(ctx context.Context, c *models.ConsentLog) error {
	const q = `
		INSERT INTO consent_logs (id, business_id, review_id, action, consent_text, ip, user_agent, consent_checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.tx.ExecContext(ctx, q,
		c.ID, c.BusinessID, c.ReviewID, c.Action, c.ConsentText, c.IP, c.UserAgent, c.ConsentCheckedAt,
	)
	return mapError("consent log create", err)
}

func (t *reviewTx) CreateMediaAsset(ctx context.Context, a *models.MediaAsset) error {
	const q = `
		INSERT INTO media_assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.tx.ExecContext(ctx, q,
		a.ID, a.BusinessID, a.ReviewID, a.S3Key, a.AssetType, a.SizeBytes, a.Metadata, a.CreatedAt,
	)
	return mapError("media asset create", err)
}

func (t *reviewTx) CreateTranscodeJob(ctx context.Context, j *models.TranscodeJob) error {
	const q = `
		INSERT INTO transcode_jobs (id, business_id, review_id, input_asset_id, target, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.ExecContext(ctx, q,
		j.ID, j.BusinessID, j.ReviewID, j.InputAssetID, j.Target, j.Status, j.CreatedAt,
	)
	return mapError("transcode job create", err)
}

func (t *reviewTx) UpdateReviewStatus(ctx context.Context, id uuid.UUID, status models.Status, publishedAt *time.Time) (*models.Review, error) {
	const q = `
		UPDATE reviews
		SET status = $2, published_at = COALESCE($3, published_at)
		WHERE id = $1
		RETURNING ` + reviewColumns

	var rev models.Review
	if err := t.tx.GetContext(ctx, &rev, q, id, status, publishedAt); err != nil {
		return nil, mapError("review update status", err)
	}
	return &rev, nil
}

func (t *reviewTx) DeleteReview(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return mapError("review delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review delete: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (t *reviewTx) AddOutbox(ctx context.Context, event models.DomainEvent) error {
	if t.outbox == nil {
		return errors.New("outbox repository not configured")
	}
	return t.outbox.Add(ctx, t.tx, event)
}
