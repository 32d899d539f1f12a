package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/review/models"
	"github.com/romariotrain/truetestify/internal/review/repository"
)

type Cleanup string

const (
	CleanupComplete Cleanup = "complete"
	CleanupPartial  Cleanup = "partial"
)

type DeleteResult struct {
	ReviewID   uuid.UUID
	Cleanup    Cleanup
	FailedKeys []string
}

// DeleteReview honours a reviewer's right to delete. Every stored object is
// attempted even if some fail; the review row is removed regardless and the
// failures are reported back in the result.
func (s *Service) DeleteReview(ctx context.Context, ownerID string, businessID, reviewID uuid.UUID) (*DeleteResult, error) {
	if _, err := s.GetBusiness(ctx, ownerID, businessID); err != nil {
		return nil, err
	}
	r, err := s.store.GetReview(ctx, businessID, reviewID)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ListMediaAssets(ctx, []uuid.UUID{r.ID})
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}

	res := &DeleteResult{ReviewID: r.ID, Cleanup: CleanupComplete, FailedKeys: []string{}}
	keys := make([]string, 0, len(assets))
	for _, a := range assets {
		keys = append(keys, a.S3Key)
		if err := s.objects.Delete(ctx, a.S3Key); err != nil {
			s.log.Error().Err(err).
				Str("review_id", r.ID.String()).
				Str("key", a.S3Key).
				Msg("failed to delete media object")
			res.FailedKeys = append(res.FailedKeys, a.S3Key)
		}
	}
	if len(res.FailedKeys) > 0 {
		res.Cleanup = CleanupPartial
	}

	now := s.clock()
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateConsentLog(ctx, &models.ConsentLog{
			ID:               s.idGen(),
			BusinessID:       r.BusinessID,
			ReviewID:         r.ID,
			Action:           models.ConsentDeleted,
			ConsentText:      "Review deleted at the reviewer's request.",
			ConsentCheckedAt: now,
		}); err != nil {
			return fmt.Errorf("create consent log: %w", err)
		}
		if err := tx.DeleteReview(ctx, r.ID); err != nil {
			return err
		}
		if err := tx.AddOutbox(ctx, models.NewReviewDeleted(r, keys, now)); err != nil {
			return fmt.Errorf("add outbox: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("review_id", r.ID.String()).
		Str("cleanup", string(res.Cleanup)).
		Int("objects", len(keys)).
		Msg("review deleted")
	return res, nil
}
