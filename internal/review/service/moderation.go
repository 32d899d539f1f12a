package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/review/domain"
	"github.com/romariotrain/truetestify/internal/review/models"
	"github.com/romariotrain/truetestify/internal/review/repository"
)

// SetStatus moderates a review. Moving to the current status is a no-op;
// entering approved stamps publishedAt.
func (s *Service) SetStatus(ctx context.Context, ownerID string, businessID, reviewID uuid.UUID, to models.Status) (*models.Review, error) {
	if _, err := s.GetBusiness(ctx, ownerID, businessID); err != nil {
		return nil, err
	}
	r, err := s.store.GetReview(ctx, businessID, reviewID)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateTransition(r.Status, to); err != nil {
		return nil, err
	}
	if r.Status == to {
		return r, nil
	}

	now := s.clock()
	var publishedAt *time.Time
	if to == models.ApprovedStatus {
		publishedAt = &now
	}

	var updated *models.Review
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		updated, err = tx.UpdateReviewStatus(ctx, r.ID, to, publishedAt)
		if err != nil {
			return err
		}
		if err := tx.AddOutbox(ctx, models.NewReviewStatusChanged(updated, r.Status, to, now)); err != nil {
			return fmt.Errorf("add outbox: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("review_id", r.ID.String()).
		Str("from", string(r.Status)).
		Str("to", string(to)).
		Msg("review status changed")
	return updated, nil
}
