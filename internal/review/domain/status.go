package domain

import (
	"fmt"

	"github.com/romariotrain/truetestify/internal/review/models"
)

// CanTransition reports whether moderation may move a review from one
// status to another. Approved and rejected are terminal.
func CanTransition(from, to models.Status) bool {
	switch from {
	case models.PendingStatus:
		return to == models.ApprovedStatus || to == models.RejectedStatus
	case models.ApprovedStatus:
		return false
	case models.RejectedStatus:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to models.Status) error {
	if !Known(to) {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidArgument, to)
	}
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	return nil
}

func Known(s models.Status) bool {
	switch s {
	case models.PendingStatus, models.ApprovedStatus, models.RejectedStatus:
		return true
	}
	return false
}
