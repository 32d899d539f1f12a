package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidArgument   = errors.New("invalid arguments")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Submission preconditions, checked in this order.
	ErrFeatureDisabled = errors.New("text reviews are disabled for this business")
	ErrFileRequired    = errors.New("a media file is required for this review type")
	ErrUnexpectedFile  = errors.New("text reviews must not carry a file")
	ErrConsentRequired = errors.New("consent is required")

	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)
