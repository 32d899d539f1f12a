package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/metrics"
	"github.com/romariotrain/truetestify/internal/review/models"
	"github.com/romariotrain/truetestify/internal/review/repository"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

type UploadFile struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

type SubmitInput struct {
	Type           models.ReviewType
	Title          string
	BodyText       string
	Rating         int
	ReviewerName   string
	ConsentChecked bool
	IP             string
	UserAgent      string
	File           *UploadFile
}

type SubmitResult struct {
	Review     *models.Review
	MediaAsset *models.MediaAsset
}

// Submit stores a public review for the business behind slug. A media file
// is uploaded before anything is written to the database; if the write then
// fails the object is removed again.
func (s *Service) Submit(ctx context.Context, slug string, in SubmitInput) (res *SubmitResult, err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		var size int64
		if res != nil && res.MediaAsset != nil {
			size = res.MediaAsset.SizeBytes
		}
		metrics.RecordSubmission(string(in.Type), result, size)
	}()

	biz, err := s.ResolveBusiness(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := checkPreconditions(biz, in); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	now := s.clock()
	review := &models.Review{
		ID:             s.idGen(),
		BusinessID:     biz.ID,
		Type:           in.Type,
		Status:         models.PendingStatus,
		Title:          strings.TrimSpace(in.Title),
		BodyText:       strings.TrimSpace(in.BodyText),
		Rating:         in.Rating,
		ReviewerName:   strings.TrimSpace(in.ReviewerName),
		ConsentChecked: true,
		SubmittedAt:    now,
	}
	consent := &models.ConsentLog{
		ID:               s.idGen(),
		BusinessID:       biz.ID,
		ReviewID:         review.ID,
		Action:           models.ConsentSubmitted,
		ConsentText:      ConsentText(biz.Name),
		IP:               in.IP,
		UserAgent:        in.UserAgent,
		ConsentCheckedAt: now,
	}

	var (
		asset *models.MediaAsset
		job   *models.TranscodeJob
	)
	if in.File != nil {
		asset, err = s.upload(ctx, review, in.File)
		if err != nil {
			return nil, err
		}
		if review.Type == models.VideoReview {
			job = &models.TranscodeJob{
				ID:           s.idGen(),
				BusinessID:   biz.ID,
				ReviewID:     review.ID,
				InputAssetID: asset.ID,
				Target:       s.opts.TranscodeTarget,
				Status:       models.JobQueued,
				CreatedAt:    now,
			}
		}
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateReview(ctx, review); err != nil {
			return fmt.Errorf("create review: %w", err)
		}
		if err := tx.CreateConsentLog(ctx, consent); err != nil {
			return fmt.Errorf("create consent log: %w", err)
		}
		if asset != nil {
			if err := tx.CreateMediaAsset(ctx, asset); err != nil {
				return fmt.Errorf("create media asset: %w", err)
			}
		}
		if job != nil {
			if err := tx.CreateTranscodeJob(ctx, job); err != nil {
				return fmt.Errorf("create transcode job: %w", err)
			}
		}
		if err := tx.AddOutbox(ctx, models.NewReviewSubmitted(review)); err != nil {
			return fmt.Errorf("add outbox: %w", err)
		}
		if job != nil {
			if err := tx.AddOutbox(ctx, models.NewTranscodeRequested(job, asset.S3Key)); err != nil {
				return fmt.Errorf("add outbox: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if asset != nil {
			s.discardObject(asset.S3Key)
		}
		return nil, err
	}

	s.log.Info().
		Str("business_id", biz.ID.String()).
		Str("review_id", review.ID.String()).
		Str("type", string(review.Type)).
		Msg("review submitted")

	return &SubmitResult{Review: review, MediaAsset: asset}, nil
}

// ConsentText is the statement a reviewer agrees to when submitting.
func ConsentText(businessName string) string {
	return fmt.Sprintf("I consent to %s using my submission publicly.", businessName)
}

func checkPreconditions(biz *models.Business, in SubmitInput) error {
	if in.Type == models.TextReview && !biz.Settings.TextReviews() {
		return models.ErrFeatureDisabled
	}
	if in.Type.HasMedia() && in.File == nil {
		return models.ErrFileRequired
	}
	if in.Type == models.TextReview && in.File != nil {
		return models.ErrUnexpectedFile
	}
	if !in.ConsentChecked {
		return models.ErrConsentRequired
	}
	return nil
}

func (s *Service) validate(in SubmitInput) error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: type must be text, video or audio", models.ErrInvalidArgument)
	}
	if !lengthBetween(in.Title, 1, 200) {
		return fmt.Errorf("%w: title must be 1-200 characters", models.ErrInvalidArgument)
	}
	if !lengthBetween(in.ReviewerName, 1, 100) {
		return fmt.Errorf("%w: reviewer name must be 1-100 characters", models.ErrInvalidArgument)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", models.ErrInvalidArgument)
	}
	if in.Type == models.TextReview {
		if !lengthBetween(in.BodyText, 10, 5000) {
			return fmt.Errorf("%w: review text must be 10-5000 characters", models.ErrInvalidArgument)
		}
	} else if !lengthBetween(in.BodyText, 0, 5000) {
		return fmt.Errorf("%w: review text must be at most 5000 characters", models.ErrInvalidArgument)
	}
	if in.File != nil && in.File.Size > s.opts.MaxUploadBytes {
		return models.ErrFileTooLarge
	}
	return nil
}

func lengthBetween(v string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(v))
	return n >= min && n <= max
}

func (s *Service) upload(ctx context.Context, review *models.Review, f *UploadFile) (*models.MediaAsset, error) {
	body, contentType, ext, err := sniff(f, review.Type)
	if err != nil {
		return nil, err
	}

	assetID := s.idGen()
	key := fmt.Sprintf("businesses/%s/reviews/%s/%d-%s%s",
		review.BusinessID, review.ID, review.SubmittedAt.UnixMilli(), uuid.NewString(), ext)

	if err := s.objects.Upload(ctx, key, body, f.Size, contentType); err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	return &models.MediaAsset{
		ID:         assetID,
		BusinessID: review.BusinessID,
		ReviewID:   review.ID,
		S3Key:      key,
		AssetType:  review.Type,
		SizeBytes:  f.Size,
		Metadata: models.AssetMetadata{
			OriginalFilename: f.Filename,
			MimeType:         contentType,
		},
		CreatedAt: review.SubmittedAt,
	}, nil
}

// sniff detects the media type from the head of the file and returns a
// reader positioned at the start of the content. The declared type is only
// consulted when the content is not recognised at all.
func sniff(f *UploadFile, typ models.ReviewType) (io.Reader, string, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Reader, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return nil, "", "", fmt.Errorf("%w: empty file", models.ErrUnsupportedMedia)
	}
	head = head[:n]

	var body io.Reader
	if seeker, ok := f.Reader.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, "", "", fmt.Errorf("rewind upload: %w", err)
		}
		body = f.Reader
	} else {
		body = io.MultiReader(bytes.NewReader(head), f.Reader)
	}

	detected := mimetype.Detect(head)
	contentType := detected.String()
	ext := detected.Extension()
	if detected.Is(unknownType) {
		contentType = declaredType(f.ContentType)
		ext = strings.ToLower(filepath.Ext(f.Filename))
		if !extPattern.MatchString(ext) {
			ext = ""
		}
	}
	if !acceptsMedia(typ, contentType) {
		return nil, "", "", fmt.Errorf("%w: %q on a %s review", models.ErrUnsupportedMedia, contentType, typ)
	}
	return body, contentType, ext, nil
}

// unknownType is what mimetype reports for content it cannot identify.
const unknownType = "application/octet-stream"

// acceptsMedia reports whether content of type mt can back a review of
// type typ. Browser recorders emit audio-only captures in webm or mp4
// containers, so those count as audio too.
func acceptsMedia(typ models.ReviewType, mt string) bool {
	switch typ {
	case models.VideoReview:
		return strings.HasPrefix(mt, "video/")
	case models.AudioReview:
		return strings.HasPrefix(mt, "audio/") || mt == "video/webm" || mt == "video/mp4"
	}
	return false
}

func declaredType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return mt
}

func (s *Service) discardObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("failed to remove orphaned upload")
		return
	}
	s.log.Warn().Str("key", key).Msg("removed upload after failed submission")
}
