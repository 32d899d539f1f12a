package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/truetestify/internal/auth"
	"github.com/romariotrain/truetestify/internal/billing"
	"github.com/romariotrain/truetestify/internal/review/models"
	"github.com/romariotrain/truetestify/internal/review/service"
)

// multipartMemory is how much of a submission is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Reviews        *service.Service
	Billing        *billing.Service
	Checks         map[string]HealthCheck
	MaxUploadBytes int64
	SignedURLTTL   time.Duration
	Logger         zerolog.Logger
}

type Handler struct {
	reviews   *service.Service
	billing   *billing.Service
	checks    map[string]HealthCheck
	maxUpload int64
	urlTTL    time.Duration
	log       zerolog.Logger
}

func New(cfg Config) *Handler {
	return &Handler{
		reviews:   cfg.Reviews,
		billing:   cfg.Billing,
		checks:    cfg.Checks,
		maxUpload: cfg.MaxUploadBytes,
		urlTTL:    cfg.SignedURLTTL,
		log:       cfg.Logger.With().Str("component", "http").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Public

func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	// An unknown business is reported before the body is read.
	if _, err := h.reviews.ResolveBusiness(r.Context(), slug); err != nil {
		writeError(w, h.log, err)
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.log, models.ErrFileTooLarge)
			return
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	rating, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("rating")))
	in := service.SubmitInput{
		Type:           models.ReviewType(strings.ToLower(strings.TrimSpace(r.FormValue("type")))),
		Title:          r.FormValue("title"),
		BodyText:       r.FormValue("bodyText"),
		Rating:         rating,
		ReviewerName:   r.FormValue("reviewerName"),
		ConsentChecked: parseBool(r.FormValue("consentChecked")),
		IP:             clientIP(r),
		UserAgent:      r.UserAgent(),
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		in.File = &service.UploadFile{
			Reader:      file,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeErrorJSON(w, http.StatusBadRequest, "invalid file field")
		return
	}

	res, err := h.reviews.Submit(r.Context(), slug, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmitResponse(res))
}

func (h *Handler) ListPublicReviews(w http.ResponseWriter, r *http.Request) {
	page, err := h.reviews.ListPublic(r.Context(), chi.URLParam(r, "slug"), parsePage(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicReviews(page))
}

func (h *Handler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.reviews.PublicProfile(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PublicProfileResponse{
		Slug:       p.Slug,
		Name:       p.Name,
		LogoURL:    p.LogoURL,
		BrandColor: p.BrandColor,
		Website:    p.Website,
		Settings: SettingsDTO{
			TextReviewsEnabled:   p.TextReviewsEnabled,
			GoogleReviewsEnabled: p.GoogleReviewsEnabled,
		},
	})
}

func (h *Handler) MediaURL(w http.ResponseWriter, r *http.Request) {
	assetID, ok := h.uuidParam(w, r, "assetId")
	if !ok {
		return
	}
	url, err := h.reviews.MediaURL(r.Context(), chi.URLParam(r, "slug"), assetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MediaURLResponse{URL: url, ExpiresIn: int(h.urlTTL.Seconds())})
}

// Owner

func (h *Handler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req CreateBusinessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.reviews.CreateBusiness(r.Context(), ownerID(r), service.BusinessInput{
		Slug:         req.Slug,
		Name:         req.Name,
		LogoURL:      req.LogoURL,
		BrandColor:   req.BrandColor,
		ContactEmail: req.ContactEmail,
		Website:      req.Website,
		Settings:     req.Settings,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBusinessResponse(b))
}

func (h *Handler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	bizID, ok := h.uuidParam(w, r, "businessId")
	if !ok {
		return
	}
	b, err := h.reviews.GetBusiness(r.Context(), ownerID(r), bizID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBusinessResponse(b))
}

func (h *Handler) UpdateBusiness(w http.ResponseWriter, r *http.Request) {
	bizID, ok := h.uuidParam(w, r, "businessId")
	if !ok {
		return
	}
	var req UpdateBusinessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.reviews.UpdateBusiness(r.Context(), ownerID(r), bizID, service.BusinessPatch{
		Slug:         req.Slug,
		Name:         req.Name,
		LogoURL:      req.LogoURL,
		BrandColor:   req.BrandColor,
		ContactEmail: req.ContactEmail,
		Website:      req.Website,
		Settings:     req.Settings,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBusinessResponse(b))
}

func (h *Handler) ListOwnerReviews(w http.ResponseWriter, r *http.Request) {
	bizID, ok := h.uuidParam(w, r, "businessId")
	if !ok {
		return
	}
	status := models.Status(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	page, err := h.reviews.ListForOwner(r.Context(), ownerID(r), bizID, status, parsePage(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOwnerReviews(page))
}

func (h *Handler) ReviewStats(w http.ResponseWriter, r *http.Request) {
	bizID, ok := h.uuidParam(w, r, "businessId")
	if !ok {
		return
	}
	s, err := h.reviews.Stats(r.Context(), ownerID(r), bizID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Pending:       s.Pending,
		Approved:      s.Approved,
		Rejected:      s.Rejected,
		AverageRating: s.AverageRating,
	})
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	bizID, ok := h.uuidParam(w, r, "businessId")
	if !ok {
		return
	}
	reviewID, ok := h.uuidParam(w, r, "reviewId")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rev, err := h.reviews.SetStatus(r.Context(), ownerID(r), bizID, reviewID, req.Status)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, OwnerReview{
		PublicReview: toPublicReview(service.ReviewWithMedia{Review: *rev}),
		Status:       rev.Status,
		SubmittedAt:  rev.SubmittedAt,
	})
}

func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	bizID, ok := h.uuidParam(w, r, "businessId")
	if !ok {
		return
	}
	reviewID, ok := h.uuidParam(w, r, "reviewId")
	if !ok {
		return
	}

	res, err := h.reviews.DeleteReview(r.Context(), ownerID(r), bizID, reviewID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{
		ReviewID:   res.ReviewID,
		Cleanup:    string(res.Cleanup),
		FailedKeys: res.FailedKeys,
	})
}

// Billing

func (h *Handler) PricingPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": h.billing.PricingPlans()})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.billing.Checkout(r.Context(), ownerID(r), req.BusinessID, req.PricingTier)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	var req PortalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	url, err := h.billing.Portal(r.Context(), ownerID(r), req.BusinessID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	bizID, err := uuid.Parse(r.URL.Query().Get("businessId"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid businessId")
		return
	}
	s, err := h.billing.Subscription(r.Context(), ownerID(r), bizID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(s))
}

const maxWebhookBytes = 1 << 20

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// helpers

func (h *Handler) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func ownerID(r *http.Request) string {
	if p, ok := auth.FromContext(r.Context()); ok {
		return p.OwnerID
	}
	return ""
}

func parsePage(r *http.Request) service.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return service.Page{Page: page, Limit: limit}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
