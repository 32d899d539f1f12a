package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/truetestify/internal/auth"
	"github.com/romariotrain/truetestify/internal/billing"
	"github.com/romariotrain/truetestify/internal/review/models"
	"github.com/romariotrain/truetestify/internal/review/repository"
	"github.com/romariotrain/truetestify/internal/review/service"
)

const jwtSecret = "test-secret"

type ObjectStorageMock struct {
	mock.Mock
}

func (m *ObjectStorageMock) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, _ = io.Copy(io.Discard, body)
	args := m.Called(ctx, key, size, contentType)
	return args.Error(0)
}

func (m *ObjectStorageMock) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func (m *ObjectStorageMock) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type testServer struct {
	router  http.Handler
	objects *ObjectStorageMock
	repo    *repository.MemoryRepository
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := repository.NewMemoryRepository()
	objects := new(ObjectStorageMock)
	reviews := service.New(repo, objects, service.Options{MaxUploadBytes: 1 << 20}, zerolog.Nop())
	bill := billing.NewService(billing.NewCatalog(billing.PriceIDs{}), billing.DevProvider{}, billing.NewMemoryRepository(),
		reviews, billing.URLs{Success: "http://app/ok", Cancel: "http://app/cancel", Return: "http://app/billing"}, zerolog.Nop())

	verifier := auth.NewVerifier(jwtSecret)
	token, err := verifier.Issue("owner-1", "owner@example.com", time.Hour)
	require.NoError(t, err)

	h := New(Config{
		Reviews:        reviews,
		Billing:        bill,
		MaxUploadBytes: 1 << 20,
		SignedURLTTL:   15 * time.Minute,
		Logger:         zerolog.Nop(),
		Checks: map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		},
	})
	return &testServer{router: NewRouter(h, verifier), objects: objects, repo: repo, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createBusiness(t *testing.T) BusinessResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/businesses", map[string]string{"slug": "acme", "name": "Acme"}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var b BusinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

type filePart struct {
	name        string
	contentType string
	content     []byte
}

func (s *testServer) submit(t *testing.T, slug string, fields map[string]string, file *filePart) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, file.name))
		hdr.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/public/"+slug+"/reviews", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func textFields() map[string]string {
	return map[string]string{
		"type":           "text",
		"title":          "Lovely",
		"bodyText":       "The croissants are out of this world.",
		"rating":         "5",
		"reviewerName":   "Jo",
		"consentChecked": "true",
	}
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSubmitAndModerateFlow(t *testing.T) {
	s := newTestServer(t)
	biz := s.createBusiness(t)

	rec := s.submit(t, "acme", textFields(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, models.PendingStatus, sub.Review.Status)
	assert.Equal(t, biz.ID, sub.Review.BusinessID)
	assert.Nil(t, sub.MediaAsset)
	assert.Contains(t, rec.Body.String(), `"mediaAsset":null`)

	logs := s.repo.ConsentLogs(biz.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "198.51.100.4", logs[0].IP)

	// Pending reviews are not public.
	rec = s.do(t, http.MethodGet, "/api/public/acme/reviews", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"page":1,"limit":12,"reviews":[]}`, rec.Body.String())

	statusPath := fmt.Sprintf("/api/businesses/%s/reviews/%s/status", biz.ID, sub.Review.ID)
	rec = s.do(t, http.MethodPatch, statusPath, StatusRequest{Status: models.ApprovedStatus}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/public/acme/reviews?page=1&limit=5", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var list PublicReviewsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 5, list.Limit)
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, "Lovely", list.Reviews[0].Title)
	assert.NotNil(t, list.Reviews[0].PublishedAt)
	assert.Empty(t, list.Reviews[0].Media)

	rec = s.do(t, http.MethodPatch, statusPath, StatusRequest{Status: models.RejectedStatus}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/businesses/%s/reviews/stats", biz.ID), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":0,"approved":1,"rejected":0,"averageRating":5}`, rec.Body.String())
}

func TestSubmitErrors(t *testing.T) {
	s := newTestServer(t)
	s.createBusiness(t)

	noConsent := textFields()
	delete(noConsent, "consentChecked")

	video := textFields()
	video["type"] = "video"

	badRating := textFields()
	badRating["rating"] = "ten"

	audio := textFields()
	audio["type"] = "audio"

	cases := []struct {
		name   string
		slug   string
		fields map[string]string
		file   *filePart
		status int
	}{
		{"unknown business", "nobody", textFields(), nil, http.StatusNotFound},
		{"missing consent", "acme", noConsent, nil, http.StatusBadRequest},
		{"video without file", "acme", video, nil, http.StatusBadRequest},
		{"text with file", "acme", textFields(), &filePart{"a.wav", "audio/wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt ")}, http.StatusBadRequest},
		{"bad rating", "acme", badRating, nil, http.StatusBadRequest},
		{"not media", "acme", audio, &filePart{"a.txt", "text/plain", []byte("hello there")}, http.StatusUnsupportedMediaType},
		{"too large", "acme", audio, &filePart{"big.wav", "audio/wav", make([]byte, 2<<20)}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.submit(t, tc.slug, tc.fields, tc.file)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, errorBody(t, rec))
		})
	}
}

func TestSubmit_UnknownSlugBeforeBodyIsRead(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/public/nobody/reviews", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=missing")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", errorBody(t, rec))
}

func TestSubmit_TextDeclaredAsVideoIsRejected(t *testing.T) {
	s := newTestServer(t)
	biz := s.createBusiness(t)

	fields := textFields()
	fields["type"] = "video"
	rec := s.submit(t, "acme", fields, &filePart{"clip.mp4", "video/mp4", []byte("plain words pretending to be a clip")})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())
	assert.Zero(t, s.repo.CountReviews(biz.ID))
	s.objects.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListPublicReviews_HugePage(t *testing.T) {
	s := newTestServer(t)
	s.createBusiness(t)

	rec := s.do(t, http.MethodGet, "/api/public/acme/reviews?page=9223372036854775807&limit=12", nil, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list PublicReviewsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Reviews)
	assert.Equal(t, 12, list.Limit)
}

func TestSubmitAudio_SignedURLAfterApproval(t *testing.T) {
	s := newTestServer(t)
	biz := s.createBusiness(t)

	s.objects.On("Upload", mock.Anything, mock.AnythingOfType("string"), mock.Anything, "audio/wav").Return(nil).Once()

	fields := textFields()
	fields["type"] = "audio"
	rec := s.submit(t, "acme", fields, &filePart{"note.wav", "audio/wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	require.NotNil(t, sub.MediaAsset)
	assert.True(t, strings.HasPrefix(sub.MediaAsset.S3Key, "businesses/"+biz.ID.String()+"/reviews/"))

	urlPath := fmt.Sprintf("/api/public/acme/media/%s/url", sub.MediaAsset.ID)
	rec = s.do(t, http.MethodGet, urlPath, nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/api/businesses/%s/reviews/%s/status", biz.ID, sub.Review.ID),
		StatusRequest{Status: models.ApprovedStatus}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	s.objects.On("PresignGet", mock.Anything, sub.MediaAsset.S3Key, 15*time.Minute).Return("https://signed.example/x", nil).Once()
	rec = s.do(t, http.MethodGet, urlPath, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://signed.example/x","expiresIn":900}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/public/acme/reviews", nil, false)
	var list PublicReviewsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Reviews, 1)
	require.Len(t, list.Reviews[0].Media, 1)
	assert.Equal(t, models.AudioReview, list.Reviews[0].Media[0].Type)
}

func TestDeleteReview_ReportsPartialCleanup(t *testing.T) {
	s := newTestServer(t)
	biz := s.createBusiness(t)

	s.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	fields := textFields()
	fields["type"] = "audio"
	rec := s.submit(t, "acme", fields, &filePart{"note.wav", "audio/wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00")})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sub SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))

	s.objects.On("Delete", mock.Anything, sub.MediaAsset.S3Key).Return(errors.New("s3 down")).Once()

	path := fmt.Sprintf("/api/businesses/%s/reviews/%s", biz.ID, sub.Review.ID)
	rec = s.do(t, http.MethodDelete, path, nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var del DeleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &del))
	assert.Equal(t, "partial", del.Cleanup)
	assert.Equal(t, []string{sub.MediaAsset.S3Key}, del.FailedKeys)

	rec = s.do(t, http.MethodDelete, path, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOwnerRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/businesses", map[string]string{"slug": "acme", "name": "Acme"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/billing/subscription?businessId="+uuid.NewString(), nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBusinessEndpoints(t *testing.T) {
	s := newTestServer(t)
	biz := s.createBusiness(t)
	assert.True(t, biz.Settings.TextReviewsEnabled)

	rec := s.do(t, http.MethodPost, "/api/businesses", map[string]string{"slug": "acme", "name": "Other"}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	path := "/api/businesses/" + biz.ID.String()
	rec = s.do(t, http.MethodPatch, path, map[string]any{"slug": "renamed"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, path, map[string]any{"settings": map[string]bool{"textReviewsEnabled": false}}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.submit(t, "acme", textFields(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/public/acme", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile PublicProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.False(t, profile.Settings.TextReviewsEnabled)

	rec = s.do(t, http.MethodGet, "/api/businesses/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingEndpoints(t *testing.T) {
	s := newTestServer(t)
	biz := s.createBusiness(t)

	rec := s.do(t, http.MethodGet, "/api/billing/pricing-plans", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"starter"`)

	rec = s.do(t, http.MethodPost, "/api/billing/checkout", CheckoutRequest{BusinessID: biz.ID, PricingTier: billing.TierPro}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "sessionId")

	subPath := "/api/billing/subscription?businessId=" + biz.ID.String()
	rec = s.do(t, http.MethodGet, subPath, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/billing/webhook", map[string]string{"businessId": biz.ID.String(), "pricingTier": "pro"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, subPath, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var sub SubscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, billing.TierPro, sub.PricingTier)
	assert.Equal(t, billing.StatusActive, sub.Status)

	rec = s.do(t, http.MethodPost, "/api/billing/portal", PortalRequest{BusinessID: biz.ID}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"http://app/billing"}`, rec.Body.String())
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("x: %w", models.ErrForbidden), http.StatusForbidden},
		{models.ErrFeatureDisabled, http.StatusForbidden},
		{models.ErrConsentRequired, http.StatusBadRequest},
		{models.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{models.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
		{fmt.Errorf("x: %w", models.ErrConflict), http.StatusConflict},
		{models.ErrInvalidTransition, http.StatusConflict},
		{auth.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("x: %w", billing.ErrUnavailable), http.StatusServiceUnavailable},
		{billing.ErrInvalidSignature, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := errorStatus(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
