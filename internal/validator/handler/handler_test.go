package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verifid/internal/results"
	"verifid/internal/validator"
	id "verifid/pkg/domain"
	dErrors "verifid/pkg/domain-errors"
	"verifid/pkg/testutil"
)

type fakeService struct {
	result       results.ComparisonResult
	err          error
	gotKey       string
	gotImage     []byte
	gotToken     string
	storedCalled bool
	imageCalled  bool
}

func (f *fakeService) ValidateStoredSubject(_ context.Context, subjectKey string) (results.ComparisonResult, error) {
	f.storedCalled = true
	f.gotKey = subjectKey
	return f.result, f.err
}

func (f *fakeService) ValidateImage(_ context.Context, subjectKey string, image []byte) (results.ComparisonResult, error) {
	f.imageCalled = true
	f.gotKey = subjectKey
	f.gotImage = image
	return f.result, f.err
}

func (f *fakeService) ResultByComparisonID(_ context.Context, comparisonID id.ComparisonID) (*results.ComparisonResult, error) {
	if string(comparisonID) != string(f.result.ComparisonID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "comparison result not found")
	}
	return &f.result, nil
}

func (f *fakeService) LatestByDocumentNumber(_ context.Context, documentType, documentNumber string) (*results.ComparisonResult, error) {
	if documentNumber != f.result.DocumentNumber {
		return nil, dErrors.New(dErrors.CodeNotFound, "no results for document")
	}
	if documentType != "" && documentType != f.result.DocumentType {
		return nil, dErrors.New(dErrors.CodeNotFound, "no results for document")
	}
	return &f.result, nil
}

func (f *fakeService) CreateLivenessSession(_ context.Context, documentType, documentNumber string) (validator.LivenessSession, error) {
	return validator.LivenessSession{SessionID: "session-1", Token: "signed-token"}, f.err
}

func (f *fakeService) CompleteLivenessSession(_ context.Context, token string) (results.ComparisonResult, error) {
	f.gotToken = token
	return f.result, f.err
}

func newRouter(service Service) http.Handler {
	r := chi.NewRouter()
	New(service, slog.New(slog.DiscardHandler)).Register(r)
	return r
}

func TestHandleValidate_StoredSubject(t *testing.T) {
	service := &fakeService{result: results.ComparisonResult{
		SubjectImageKey: "DNI-12345678-user-20250101120000-attempt-1.jpg",
		Status:          results.StatusMatchConfirmed,
	}}
	router := newRouter(service)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/validations",
		map[string]string{"subject_key": "DNI-12345678-user-20250101120000-attempt-1.jpg"})
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, service.storedCalled)
	assert.False(t, service.imageCalled)
	assert.Contains(t, rr.Body.String(), string(results.StatusMatchConfirmed))
}

func TestHandleValidate_InlineImage(t *testing.T) {
	service := &fakeService{result: results.ComparisonResult{Status: results.StatusMatchConfirmed}}
	router := newRouter(service)

	image := []byte("subject-selfie-bytes")
	req := testutil.NewJSONRequest(t, http.MethodPost, "/validations", map[string]string{
		"subject_key":  "DNI-12345678-user-20250101120000-attempt-1.jpg",
		"image_base64": base64.StdEncoding.EncodeToString(image),
	})
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, service.imageCalled)
	assert.Equal(t, image, service.gotImage)
}

func TestHandleValidate_BadInput(t *testing.T) {
	router := newRouter(&fakeService{})

	rr := testutil.DoRequest(router,
		testutil.NewJSONRequest(t, http.MethodPost, "/validations", map[string]string{}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/validations", map[string]string{
		"subject_key":  "DNI-12345678-user-20250101120000-attempt-1.jpg",
		"image_base64": "not base64!!",
	}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

// Domain failures are recorded results, not transport errors, so the handler
// returns them with a 200.
func TestHandleValidate_FailureStatusIsStillOK(t *testing.T) {
	service := &fakeService{result: results.ComparisonResult{
		Status:    results.StatusNoMatchFound,
		ErrorType: results.ErrorNoMatchFound,
	}}
	router := newRouter(service)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/validations",
		map[string]string{"subject_key": "DNI-12345678-user-20250101120000-attempt-1.jpg"})
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), string(results.ErrorNoMatchFound))
}

func TestHandleGetByComparisonID(t *testing.T) {
	service := &fakeService{result: results.ComparisonResult{
		ComparisonID: "comp_20250101_120000_abcd1234",
		Status:       results.StatusMatchConfirmed,
	}}
	router := newRouter(service)

	rr := testutil.DoRequest(router,
		testutil.NewRequest(t, http.MethodGet, "/validations/id/comp_20250101_120000_abcd1234"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = testutil.DoRequest(router,
		testutil.NewRequest(t, http.MethodGet, "/validations/id/comp_20250101_120000_missing0"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestHandleLatest(t *testing.T) {
	service := &fakeService{result: results.ComparisonResult{
		DocumentType:   "DNI",
		DocumentNumber: "12345678",
		Status:         results.StatusMatchConfirmed,
	}}
	router := newRouter(service)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/validations/12345678"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "12345678")

	rr = testutil.DoRequest(router,
		testutil.NewRequest(t, http.MethodGet, "/validations/12345678?document_type=PASSPORT"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestHandleLivenessSessionLifecycle(t *testing.T) {
	service := &fakeService{result: results.ComparisonResult{Status: results.StatusMatchConfirmed}}
	router := newRouter(service)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/liveness/sessions",
		map[string]string{"document_type": "DNI", "document_number": "12345678"}))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "signed-token")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/liveness/sessions",
		map[string]string{"document_type": "DNI"}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/liveness/sessions/complete",
		map[string]string{"token": "signed-token"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "signed-token", service.gotToken)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/liveness/sessions/complete",
		map[string]string{}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
