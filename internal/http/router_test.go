package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verifid/internal/admin"
	adminhandler "verifid/internal/admin/handler"
	"verifid/internal/audit"
	documentshandler "verifid/internal/documents/handler"
	"verifid/internal/indexer"
	"verifid/internal/results"
	"verifid/internal/storage"
	"verifid/internal/validator"
	validatorhandler "verifid/internal/validator/handler"
	id "verifid/pkg/domain"
	dErrors "verifid/pkg/domain-errors"
)

type stubIndexer struct{}

func (stubIndexer) IndexDocument(context.Context, string) (indexer.Outcome, error) {
	return indexer.Outcome{Status: indexer.StatusIndexed, FaceCount: 1}, nil
}
func (stubIndexer) IsIndexed(context.Context, string) (bool, error) { return false, nil }

type stubValidator struct{}

func (stubValidator) ValidateStoredSubject(_ context.Context, subjectKey string) (results.ComparisonResult, error) {
	return results.ComparisonResult{SubjectImageKey: subjectKey, Status: results.StatusMatchConfirmed}, nil
}
func (stubValidator) ValidateImage(_ context.Context, subjectKey string, _ []byte) (results.ComparisonResult, error) {
	return results.ComparisonResult{SubjectImageKey: subjectKey, Status: results.StatusMatchConfirmed}, nil
}
func (stubValidator) ResultByComparisonID(context.Context, id.ComparisonID) (*results.ComparisonResult, error) {
	return nil, dErrors.New(dErrors.CodeNotFound, "no result for comparison id")
}
func (stubValidator) LatestByDocumentNumber(context.Context, string, string) (*results.ComparisonResult, error) {
	return nil, dErrors.New(dErrors.CodeNotFound, "no results for document")
}
func (stubValidator) CreateLivenessSession(context.Context, string, string) (validator.LivenessSession, error) {
	return validator.LivenessSession{SessionID: "session-1", Token: "token"}, nil
}
func (stubValidator) CompleteLivenessSession(context.Context, string) (results.ComparisonResult, error) {
	return results.ComparisonResult{}, nil
}

type stubAdmin struct{}

func (stubAdmin) FindOrphans(context.Context) (admin.OrphanReport, error) {
	return admin.OrphanReport{}, nil
}
func (stubAdmin) Reconcile(context.Context) (admin.ReconcileResult, error) {
	return admin.ReconcileResult{}, nil
}
func (stubAdmin) DeleteDocument(context.Context, id.DocumentID) error { return nil }

type stubBatch struct{}

func (stubBatch) IndexBucket(context.Context, indexer.BatchMode) (indexer.BatchReport, error) {
	return indexer.BatchReport{}, nil
}

func (stubBatch) IndexKeys(context.Context, []string) (indexer.BatchReport, error) {
	return indexer.BatchReport{}, nil
}

func newTestRouter(t *testing.T, adminToken string) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	return NewRouter(Deps{
		Documents:  documentshandler.New(stubIndexer{}, storage.NewInMemoryStore(), logger, "documents", "subject-photos", 0),
		Validator:  validatorhandler.New(stubValidator{}, logger),
		Admin:      adminhandler.New(stubAdmin{}, stubBatch{}, audit.NewPublisher(audit.NewInMemoryStore()), logger),
		AdminToken: adminToken,
		Logger:     logger,
	})
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
}

func TestRouter_ValidationRoute(t *testing.T) {
	router := newTestRouter(t, "")

	body := strings.NewReader(`{"subject_key":"DNI-12345678-user-20250101120000-attempt-1.jpg"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/validations", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(results.StatusMatchConfirmed))
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, "operator-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orphans", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/orphans", nil)
	req.Header.Set("X-Admin-Token", "operator-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_AdminDisabledWithoutToken(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orphans", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
