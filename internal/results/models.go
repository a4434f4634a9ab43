// Package results persists the outcome of every validation attempt, success
// or failure, with a bounded retention period.
package results

import (
	"time"

	id "verifid/pkg/domain"
)

// Status is the terminal outcome of one validation attempt.
type Status string

const (
	// Match tiers, ordered by confidence.
	StatusMatchConfirmed     Status = "MATCH_CONFIRMED"
	StatusPossibleMatch      Status = "POSSIBLE_MATCH"
	StatusLowConfidenceMatch Status = "LOW_CONFIDENCE_MATCH"
	StatusNoMatchFound       Status = "NO_MATCH_FOUND"

	// Failure statuses. ErrorType carries the classification.
	StatusInvalidFilename       Status = "INVALID_FILENAME"
	StatusDocumentNotFound      Status = "DOCUMENT_NOT_FOUND"
	StatusNoFaceDetected        Status = "NO_FACE_DETECTED"
	StatusComparisonError       Status = "COMPARISON_ERROR"
	StatusLowLivenessConfidence Status = "LOW_LIVENESS_CONFIDENCE"
	StatusSystemError           Status = "SYSTEM_ERROR"
)

// IsVerified reports whether the status counts as a pass. Confirmed and
// possible matches both terminate the attempt sequence and trigger conditional
// indexing of the companion document; only the low-confidence band below them
// stays retryable.
func (s Status) IsVerified() bool {
	return s == StatusMatchConfirmed || s == StatusPossibleMatch
}

// ErrorType classifies a failure for retry policy purposes.
type ErrorType string

const (
	// Input errors. Never retryable: resubmitting the same input cannot help.
	ErrorInvalidFilename     ErrorType = "INVALID_FILENAME"
	ErrorDocumentInfoMissing ErrorType = "DOCUMENT_INFO_MISSING"
	ErrorDocumentNotFound    ErrorType = "DOCUMENT_NOT_FOUND"

	// Transient service errors. Retryable up to the attempt limit.
	ErrorPreprocessingFailed ErrorType = "PREPROCESSING_FAILED"
	ErrorIndexServiceFailed  ErrorType = "INDEX_SERVICE_FAILED"
	ErrorComparisonFailed    ErrorType = "COMPAREFACES_FAILED"
	ErrorDetectionFailed     ErrorType = "DETECTFACES_FAILED"
	ErrorStorage             ErrorType = "STORAGE_ERROR"
	ErrorSystem              ErrorType = "SYSTEM_ERROR"

	// Quality errors. Retryable up to the attempt limit, after which the
	// unindexed document is cleaned up.
	ErrorNoFaceDetected        ErrorType = "NO_FACE_DETECTED"
	ErrorLowConfidenceMatch    ErrorType = "LOW_CONFIDENCE_MATCH"
	ErrorLowLivenessConfidence ErrorType = "LOW_LIVENESS_CONFIDENCE"
	ErrorNoMatchFound          ErrorType = "NO_MATCH_FOUND"

	// Consistency errors. The recognition index and the metadata store have
	// diverged; escalated for manual reconciliation, never retried.
	ErrorRollbackFailed ErrorType = "ROLLBACK_FAILED"
)

// Retryable reports whether the policy allows another attempt for this error
// class, before the attempt limit is considered.
func (e ErrorType) Retryable() bool {
	switch e {
	case ErrorInvalidFilename, ErrorDocumentInfoMissing, ErrorDocumentNotFound, ErrorRollbackFailed:
		return false
	default:
		return true
	}
}

// ComparisonResult is one row per validation attempt.
//
// Invariant: immutable once written. At most one row per subject image key,
// which encodes the (document, attempt) pair. AllowRetry=false is a terminal
// marker for that pair.
type ComparisonResult struct {
	ComparisonID    id.ComparisonID `json:"comparison_id"`
	Timestamp       time.Time       `json:"timestamp"`
	SubjectImageKey string          `json:"subject_image_key"`
	DocumentType    string          `json:"document_type"`
	DocumentNumber  string          `json:"document_number"`
	AttemptNumber   int             `json:"attempt_number"`
	Status          Status          `json:"status"`
	ConfidenceScore float64         `json:"confidence_score"`

	// MatchedDocumentKey and PersonName identify whose document won the
	// comparison. Populated only on a positive match; under the hybrid
	// strategy the winning key can differ from the companion document.
	MatchedDocumentKey string `json:"matched_document_key,omitempty"`
	PersonName         string `json:"person_name,omitempty"`

	ErrorDetail     string    `json:"error_detail,omitempty"`
	ErrorType       ErrorType `json:"error_type,omitempty"`
	AllowRetry      bool      `json:"allow_retry"`
	DocumentIndexed bool      `json:"document_indexed"`
	Strategy        string    `json:"strategy,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Expired reports whether the record has passed its retention window.
func (r ComparisonResult) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
