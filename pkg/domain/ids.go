package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "verifid/pkg/domain-errors"
)

// Identifier types for the verification domain.
//
// Usage: construct via the New*/Parse* helpers at trust boundaries; direct
// casting bypasses validation.
type (
	// ComparisonID identifies one validation attempt's persisted result.
	ComparisonID string

	// DocumentID identifies one indexed identity document.
	DocumentID string

	// FaceID is the identifier the recognition service assigns to an
	// indexed face. Opaque; never generated locally.
	FaceID string

	// LivenessSessionID identifies a recognition-service liveness session.
	LivenessSessionID string
)

const comparisonIDPrefix = "comp_"

// NewComparisonID generates a sortable comparison identifier,
// e.g. comp_20240101_153045_1a2b3c4d.
func NewComparisonID(now time.Time) ComparisonID {
	suffix := uuid.NewString()[:8]
	return ComparisonID(comparisonIDPrefix + now.UTC().Format("20060102_150405") + "_" + suffix)
}

// ParseComparisonID validates an externally supplied comparison identifier.
func ParseComparisonID(s string) (ComparisonID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "comparison_id cannot be empty")
	}
	if !strings.HasPrefix(s, comparisonIDPrefix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid comparison_id format")
	}
	return ComparisonID(s), nil
}

func (c ComparisonID) String() string { return string(c) }

func (c ComparisonID) IsNil() bool { return c == "" }

// NewDocumentID derives a unique document identifier from the storage key,
// e.g. dni-12345678_20240101_153045. The timestamp suffix keeps re-indexing
// after administrative deletion from colliding with the old identifier.
func NewDocumentID(storageKey string, now time.Time) DocumentID {
	base := storageKey
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return DocumentID(b.String() + "_" + now.UTC().Format("20060102_150405"))
}

func (d DocumentID) String() string { return string(d) }

func (d DocumentID) IsNil() bool { return d == "" }

func (f FaceID) String() string { return string(f) }

func (f FaceID) IsNil() bool { return f == "" }

func (s LivenessSessionID) String() string { return string(s) }

func (s LivenessSessionID) IsNil() bool { return s == "" }
