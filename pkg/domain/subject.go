package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	dErrors "verifid/pkg/domain-errors"
)

// SubjectRef is the correlation key extracted once at the entry boundary from
// a subject photo's storage key and threaded through the validation pipeline.
//
// Subject photo keys follow
// {documentType}-{documentNumber}-user-{timestamp}-attempt-{n}.{ext}; a legacy
// form without the attempt suffix parses with Attempt=1.
type SubjectRef struct {
	DocumentType   string
	DocumentNumber string
	Timestamp      string
	Attempt        int
}

var (
	subjectKeyPattern       = regexp.MustCompile(`^([A-Z]+)-([^-]+)-user-([^-]+)-attempt-(\d+)$`)
	legacySubjectKeyPattern = regexp.MustCompile(`^([A-Z]+)-([^-]+)-user-(.+)$`)
)

// ParseSubjectKey extracts the subject reference from a subject photo key.
//
// Errors: CodeInvalidInput when the key does not match either supported form.
func ParseSubjectKey(key string) (SubjectRef, error) {
	base := key
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}

	if m := subjectKeyPattern.FindStringSubmatch(base); m != nil {
		attempt, err := strconv.Atoi(m[4])
		if err != nil || attempt < 1 {
			return SubjectRef{}, dErrors.New(dErrors.CodeInvalidInput, "invalid attempt number in subject key")
		}
		return SubjectRef{
			DocumentType:   m[1],
			DocumentNumber: m[2],
			Timestamp:      m[3],
			Attempt:        attempt,
		}, nil
	}

	if m := legacySubjectKeyPattern.FindStringSubmatch(base); m != nil {
		return SubjectRef{
			DocumentType:   m[1],
			DocumentNumber: m[2],
			Timestamp:      m[3],
			Attempt:        1,
		}, nil
	}

	return SubjectRef{}, dErrors.New(dErrors.CodeInvalidInput, "subject key does not match expected naming convention")
}

// NewSubjectRef builds a subject reference from session metadata instead of a
// storage key (liveness entry path).
func NewSubjectRef(documentType, documentNumber string, attempt int) (SubjectRef, error) {
	if documentType == "" || documentNumber == "" {
		return SubjectRef{}, dErrors.New(dErrors.CodeInvalidInput, "document type and number are required")
	}
	if attempt < 1 {
		attempt = 1
	}
	return SubjectRef{
		DocumentType:   strings.ToUpper(documentType),
		DocumentNumber: documentNumber,
		Attempt:        attempt,
	}, nil
}

// AttemptKey correlates attempts belonging to one logical user/document pair.
func (r SubjectRef) AttemptKey() string {
	return r.DocumentType + "-" + r.DocumentNumber
}

// DocumentKey is the deterministic storage key of the companion document.
func (r SubjectRef) DocumentKey() string {
	return fmt.Sprintf("%s-%s.jpg", r.DocumentType, r.DocumentNumber)
}

func (r SubjectRef) IsZero() bool {
	return r.DocumentType == "" && r.DocumentNumber == ""
}
