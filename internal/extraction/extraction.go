// Package extraction consumes the text extraction capability used to
// cross-check document numbers against what is printed on the document image.
package extraction

import (
	"context"
	"strings"
)

// Field is one extracted answer with the service's confidence in it.
type Field struct {
	Query      string
	Value      string
	Confidence float64
}

// Service is the text extraction capability.
//
//go:generate mockgen -source=extraction.go -destination=mocks/mocks.go -package=mocks Service
type Service interface {
	// AnalyzeDocument runs the given queries against a document image.
	AnalyzeDocument(ctx context.Context, image []byte, queries []string) ([]Field, error)
}

// CrossChecker validates a claimed document number against the document image.
type CrossChecker struct {
	service       Service
	minConfidence float64
}

func NewCrossChecker(service Service, minConfidence float64) *CrossChecker {
	return &CrossChecker{service: service, minConfidence: minConfidence}
}

const documentNumberQuery = "What is the document number?"

// Verify reports whether the document image supports the claimed number.
// Only fields above the confidence floor are trusted; when trusted candidates
// disagree with each other the check fails closed.
func (c *CrossChecker) Verify(ctx context.Context, image []byte, claimedNumber string) (bool, error) {
	fields, err := c.service.AnalyzeDocument(ctx, image, []string{documentNumberQuery})
	if err != nil {
		return false, err
	}

	var trusted []string
	for _, f := range fields {
		if f.Confidence >= c.minConfidence {
			trusted = append(trusted, normalize(f.Value))
		}
	}
	if len(trusted) == 0 {
		// Nothing readable at sufficient confidence: inconclusive, not a
		// mismatch.
		return true, nil
	}

	first := trusted[0]
	for _, candidate := range trusted[1:] {
		if candidate != first {
			return false, nil
		}
	}
	return first == normalize(claimedNumber), nil
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
