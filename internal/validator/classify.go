package validator

import (
	"verifid/internal/platform/config"
	"verifid/internal/results"
)

// tier is the classification of one comparison score before retry policy is
// applied.
type tier struct {
	Status     results.Status
	ErrorType  results.ErrorType
	AllowRetry bool
}

// classify maps the best similarity score onto a confidence tier. Boundaries
// are inclusive: a score exactly at a bar earns that bar's tier.
func classify(similarity float64, t config.Thresholds) tier {
	switch {
	case similarity >= t.ConfirmBar:
		return tier{Status: results.StatusMatchConfirmed, AllowRetry: false}
	case similarity >= t.PossibleBar:
		return tier{Status: results.StatusPossibleMatch, AllowRetry: false}
	case similarity >= t.LowBar:
		return tier{
			Status:     results.StatusLowConfidenceMatch,
			ErrorType:  results.ErrorLowConfidenceMatch,
			AllowRetry: true,
		}
	default:
		return tier{
			Status:     results.StatusNoMatchFound,
			ErrorType:  results.ErrorNoMatchFound,
			AllowRetry: true,
		}
	}
}
