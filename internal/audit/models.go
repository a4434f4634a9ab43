package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp      time.Time
	Action         string
	DocumentType   string
	DocumentNumber string
	SubjectKey     string
	ComparisonID   string
	Outcome        string
	Detail         string
}

// Actions emitted by the indexing and validation flows.
const (
	ActionDocumentIndexed   = "document.indexed"
	ActionIndexRolledBack   = "document.index_rolled_back"
	ActionRollbackFailed    = "document.rollback_failed"
	ActionValidationResult  = "validation.result"
	ActionAttemptsExhausted = "validation.attempts_exhausted"
	ActionOrphanDeleted     = "admin.orphan_deleted"
)
