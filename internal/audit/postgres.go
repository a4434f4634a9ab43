package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists the trail so it survives restarts. Append-only by
// construction: there is no update or delete path.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id              BIGSERIAL PRIMARY KEY,
    ts              TIMESTAMPTZ NOT NULL,
    action          TEXT NOT NULL,
    document_type   TEXT NOT NULL DEFAULT '',
    document_number TEXT NOT NULL DEFAULT '',
    subject_key     TEXT NOT NULL DEFAULT '',
    comparison_id   TEXT NOT NULL DEFAULT '',
    outcome         TEXT NOT NULL DEFAULT '',
    detail          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_events_document
    ON audit_events (document_type, document_number, ts);
`

// EnsureSchema creates the table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (ts, action, document_type, document_number,
			subject_key, comparison_id, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.Timestamp,
		event.Action,
		event.DocumentType,
		event.DocumentNumber,
		event.SubjectKey,
		event.ComparisonID,
		event.Outcome,
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, documentType, documentNumber string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, action, document_type, document_number,
			subject_key, comparison_id, outcome, detail
		FROM audit_events
		WHERE ($1 = '' OR document_type = $1) AND document_number = $2
		ORDER BY ts`,
		documentType, documentNumber)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(
			&event.Timestamp,
			&event.Action,
			&event.DocumentType,
			&event.DocumentNumber,
			&event.SubjectKey,
			&event.ComparisonID,
			&event.Outcome,
			&event.Detail,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
