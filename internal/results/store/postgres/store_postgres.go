package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"verifid/internal/results"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
)

// PostgresStore persists comparison results. Rows carry their own expiry
// timestamp; reads filter expired rows and a periodic sweep can reclaim them
// with DeleteExpired.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS comparison_results (
    comparison_id     TEXT PRIMARY KEY,
    ts                TIMESTAMPTZ NOT NULL,
    subject_image_key TEXT NOT NULL UNIQUE,
    document_type     TEXT NOT NULL DEFAULT '',
    document_number   TEXT NOT NULL DEFAULT '',
    attempt_number    INTEGER NOT NULL DEFAULT 1,
    status            TEXT NOT NULL,
    confidence_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
    matched_document_key TEXT NOT NULL DEFAULT '',
    person_name       TEXT NOT NULL DEFAULT '',
    error_detail      TEXT NOT NULL DEFAULT '',
    error_type        TEXT NOT NULL DEFAULT '',
    allow_retry       BOOLEAN NOT NULL DEFAULT FALSE,
    document_indexed  BOOLEAN NOT NULL DEFAULT FALSE,
    strategy          TEXT NOT NULL DEFAULT '',
    expires_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comparison_results_document
    ON comparison_results (document_type, document_number, ts DESC);
CREATE INDEX IF NOT EXISTS idx_comparison_results_expiry
    ON comparison_results (expires_at);
`

const columns = `comparison_id, ts, subject_image_key, document_type, document_number,
	attempt_number, status, confidence_score, matched_document_key, person_name,
	error_detail, error_type, allow_retry, document_indexed, strategy, expires_at`

// EnsureSchema creates the table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Insert(ctx context.Context, result results.ComparisonResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comparison_results (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		result.ComparisonID.String(),
		result.Timestamp,
		result.SubjectImageKey,
		result.DocumentType,
		result.DocumentNumber,
		result.AttemptNumber,
		string(result.Status),
		result.ConfidenceScore,
		result.MatchedDocumentKey,
		result.PersonName,
		result.ErrorDetail,
		string(result.ErrorType),
		result.AllowRetry,
		result.DocumentIndexed,
		result.Strategy,
		result.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert comparison result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByComparisonID(ctx context.Context, comparisonID id.ComparisonID) (*results.ComparisonResult, error) {
	return s.getOne(ctx, `WHERE comparison_id = $1 AND expires_at > now()`, comparisonID.String())
}

func (s *PostgresStore) GetBySubjectKey(ctx context.Context, subjectImageKey string) (*results.ComparisonResult, error) {
	return s.getOne(ctx, `WHERE subject_image_key = $1 AND expires_at > now()`, subjectImageKey)
}

func (s *PostgresStore) ListByDocumentNumber(ctx context.Context, documentType, documentNumber string) ([]results.ComparisonResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM comparison_results
		WHERE ($1 = '' OR document_type = $1) AND document_number = $2 AND expires_at > now()
		ORDER BY ts DESC`,
		documentType, documentNumber)
	if err != nil {
		return nil, fmt.Errorf("list comparison results: %w", err)
	}
	defer rows.Close()

	var out []results.ComparisonResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountAttempts(ctx context.Context, documentType, documentNumber string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comparison_results
		WHERE document_type = $1 AND document_number = $2 AND expires_at > now()`,
		documentType, documentNumber).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

// DeleteExpired reclaims rows past their retention window.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comparison_results WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired results: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) getOne(ctx context.Context, where string, args ...any) (*results.ComparisonResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM comparison_results `+where, args...)
	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get comparison result: %w", err)
	}
	return &result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (results.ComparisonResult, error) {
	var result results.ComparisonResult
	var comparisonID, status, errorType string
	err := row.Scan(
		&comparisonID,
		&result.Timestamp,
		&result.SubjectImageKey,
		&result.DocumentType,
		&result.DocumentNumber,
		&result.AttemptNumber,
		&status,
		&result.ConfidenceScore,
		&result.MatchedDocumentKey,
		&result.PersonName,
		&result.ErrorDetail,
		&errorType,
		&result.AllowRetry,
		&result.DocumentIndexed,
		&result.Strategy,
		&result.ExpiresAt,
	)
	if err != nil {
		return results.ComparisonResult{}, err
	}
	result.ComparisonID = id.ComparisonID(comparisonID)
	result.Status = results.Status(status)
	result.ErrorType = results.ErrorType(errorType)
	return result, nil
}
