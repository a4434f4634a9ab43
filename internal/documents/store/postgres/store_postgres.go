package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"verifid/internal/documents"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
)

// PostgresStore persists document records. The unique constraint on
// storage_key is the enforcement point for concurrent indexing of the same
// document: the losing writer observes sentinel.ErrConflict and compensates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS indexed_documents (
    document_id      TEXT PRIMARY KEY,
    face_id          TEXT NOT NULL UNIQUE,
    storage_key      TEXT NOT NULL UNIQUE,
    person_name      TEXT NOT NULL DEFAULT '',
    document_type    TEXT NOT NULL DEFAULT '',
    confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    indexed_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_indexed_documents_type ON indexed_documents (document_type);
`

// EnsureSchema creates the table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Insert(ctx context.Context, record documents.DocumentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexed_documents
			(document_id, face_id, storage_key, person_name, document_type, confidence_score, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.DocumentID.String(),
		record.FaceID.String(),
		record.StorageKey,
		record.PersonName,
		record.DocumentType,
		record.ConfidenceScore,
		record.IndexedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByStorageKey(ctx context.Context, storageKey string) (*documents.DocumentRecord, error) {
	return s.getOne(ctx, `WHERE storage_key = $1`, storageKey)
}

func (s *PostgresStore) GetByFaceID(ctx context.Context, faceID id.FaceID) (*documents.DocumentRecord, error) {
	return s.getOne(ctx, `WHERE face_id = $1`, faceID.String())
}

func (s *PostgresStore) FindByNumber(ctx context.Context, documentType, documentNumber string) (*documents.DocumentRecord, error) {
	return s.getOne(ctx,
		`WHERE document_type = $1 AND storage_key LIKE '%' || $2 || '%' ORDER BY indexed_at DESC LIMIT 1`,
		documentType, documentNumber)
}

func (s *PostgresStore) Delete(ctx context.Context, documentID id.DocumentID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM indexed_documents WHERE document_id = $1`, documentID.String())
	if err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]documents.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, face_id, storage_key, person_name, document_type, confidence_score, indexed_at
		FROM indexed_documents`)
	if err != nil {
		return nil, fmt.Errorf("list document records: %w", err)
	}
	defer rows.Close()

	var records []documents.DocumentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStore) getOne(ctx context.Context, where string, args ...any) (*documents.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, face_id, storage_key, person_name, document_type, confidence_score, indexed_at
		FROM indexed_documents `+where, args...)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get document record: %w", err)
	}
	return &record, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (documents.DocumentRecord, error) {
	var record documents.DocumentRecord
	var docID, faceID string
	err := row.Scan(&docID, &faceID, &record.StorageKey, &record.PersonName,
		&record.DocumentType, &record.ConfidenceScore, &record.IndexedAt)
	if err != nil {
		return documents.DocumentRecord{}, err
	}
	record.DocumentID = id.DocumentID(docID)
	record.FaceID = id.FaceID(faceID)
	return record, nil
}
