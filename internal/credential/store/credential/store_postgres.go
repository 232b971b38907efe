package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"fides/internal/credential/models"
	id "fides/pkg/domain"
	"fides/pkg/platform/sentinel"
)

// PostgresStore persists credentials in PostgreSQL. The full aggregate is
// stored as JSONB with the lookup keys broken out into indexed columns.
//
// Expected schema:
//
//	CREATE TABLE credentials (
//	    id         UUID PRIMARY KEY,
//	    subject_id UUID NOT NULL,
//	    status     TEXT NOT NULL,
//	    payload    JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX credentials_subject_idx ON credentials (subject_id);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, credential *models.Credential) error {
	payload, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, subject_id, status, payload)
		VALUES ($1, $2, $3, $4)`,
		credential.ID.String(), credential.SubjectID.String(),
		string(credential.Status), payload,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (models.Credential, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM credentials WHERE id = $1`,
		credentialID.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("find credential: %w", err)
	}
	return decode(payload)
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]models.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM credentials WHERE subject_id = $1 ORDER BY payload->>'issued_at'`,
		subjectID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list credentials by subject: %w", err)
	}
	defer rows.Close()

	var out []models.Credential
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credential, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, credential)
	}
	return out, rows.Err()
}

// Execute runs the read-validate-mutate sequence inside a transaction with
// the row locked (SELECT ... FOR UPDATE), so concurrent operations on the
// same credential serialize at the database.
func (s *PostgresStore) Execute(
	ctx context.Context,
	credentialID id.CredentialID,
	validate func(*models.Credential) error,
	mutate func(*models.Credential),
) (models.Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Credential{}, fmt.Errorf("begin credential update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload []byte
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM credentials WHERE id = $1 FOR UPDATE`,
		credentialID.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("lock credential: %w", err)
	}

	credential, err := decode(payload)
	if err != nil {
		return models.Credential{}, err
	}
	if validate != nil {
		if err := validate(&credential); err != nil {
			return models.Credential{}, err
		}
	}
	if mutate != nil {
		mutate(&credential)
	}

	updated, err := json.Marshal(&credential)
	if err != nil {
		return models.Credential{}, fmt.Errorf("marshal credential: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE credentials
		SET status = $2, payload = $3, updated_at = now()
		WHERE id = $1`,
		credentialID.String(), string(credential.Status), updated,
	); err != nil {
		return models.Credential{}, fmt.Errorf("update credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Credential{}, fmt.Errorf("commit credential update: %w", err)
	}
	return credential, nil
}

func decode(payload []byte) (models.Credential, error) {
	var credential models.Credential
	if err := json.Unmarshal(payload, &credential); err != nil {
		return models.Credential{}, fmt.Errorf("unmarshal credential: %w", err)
	}
	return credential, nil
}
