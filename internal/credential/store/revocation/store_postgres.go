package revocation

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

// PostgresStore persists revocation records in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE revocations (
//	    id            UUID PRIMARY KEY,
//	    credential_id UUID NOT NULL UNIQUE,
//	    payload       JSONB NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, revocation *models.Revocation) error {
	payload, err := json.Marshal(revocation)
	if err != nil {
		return fmt.Errorf("marshal revocation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO revocations (id, credential_id, payload)
		VALUES ($1, $2, $3)`,
		revocation.ID.String(), revocation.CredentialID.String(), payload,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert revocation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, revocationID id.RevocationID) (models.Revocation, error) {
	return s.findWhere(ctx, `id = $1`, revocationID.String())
}

func (s *PostgresStore) FindByCredential(ctx context.Context, credentialID id.CredentialID) (models.Revocation, error) {
	return s.findWhere(ctx, `credential_id = $1`, credentialID.String())
}

func (s *PostgresStore) findWhere(ctx context.Context, where, arg string) (models.Revocation, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM revocations WHERE `+where, arg,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Revocation{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Revocation{}, fmt.Errorf("find revocation: %w", err)
	}
	var revocation models.Revocation
	if err := json.Unmarshal(payload, &revocation); err != nil {
		return models.Revocation{}, fmt.Errorf("unmarshal revocation: %w", err)
	}
	return revocation, nil
}

// Execute runs the read-validate-mutate sequence with the row locked, so
// concurrent transition approvals of the same revocation serialize.
func (s *PostgresStore) Execute(
	ctx context.Context,
	revocationID id.RevocationID,
	validate func(*models.Revocation) error,
	mutate func(*models.Revocation),
) (models.Revocation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Revocation{}, fmt.Errorf("begin revocation update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload []byte
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM revocations WHERE id = $1 FOR UPDATE`,
		revocationID.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Revocation{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Revocation{}, fmt.Errorf("lock revocation: %w", err)
	}

	var revocation models.Revocation
	if err := json.Unmarshal(payload, &revocation); err != nil {
		return models.Revocation{}, fmt.Errorf("unmarshal revocation: %w", err)
	}
	if validate != nil {
		if err := validate(&revocation); err != nil {
			return models.Revocation{}, err
		}
	}
	if mutate != nil {
		mutate(&revocation)
	}

	updated, err := json.Marshal(&revocation)
	if err != nil {
		return models.Revocation{}, fmt.Errorf("marshal revocation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE revocations SET payload = $2, updated_at = now() WHERE id = $1`,
		revocationID.String(), updated,
	); err != nil {
		return models.Revocation{}, fmt.Errorf("update revocation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Revocation{}, fmt.Errorf("commit revocation update: %w", err)
	}
	return revocation, nil
}
