package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "fides/pkg/domain"
	audit "fides/pkg/platform/audit"
)

// Store persists audit entries in PostgreSQL via pgx. Audit volume dwarfs
// credential traffic, so this store sits on pgxpool rather than database/sql.
//
// Expected schema:
//
//	CREATE TABLE audit_entries (
//	    id             UUID PRIMARY KEY,
//	    actor_id       TEXT NOT NULL,
//	    action         TEXT NOT NULL,
//	    subject_id     TEXT NOT NULL DEFAULT '',
//	    resource_id    TEXT NOT NULL DEFAULT '',
//	    result         TEXT NOT NULL,
//	    laws_checked   INT[] NOT NULL DEFAULT '{}',
//	    law_violations INT[] NOT NULL DEFAULT '{}',
//	    occurred_at    TIMESTAMPTZ NOT NULL,
//	    metadata       JSONB NOT NULL DEFAULT '{}'
//	);
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_entries
			(id, actor_id, action, subject_id, resource_id, result,
			 laws_checked, law_violations, occurred_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID.String(), entry.ActorID, string(entry.Action),
		entry.SubjectID, entry.ResourceID, string(entry.Result),
		entry.LawsChecked, entry.LawViolations, entry.Timestamp, metadata,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListByActor(ctx context.Context, actorID string) ([]audit.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor_id, action, subject_id, resource_id, result,
		       laws_checked, law_violations, occurred_at, metadata
		FROM audit_entries
		WHERE actor_id = $1
		ORDER BY occurred_at ASC`, actorID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries by actor: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor_id, action, subject_id, resource_id, result,
		       laws_checked, law_violations, occurred_at, metadata
		FROM audit_entries
		ORDER BY occurred_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]audit.Entry, error) {
	var out []audit.Entry
	for rows.Next() {
		var (
			entry    audit.Entry
			rawID    string
			action   string
			result   string
			metadata []byte
		)
		if err := rows.Scan(&rawID, &entry.ActorID, &action, &entry.SubjectID,
			&entry.ResourceID, &result, &entry.LawsChecked, &entry.LawViolations,
			&entry.Timestamp, &metadata); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		auditID, err := parseAuditID(rawID)
		if err != nil {
			return nil, err
		}
		entry.ID = auditID
		entry.Action = audit.Action(action)
		entry.Result = audit.Result(result)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func parseAuditID(raw string) (id.AuditID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return id.AuditID{}, fmt.Errorf("parse audit id %q: %w", raw, err)
	}
	return id.AuditID(parsed), nil
}
