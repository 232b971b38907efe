//go:build integration

package containers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// schema is the store schema the integration tests run against. Production
// deployments apply the equivalent migrations out of band.
const schema = `
CREATE TABLE IF NOT EXISTS credentials (
    id         UUID PRIMARY KEY,
    subject_id UUID NOT NULL,
    status     TEXT NOT NULL,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS credentials_subject_idx ON credentials (subject_id);

CREATE TABLE IF NOT EXISTS revocations (
    id            UUID PRIMARY KEY,
    credential_id UUID NOT NULL UNIQUE,
    payload       JSONB NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_entries (
    id             UUID PRIMARY KEY,
    actor_id       TEXT NOT NULL,
    action         TEXT NOT NULL,
    subject_id     TEXT NOT NULL DEFAULT '',
    resource_id    TEXT NOT NULL DEFAULT '',
    result         TEXT NOT NULL,
    laws_checked   INT[] NOT NULL DEFAULT '{}',
    law_violations INT[] NOT NULL DEFAULT '{}',
    occurred_at    TIMESTAMPTZ NOT NULL,
    metadata       JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS audit_entries_actor_idx ON audit_entries (actor_id, occurred_at);
`

// Manager starts one container per backing service on first use and shares
// it across test suites in the same process. Containers are not terminated
// here; Ryuk reaps them when the test process exits.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	redpanda *RedpandaContainer
}

var manager = &Manager{}

// GetManager returns the process-wide container manager.
func GetManager() *Manager { return manager }

// GetPostgres returns the shared Postgres container, starting it and
// applying the schema on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
		if err := m.postgres.Apply(context.Background(), schema); err != nil {
			t.Fatalf("failed to apply schema: %v", err)
		}
	}
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

// GetRedpanda returns the shared Redpanda container, starting it on first
// use.
func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redpanda == nil {
		m.redpanda = NewRedpandaContainer(t)
	}
	return m.redpanda
}

// TruncateTables clears the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
