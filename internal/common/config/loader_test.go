package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: memory
database:
  redis:
    address: localhost:6379
trigger:
  collection_path: collections/onboarding-collection.json
approvers:
  - ordinal: 2
    email: second@example.com
  - ordinal: 1
    email: first@example.com
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:3000", cfg.Server.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.TriggerTimeout())
	assert.Equal(t, "correlation_id", cfg.Trigger.CorrelationVariable)
	assert.Len(t, cfg.Trigger.StartSequence, 3)
	assert.Len(t, cfg.Trigger.ApproverSequence, 2)
	assert.Equal(t, "onboarding:env:", cfg.Database.Redis.KeyPrefix)
	assert.True(t, cfg.UsesRedis())

	require.Equal(t, 2, cfg.ApproverCount())
	assert.Equal(t, "first@example.com", cfg.Approvers[0].Email)
	assert.Equal(t, "second@example.com", cfg.Approvers[1].Email)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("ONBOARDING_TEST_REDIS", "redis.internal:6380")

	path := writeConfig(t, `
storage:
  backend: sqlite
database:
  redis:
    address: ${ONBOARDING_TEST_REDIS}
trigger:
  collection_path: c.json
approvers:
  - ordinal: 1
    email: a@example.com
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Database.Redis.Address)
}

func TestLoadFromFile_MemoryBackendWithoutRedis(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: memory
trigger:
  collection_path: c.json
approvers:
  - ordinal: 1
    email: a@example.com
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.False(t, cfg.UsesRedis())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "no approvers",
			body: `
database:
  redis:
    address: localhost:6379
trigger:
  collection_path: c.json
`,
			wantErr: "at least one approver",
		},
		{
			name: "gap in ordinals",
			body: `
database:
  redis:
    address: localhost:6379
trigger:
  collection_path: c.json
approvers:
  - ordinal: 1
  - ordinal: 3
`,
			wantErr: "without gaps",
		},
		{
			name: "unknown backend",
			body: `
storage:
  backend: mongo
database:
  redis:
    address: localhost:6379
trigger:
  collection_path: c.json
approvers:
  - ordinal: 1
`,
			wantErr: "unknown storage.backend",
		},
		{
			name: "postgres without host",
			body: `
storage:
  backend: postgres
database:
  redis:
    address: localhost:6379
trigger:
  collection_path: c.json
approvers:
  - ordinal: 1
`,
			wantErr: "database.postgres.host",
		},
		{
			name: "sqlite without redis",
			body: `
storage:
  backend: sqlite
trigger:
  collection_path: c.json
approvers:
  - ordinal: 1
`,
			wantErr: "database.redis.address",
		},
		{
			name: "zeebe enabled without broker",
			body: `
database:
  redis:
    address: localhost:6379
camunda:
  enabled: true
trigger:
  collection_path: c.json
approvers:
  - ordinal: 1
`,
			wantErr: "camunda.broker_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"record-decision": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "record-decision"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "record-decision").MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
	assert.Equal(t, 30000, GetWorkerConfig(cfg, "unknown").Timeout)
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteConfig{Path: "/tmp/x.db", BusyTimeout: 100}.GetDSN()
	assert.Equal(t, "file:/tmp/x.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=100", dsn)
}
