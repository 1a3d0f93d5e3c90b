package sqlstore

import (
	"strconv"
	"strings"
)

// dialect captures the few places postgres and sqlite disagree.
type dialect struct {
	name      string
	timestamp string
	numbered  bool // $1, $2 placeholders instead of ?
}

var (
	postgresDialect = dialect{name: "postgres", timestamp: "TIMESTAMPTZ", numbered: true}
	sqliteDialect   = dialect{name: "sqlite3", timestamp: "TIMESTAMP"}
)

func dialectFor(driver string) dialect {
	if driver == "postgres" || driver == "pgx" {
		return postgresDialect
	}
	return sqliteDialect
}

// rebind rewrites ? placeholders for drivers that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d dialect) schema() []string {
	ts := d.timestamp
	return []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id              TEXT PRIMARY KEY,
			applicant_email TEXT NOT NULL,
			business_name   TEXT NOT NULL,
			status          TEXT NOT NULL,
			external_id     TEXT NOT NULL DEFAULT '',
			form_data       TEXT,
			created_at      ` + ts + ` NOT NULL,
			updated_at      ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_email ON workflows (applicant_email, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_external ON workflows (external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows (status)`,
		`CREATE TABLE IF NOT EXISTS approver_actions (
			workflow_id TEXT NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
			approver_id INTEGER NOT NULL,
			decision    TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT '',
			updated_at  ` + ts + ` NOT NULL,
			PRIMARY KEY (workflow_id, approver_id)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id          TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			type        TEXT NOT NULL,
			status      TEXT NOT NULL,
			details     TEXT NOT NULL DEFAULT '',
			created_at  ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_workflow ON transactions (workflow_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS files (
			workflow_id   TEXT NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
			file_id       TEXT NOT NULL,
			original_name TEXT NOT NULL DEFAULT '',
			filename      TEXT NOT NULL DEFAULT '',
			public_url    TEXT NOT NULL DEFAULT '',
			size          BIGINT NOT NULL DEFAULT 0,
			mime_type     TEXT NOT NULL DEFAULT '',
			created_at    ` + ts + ` NOT NULL,
			PRIMARY KEY (workflow_id, file_id)
		)`,
	}
}
