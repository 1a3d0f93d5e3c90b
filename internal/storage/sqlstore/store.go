// Package sqlstore persists workflows in PostgreSQL or SQLite through
// database/sql. The two differ only in placeholder style and timestamp type.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/storage"
)

var now = func() time.Time { return time.Now().UTC() }

type Store struct {
	db      *sql.DB
	dialect dialect
}

// New wraps an open handle. driver is the database/sql driver name.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, dialect: dialectFor(driver)}
}

// Migrate creates the tables and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

// ==========================
// Workflows
// ==========================

const workflowColumns = `id, applicant_email, business_name, status, external_id, form_data, created_at, updated_at`

func (s *Store) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	var form interface{}
	if len(wf.FormData) > 0 {
		form = string(wf.FormData)
	}
	_, err := s.exec(ctx,
		`INSERT INTO workflows (`+workflowColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.ApplicantEmail, wf.BusinessName, string(wf.Status), wf.ExternalID, form,
		wf.CreatedAt.UTC(), wf.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert workflow %s: %w", wf.ID, err)
	}
	return nil
}

func (s *Store) GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.getOne(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
}

func (s *Store) GetWorkflowByApplicantEmail(ctx context.Context, email string) (*models.Workflow, error) {
	return s.getOne(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE applicant_email = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		email)
}

func (s *Store) getOne(ctx context.Context, query string, args ...interface{}) (*models.Workflow, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
	wf, err := scanWorkflow(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select workflow: %w", err)
	}
	return wf, nil
}

func (s *Store) UpdateWorkflowStatus(ctx context.Context, id string, from, to models.WorkflowStatus) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE workflows SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), now(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("update workflow %s status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update workflow %s status: %w", id, err)
	}
	return n == 1, nil
}

func (s *Store) SetExternalID(ctx context.Context, id, externalID string) error {
	if _, err := s.exec(ctx,
		`UPDATE workflows SET external_id = ?, updated_at = ? WHERE id = ?`,
		externalID, now(), id); err != nil {
		return fmt.Errorf("set external id for %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListWorkflows(ctx context.Context, filter models.WorkflowFilter) ([]models.Workflow, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ApplicantEmail != "" {
		where = append(where, "applicant_email = ?")
		args = append(args, filter.ApplicantEmail)
	}
	if filter.BusinessName != "" {
		where = append(where, "business_name = ?")
		args = append(args, filter.BusinessName)
	}
	if filter.ExternalID != "" {
		where = append(where, "external_id = ?")
		args = append(args, filter.ExternalID)
	}

	q := `SELECT ` + workflowColumns + ` FROM workflows`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []models.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		out = append(out, *wf)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(sc scanner) (*models.Workflow, error) {
	var (
		wf     models.Workflow
		status string
		form   sql.NullString
	)
	if err := sc.Scan(&wf.ID, &wf.ApplicantEmail, &wf.BusinessName, &status, &wf.ExternalID,
		&form, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return nil, err
	}
	wf.Status = models.WorkflowStatus(status)
	if form.Valid && form.String != "" {
		wf.FormData = json.RawMessage(form.String)
	}
	return &wf, nil
}

// ==========================
// Approver actions
// ==========================

func (s *Store) UpsertApproverAction(ctx context.Context, rec *models.ApproverRecord) error {
	_, err := s.exec(ctx,
		`INSERT INTO approver_actions (workflow_id, approver_id, decision, reason, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (workflow_id, approver_id)
		 DO UPDATE SET decision = excluded.decision, reason = excluded.reason, updated_at = excluded.updated_at`,
		rec.WorkflowID, rec.Ordinal, string(rec.Decision), rec.Reason, rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert approver %d for %s: %w", rec.Ordinal, rec.WorkflowID, err)
	}
	return nil
}

func (s *Store) ListApproverActions(ctx context.Context, workflowID string) ([]models.ApproverRecord, error) {
	rows, err := s.query(ctx,
		`SELECT workflow_id, approver_id, decision, reason, updated_at
		 FROM approver_actions WHERE workflow_id = ? ORDER BY approver_id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list approver actions: %w", err)
	}
	defer rows.Close()

	out := []models.ApproverRecord{}
	for rows.Next() {
		var (
			rec      models.ApproverRecord
			decision string
		)
		if err := rows.Scan(&rec.WorkflowID, &rec.Ordinal, &decision, &rec.Reason, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan approver action: %w", err)
		}
		rec.Decision = models.Decision(decision)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ==========================
// Transactions and files
// ==========================

func (s *Store) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := s.exec(ctx,
		`INSERT INTO transactions (id, workflow_id, type, status, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.WorkflowID, tx.Type, tx.Status, tx.Details, tx.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, workflowID string, limit int) ([]models.Transaction, error) {
	q := `SELECT t.id, t.workflow_id, t.type, t.status, t.details, t.created_at,
	             COALESCE(w.business_name, ''), COALESCE(w.applicant_email, '')
	      FROM transactions t LEFT JOIN workflows w ON w.id = t.workflow_id`
	var args []interface{}
	if workflowID != "" {
		q += ` WHERE t.workflow_id = ?`
		args = append(args, workflowID)
	}
	q += ` ORDER BY t.created_at DESC, t.id DESC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.WorkflowID, &tx.Type, &tx.Status, &tx.Details, &tx.CreatedAt,
			&tx.BusinessName, &tx.ApplicantEmail); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) CreateFileRecord(ctx context.Context, f *models.FileRecord) error {
	storage.AssignFileID(f)
	_, err := s.exec(ctx,
		`INSERT INTO files (workflow_id, file_id, original_name, filename, public_url, size, mime_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.WorkflowID, f.FileID, f.OriginalName, f.Filename, f.PublicURL, f.Size, f.MimeType, f.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert file %s: %w", f.FileID, err)
	}
	return nil
}

func (s *Store) ListFileRecords(ctx context.Context, workflowID string) ([]models.FileRecord, error) {
	rows, err := s.query(ctx,
		`SELECT workflow_id, file_id, original_name, filename, public_url, size, mime_type, created_at
		 FROM files WHERE workflow_id = ? ORDER BY created_at, file_id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := []models.FileRecord{}
	for rows.Next() {
		var f models.FileRecord
		if err := rows.Scan(&f.WorkflowID, &f.FileID, &f.OriginalName, &f.Filename, &f.PublicURL,
			&f.Size, &f.MimeType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
