// Package memory is an in-process storage backend used by tests and the
// "memory" storage.backend setting.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/storage"
)

var now = func() time.Time { return time.Now().UTC() }

type Store struct {
	mu           sync.RWMutex
	workflows    map[string]models.Workflow
	approvers    map[string]map[int]models.ApproverRecord
	transactions []models.Transaction
	files        map[string][]models.FileRecord
}

func New() *Store {
	return &Store{
		workflows: map[string]models.Workflow{},
		approvers: map[string]map[int]models.ApproverRecord{},
		files:     map[string][]models.FileRecord{},
	}
}

func (s *Store) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = *wf
	return nil
}

func (s *Store) GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, nil
	}
	return &wf, nil
}

func (s *Store) GetWorkflowByApplicantEmail(ctx context.Context, email string) (*models.Workflow, error) {
	list, _ := s.ListWorkflows(ctx, models.WorkflowFilter{ApplicantEmail: email, Limit: 1})
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (s *Store) UpdateWorkflowStatus(ctx context.Context, id string, from, to models.WorkflowStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok || wf.Status != from {
		return false, nil
	}
	wf.Status = to
	wf.UpdatedAt = now()
	s.workflows[id] = wf
	return true, nil
}

func (s *Store) SetExternalID(ctx context.Context, id, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf, ok := s.workflows[id]; ok {
		wf.ExternalID = externalID
		wf.UpdatedAt = now()
		s.workflows[id] = wf
	}
	return nil
}

func (s *Store) ListWorkflows(ctx context.Context, filter models.WorkflowFilter) ([]models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Workflow
	for _, wf := range s.workflows {
		if filter.Status != "" && wf.Status != filter.Status {
			continue
		}
		if filter.ApplicantEmail != "" && wf.ApplicantEmail != filter.ApplicantEmail {
			continue
		}
		if filter.BusinessName != "" && wf.BusinessName != filter.BusinessName {
			continue
		}
		if filter.ExternalID != "" && wf.ExternalID != filter.ExternalID {
			continue
		}
		out = append(out, wf)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) UpsertApproverAction(ctx context.Context, rec *models.ApproverRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byOrdinal, ok := s.approvers[rec.WorkflowID]
	if !ok {
		byOrdinal = map[int]models.ApproverRecord{}
		s.approvers[rec.WorkflowID] = byOrdinal
	}
	byOrdinal[rec.Ordinal] = *rec
	return nil
}

func (s *Store) ListApproverActions(ctx context.Context, workflowID string) ([]models.ApproverRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ApproverRecord, 0, len(s.approvers[workflowID]))
	for _, rec := range s.approvers[workflowID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, workflowID string, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if workflowID != "" && tx.WorkflowID != workflowID {
			continue
		}
		if wf, ok := s.workflows[tx.WorkflowID]; ok {
			tx.BusinessName = wf.BusinessName
			tx.ApplicantEmail = wf.ApplicantEmail
		}
		out = append(out, tx)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateFileRecord(ctx context.Context, f *models.FileRecord) error {
	storage.AssignFileID(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.WorkflowID] = append(s.files[f.WorkflowID], *f)
	return nil
}

func (s *Store) ListFileRecords(ctx context.Context, workflowID string) ([]models.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileRecord, len(s.files[workflowID]))
	copy(out, s.files[workflowID])
	return out, nil
}

func (s *Store) Health(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
