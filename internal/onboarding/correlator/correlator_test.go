package correlator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/storage"
	"vendor-onboarding/internal/storage/memory"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, wf := range []models.Workflow{
		{ID: "wf_aaaa0001", ApplicantEmail: "owner@acme.test", BusinessName: "Acme", Status: models.StatusRejected, CreatedAt: base},
		{ID: "wf_aaaa0002", ApplicantEmail: "owner@acme.test", BusinessName: "Acme", Status: models.StatusRunning, CreatedAt: base.Add(time.Hour), ExternalID: "remote-2"},
		{ID: "wf_aaaa0003", ApplicantEmail: "owner@acme.test", BusinessName: "Acme", Status: models.StatusApproved, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "wf_bbbb0001", ApplicantEmail: "cfo@globex.test", BusinessName: "Globex", Status: models.StatusRunning, CreatedAt: base, ExternalID: "2251799813685249"},
		{ID: "wf_cccc0001", ApplicantEmail: "ops@initech.test", BusinessName: "Initech", Status: models.StatusApproved, CreatedAt: base},
	} {
		wf := wf
		require.NoError(t, store.CreateWorkflow(ctx, &wf))
	}
	return store
}

func TestResolve(t *testing.T) {
	store := seedStore(t)
	c := New(store, logger.NewTestLogger(t))

	tests := []struct {
		name     string
		payload  Payload
		wantID   string
		strategy string
	}{
		{
			name:     "email without business name prefers running",
			payload:  Payload{"applicant_email": "owner@acme.test"},
			wantID:   "wf_aaaa0002",
			strategy: "applicant_email",
		},
		{
			name:     "email nested under input",
			payload:  Payload{"input": map[string]interface{}{"contact_email": "cfo@globex.test"}},
			wantID:   "wf_bbbb0001",
			strategy: "applicant_email",
		},
		{
			name:     "email with no running workflow falls back to most recent",
			payload:  Payload{"email": "ops@initech.test"},
			wantID:   "wf_cccc0001",
			strategy: "applicant_email",
		},
		{
			name:     "external id",
			payload:  Payload{"correlation_id": "remote-2"},
			wantID:   "wf_aaaa0002",
			strategy: "external_id",
		},
		{
			name:     "numeric process instance key",
			payload:  Payload{"output": map[string]interface{}{"processInstanceKey": float64(2251799813685249)}},
			wantID:   "wf_bbbb0001",
			strategy: "external_id",
		},
		{
			name:     "local workflow id",
			payload:  Payload{"workflowId": "wf_cccc0001"},
			wantID:   "wf_cccc0001",
			strategy: "workflow_id",
		},
		{
			name:     "business name only matches running",
			payload:  Payload{"variables": map[string]interface{}{"business_name": "Globex"}},
			wantID:   "wf_bbbb0001",
			strategy: "business_name",
		},
		{
			name:     "unknown email falls through to workflow id",
			payload:  Payload{"email": "stranger@example.com", "workflow_id": "wf_aaaa0001"},
			wantID:   "wf_aaaa0001",
			strategy: "workflow_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := c.Resolve(context.Background(), tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, m.Workflow.ID)
			assert.Equal(t, tt.strategy, m.Strategy)
		})
	}
}

func TestResolve_Miss(t *testing.T) {
	store := seedStore(t)
	c := New(store, logger.NewTestLogger(t))

	before, _ := store.ListWorkflows(context.Background(), models.WorkflowFilter{})

	for _, p := range []Payload{
		{},
		{"status": "APPROVED"},
		{"email": "stranger@example.com"},
		{"business_name": "Initech"}, // not running
		{"workflowId": "wf_ffffffff"},
	} {
		m, err := c.Resolve(context.Background(), p)
		assert.Nil(t, m)
		assert.True(t, stderrors.Is(err, ErrNoMatch))
	}

	after, _ := store.ListWorkflows(context.Background(), models.WorkflowFilter{})
	assert.Equal(t, before, after)
}

func TestResolve_EngineKeyAbovePrecisionLimit(t *testing.T) {
	store := seedStore(t)
	wf := models.Workflow{ID: "wf_dddd0001", ApplicantEmail: "ap@umbrella.test", BusinessName: "Umbrella", Status: models.StatusRunning, CreatedAt: base, ExternalID: "9007199254740993"}
	require.NoError(t, store.CreateWorkflow(context.Background(), &wf))
	c := New(store, logger.NewTestLogger(t))

	var p Payload
	dec := json.NewDecoder(strings.NewReader(`{"processInstanceKey": 9007199254740993}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&p))

	assert.Equal(t, "9007199254740993", p.Field("processInstanceKey"))
	m, err := c.Resolve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "wf_dddd0001", m.Workflow.ID)
	assert.Equal(t, "external_id", m.Strategy)
}

type erroringStrategy struct{}

func (erroringStrategy) Name() string { return "broken" }

func (erroringStrategy) Lookup(context.Context, storage.Store, Payload) (*models.Workflow, error) {
	return nil, stderrors.New("index unavailable")
}

func TestResolve_StrategyErrorContinuesChain(t *testing.T) {
	store := seedStore(t)
	c := New(store, logger.NewTestLogger(t), erroringStrategy{}, WorkflowID{})

	m, err := c.Resolve(context.Background(), Payload{"workflow_id": "wf_cccc0001"})
	require.NoError(t, err)
	assert.Equal(t, "workflow_id", m.Strategy)

	_, err = c.Resolve(context.Background(), Payload{"workflow_id": "wf_nope"})
	assert.True(t, stderrors.Is(err, ErrNoMatch))
	assert.Contains(t, err.Error(), "index unavailable")
}

func TestDefaultChainOrder(t *testing.T) {
	c := New(memory.New(), logger.NewNoOpLogger())
	assert.Equal(t, []string{"applicant_email", "external_id", "workflow_id", "business_name"}, c.Strategies())
}

func TestPayloadField(t *testing.T) {
	p := Payload{
		"email": "  spaced@example.com ",
		"data":  map[string]interface{}{"workflowInstanceId": "abc"},
		"count": 3,
	}
	assert.Equal(t, "spaced@example.com", p.Field("email"))
	assert.Equal(t, "abc", p.Field("workflowInstanceId"))
	assert.Equal(t, "3", p.Field("count"))
	assert.Equal(t, "", p.Field("missing"))
}
