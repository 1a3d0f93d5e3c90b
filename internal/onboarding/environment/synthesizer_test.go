package environment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/variables"
)

func testApprovers() []models.ApproverIdentity {
	return []models.ApproverIdentity{
		{Ordinal: 1, Email: "legal@example.com"},
		{Ordinal: 2, Email: "finance@example.com"},
		{Ordinal: 3, Email: "security@example.com"},
	}
}

func TestBuildInitial(t *testing.T) {
	template := variables.New()
	template.Set("engine_url", "https://engine.example.com")
	template.Set("business_name", "template-value")

	app, err := models.ParseApplication(map[string]interface{}{
		"applicant_email": "owner@acme.test",
		"business_name":   "Acme",
		"approver2_email": "cfo@acme.test",
		"uploadedFiles": []interface{}{
			map[string]interface{}{"fileId": "f1", "publicUrl": "/uploads/a.pdf"},
			map[string]interface{}{"fileId": "f2", "publicUrl": "/uploads/b.pdf"},
		},
	})
	require.NoError(t, err)

	s := NewSynthesizer(template, testApprovers())
	store := s.BuildInitial(app, "wf_1234abcd", "https://portal.example.com")

	assert.Equal(t, "https://engine.example.com", store.Value("engine_url"))
	assert.Equal(t, "owner@acme.test", store.Value(KeyContactEmail))
	assert.Equal(t, "Acme", store.Value(KeyBusinessName))

	// optional fields are present but empty
	for _, key := range []string{KeyBusinessContactNumber, KeyAddress, KeyBusinessLicenseID} {
		v, ok := store.Get(key)
		assert.True(t, ok, key)
		assert.Equal(t, "", v, key)
	}

	assert.Equal(t, "legal@example.com", store.Value("approver1_email"))
	assert.Equal(t, "cfo@acme.test", store.Value("approver2_email"))
	assert.Equal(t, "security@example.com", store.Value("approver3_email"))
	assert.Equal(t, "wf_1234abcd", store.Value(KeyWorkflowID))
	assert.Equal(t, "https://portal.example.com/uploads/a.pdf", store.Value("document_url_1"))
	assert.Equal(t, "https://portal.example.com/uploads/b.pdf", store.Value("document_url_2"))

	// the template itself is untouched
	assert.Equal(t, "template-value", template.Value("business_name"))
	assert.False(t, template.Has(KeyWorkflowID))
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		reported interface{}
		applied  int
		want     map[string]string
	}{
		{
			name:     "nil is a no-op",
			reported: nil,
			applied:  0,
			want:     map[string]string{"a": "1"},
		},
		{
			name:     "empty list is a no-op",
			reported: []interface{}{},
			applied:  0,
			want:     map[string]string{"a": "1"},
		},
		{
			name: "overwrites existing key and appends new",
			reported: []variables.Variable{
				{Key: "a", Value: "2", Enabled: true},
				{Key: "token", Value: "jwt", Enabled: true},
			},
			applied: 2,
			want:    map[string]string{"a": "2", "token": "jwt"},
		},
		{
			name: "loose maps with non-string values",
			reported: []interface{}{
				map[string]interface{}{"key": "count", "value": float64(3)},
				map[string]interface{}{"key": "ratio", "value": 0.25},
				map[string]interface{}{"key": "flag", "value": true},
				map[string]interface{}{"key": "ids", "value": []interface{}{"t1", "t2"}},
				map[string]interface{}{"key": "", "value": "dropped"},
				map[string]interface{}{"key": "nil", "value": nil},
				"not-a-map",
			},
			applied: 4,
			want: map[string]string{
				"a":     "1",
				"count": "3",
				"ratio": "0.25",
				"flag":  "true",
				"ids":   `["t1","t2"]`,
			},
		},
		{
			name: "object with values list",
			reported: map[string]interface{}{
				"values": []interface{}{
					map[string]interface{}{"key": "a", "value": "from-values"},
				},
			},
			applied: 1,
			want:    map[string]string{"a": "from-values"},
		},
		{
			name:     "plain context map",
			reported: map[string]string{"b": "2"},
			applied:  1,
			want:     map[string]string{"a": "1", "b": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := variables.New()
			store.Set("a", "1")

			applied := Merge(store, tt.reported)
			assert.Equal(t, tt.applied, applied)
			assert.Equal(t, tt.want, store.Context())
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	reported := []interface{}{
		map[string]interface{}{"key": "token", "value": "abc"},
		map[string]interface{}{"key": "task_ids", "value": map[string]interface{}{"1": "t-1"}},
	}

	once := variables.New()
	once.Set("workflow_id", "wf_1")
	Merge(once, reported)

	twice := once.Clone()
	Merge(twice, reported)

	assert.Equal(t, once.Variables(), twice.Variables())
}

func TestChanged(t *testing.T) {
	before := variables.New()
	before.Set("jwt_token", "old")
	before.Set("workflow_id", "wf_1")

	reported := []variables.Variable{
		{Key: "jwt_token", Value: "new", Enabled: true},
		{Key: "workflow_id", Value: "wf_1", Enabled: true},
		{Key: "correlation_id", Value: "777", Enabled: true},
	}

	changed := Changed(before, reported)
	require.Len(t, changed, 2)
	assert.Equal(t, "jwt_token", changed[0].Key)
	assert.Equal(t, "correlation_id", changed[1].Key)

	assert.Len(t, Changed(nil, reported), 3)
	assert.Empty(t, Changed(before, nil))
}

func TestAppendDecision(t *testing.T) {
	store := variables.New()
	AppendDecision(store, 2, models.DecisionRejected, "missing license")
	AppendDecision(store, 1, models.DecisionApproved, "")

	assert.Equal(t, "1", store.Value(KeyTargetApprover))
	assert.Equal(t, "APPROVED", store.Value(KeyApproverDecision))
	assert.Equal(t, "", store.Value(KeyRejectionReason))
	assert.Equal(t, "REJECTED", store.Value("approver2_decision"))
	assert.Equal(t, "missing license", store.Value("approver2_reason"))
	assert.Equal(t, "APPROVED", store.Value("approver1_decision"))
	assert.Equal(t, 7, store.Len())
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "42", Encode(42))
	assert.Equal(t, "2251799813685249", Encode(float64(2251799813685249)))
	assert.Equal(t, "1.5", Encode(1.5))
	assert.Equal(t, "false", Encode(false))
	assert.Equal(t, `{"a":1}`, Encode(map[string]interface{}{"a": 1}))
}

func TestLoadTemplate(t *testing.T) {
	empty, err := LoadTemplate("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	path := filepath.Join(t.TempDir(), "environment.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"base","values":[{"key":"engine_url","value":"http://engine"}]}`), 0o600))

	tpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "http://engine", tpl.Value("engine_url"))

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
