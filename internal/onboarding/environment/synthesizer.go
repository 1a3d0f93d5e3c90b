// Package environment builds and evolves the per-workflow variable set that
// the external step sequences read from and report back into.
package environment

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/variables"
)

// Variable keys written by the synthesizer.
const (
	KeyContactEmail          = "contact_email"
	KeyBusinessName          = "business_name"
	KeyBusinessContactNumber = "business_contact_number"
	KeyAddress               = "address"
	KeyBusinessLicenseID     = "business_license_id"
	KeyWorkflowID            = "workflow_id"

	KeyTargetApprover   = "target_approver"
	KeyApproverDecision = "approver_decision"
	KeyRejectionReason  = "rejection_reason"
)

// ApproverEmailKey returns "approver<N>_email".
func ApproverEmailKey(ordinal int) string {
	return fmt.Sprintf("approver%d_email", ordinal)
}

// ApproverDecisionKey returns "approver<N>_decision".
func ApproverDecisionKey(ordinal int) string {
	return fmt.Sprintf("approver%d_decision", ordinal)
}

// ApproverReasonKey returns "approver<N>_reason".
func ApproverReasonKey(ordinal int) string {
	return fmt.Sprintf("approver%d_reason", ordinal)
}

// DocumentURLKey returns "document_url_<i>" for the 1-based upload index.
func DocumentURLKey(index int) string {
	return fmt.Sprintf("document_url_%d", index)
}

// Synthesizer seeds variable stores from a base template and the configured
// approver identities.
type Synthesizer struct {
	template  *variables.Store
	approvers []models.ApproverIdentity
}

// NewSynthesizer creates a Synthesizer. A nil template starts from an empty set.
func NewSynthesizer(template *variables.Store, approvers []models.ApproverIdentity) *Synthesizer {
	if template == nil {
		template = variables.New()
	}
	return &Synthesizer{template: template, approvers: approvers}
}

// ApproverCount is the number of approval gates.
func (s *Synthesizer) ApproverCount() int {
	return len(s.approvers)
}

// BuildInitial returns a fresh store for a newly submitted workflow. Every
// key a step may reference is present, optional ones as "".
func (s *Synthesizer) BuildInitial(app *models.Application, workflowID, baseURL string) *variables.Store {
	store := s.template.Clone()
	store.ID = workflowID
	store.Name = fmt.Sprintf("onboarding-%s", workflowID)

	store.Set(KeyContactEmail, app.ApplicantEmail)
	store.Set(KeyBusinessName, app.BusinessName)
	store.Set(KeyBusinessContactNumber, app.BusinessContactNumber)
	store.Set(KeyAddress, app.Address)
	store.Set(KeyBusinessLicenseID, app.BusinessLicenseID)

	for _, approver := range s.approvers {
		key := ApproverEmailKey(approver.Ordinal)
		email := approver.Email
		if override := app.Field(key); override != "" {
			email = override
		}
		store.Set(key, email)
	}

	store.Set(KeyWorkflowID, workflowID)

	for i, f := range app.UploadedFiles {
		store.Set(DocumentURLKey(i+1), baseURL+f.PublicURL)
	}

	return store
}

// AppendDecision writes the approver decision under both the plain and the
// ordinal-qualified names. The external collection reads both.
func AppendDecision(store *variables.Store, ordinal int, decision models.Decision, reason string) {
	store.Set(KeyTargetApprover, strconv.Itoa(ordinal))
	store.Set(KeyApproverDecision, string(decision))
	store.Set(KeyRejectionReason, reason)
	store.Set(ApproverDecisionKey(ordinal), string(decision))
	store.Set(ApproverReasonKey(ordinal), reason)
}

// Merge folds reported variables into store, overwriting by key, and returns
// how many entries were applied. reported may be a []variables.Variable, a
// list of loose maps, a map[string]string, or an object holding the list
// under "values".
func Merge(store *variables.Store, reported interface{}) int {
	applied := 0
	for _, v := range normalize(reported) {
		store.Put(v)
		applied++
	}
	return applied
}

// Changed returns the reported variables that are new or differ from before.
// Writing only these back leaves concurrent edits to other keys intact.
func Changed(before *variables.Store, reported interface{}) []variables.Variable {
	var out []variables.Variable
	for _, v := range normalize(reported) {
		if before != nil {
			if prev, ok := before.Get(v.Key); ok && prev == v.Value {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

func normalize(reported interface{}) []variables.Variable {
	switch r := reported.(type) {
	case nil:
		return nil
	case []variables.Variable:
		out := make([]variables.Variable, 0, len(r))
		for _, v := range r {
			if v.Key != "" {
				out = append(out, v)
			}
		}
		return out
	case *variables.Store:
		if r == nil {
			return nil
		}
		return r.Variables()
	case map[string]string:
		out := make([]variables.Variable, 0, len(r))
		for _, k := range sortedKeys(r) {
			out = append(out, variables.Variable{Key: k, Value: r[k], Type: "default", Enabled: true})
		}
		return out
	case []map[string]interface{}:
		out := make([]variables.Variable, 0, len(r))
		for _, m := range r {
			if v, ok := fromLooseMap(m); ok {
				out = append(out, v)
			}
		}
		return out
	case []interface{}:
		out := make([]variables.Variable, 0, len(r))
		for _, item := range r {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if v, ok := fromLooseMap(m); ok {
				out = append(out, v)
			}
		}
		return out
	case map[string]interface{}:
		if values, ok := r["values"]; ok {
			return normalize(values)
		}
		return nil
	default:
		return nil
	}
}

func fromLooseMap(m map[string]interface{}) (variables.Variable, bool) {
	key, _ := m["key"].(string)
	if key == "" {
		return variables.Variable{}, false
	}
	raw, present := m["value"]
	if !present || raw == nil {
		return variables.Variable{}, false
	}

	v := variables.Variable{Key: key, Value: Encode(raw), Type: "default", Enabled: true}
	if t, ok := m["type"].(string); ok && t != "" {
		v.Type = t
	}
	if e, ok := m["enabled"].(bool); ok {
		v.Enabled = e
	}
	return v, true
}

// Encode renders a reported value as a variable string without losing
// information: strings verbatim, numbers in decimal, booleans as true/false,
// everything else as JSON.
func Encode(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
