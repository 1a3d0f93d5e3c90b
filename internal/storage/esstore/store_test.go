package esstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendor-onboarding/internal/models"
)

type recorded struct {
	method, path, query string
	body                map[string]interface{}
}

// fakeCluster answers with canned responses keyed by "METHOD path".
type fakeCluster struct {
	mu        sync.Mutex
	requests  []recorded
	responses map[string]fakeResponse
	// queued responses are served first, in order, for their key
	queued map[string][]fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeCluster(t *testing.T, responses map[string]fakeResponse) (*Store, *fakeCluster) {
	t.Helper()
	fc := &fakeCluster{responses: responses}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		key := r.Method + " " + r.URL.Path
		fc.mu.Lock()
		fc.requests = append(fc.requests, rec)
		resp, ok := fc.responses[key]
		if q := fc.queued[key]; len(q) > 0 {
			resp, ok = q[0], true
			fc.queued[key] = q[1:]
		}
		fc.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			resp = fakeResponse{status: http.StatusOK, body: `{}`}
		}
		w.WriteHeader(resp.status)
		_, _ = io.WriteString(w, resp.body)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return New(client, "test"), fc
}

func (fc *fakeCluster) last() recorded {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.requests[len(fc.requests)-1]
}

// ==========================
// Workflows
// ==========================

func TestCreateWorkflow(t *testing.T) {
	store, fc := newFakeCluster(t, map[string]fakeResponse{
		"PUT /test-workflows/_create/wf_1": {status: http.StatusCreated, body: `{"result":"created"}`},
	})

	err := store.CreateWorkflow(context.Background(), &models.Workflow{
		ID: "wf_1", ApplicantEmail: "owner@acme.test", BusinessName: "Acme", Status: models.StatusRunning,
	})
	require.NoError(t, err)

	req := fc.last()
	assert.Equal(t, "/test-workflows/_create/wf_1", req.path)
	assert.Contains(t, req.query, "refresh=wait_for")
	assert.Equal(t, "owner@acme.test", req.body["applicantEmail"])
}

func TestCreateWorkflow_Conflict(t *testing.T) {
	store, _ := newFakeCluster(t, map[string]fakeResponse{
		"PUT /test-workflows/_create/wf_1": {status: http.StatusConflict, body: `{"error":"version_conflict_engine_exception"}`},
	})

	err := store.CreateWorkflow(context.Background(), &models.Workflow{ID: "wf_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version_conflict")
}

func TestGetWorkflowByID(t *testing.T) {
	store, _ := newFakeCluster(t, map[string]fakeResponse{
		"GET /test-workflows/_doc/wf_1": {status: http.StatusOK, body: `{"found":true,"_source":{"workflowId":"wf_1","status":"APPROVED","createdAt":"2026-04-02T10:00:00Z"}}`},
		"GET /test-workflows/_doc/wf_x": {status: http.StatusNotFound, body: `{"found":false}`},
	})

	wf, err := store.GetWorkflowByID(context.Background(), "wf_1")
	require.NoError(t, err)
	require.NotNil(t, wf)
	assert.Equal(t, models.StatusApproved, wf.Status)
	assert.Equal(t, time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC), wf.CreatedAt.UTC())

	missing, err := store.GetWorkflowByID(context.Background(), "wf_x")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateWorkflowStatus(t *testing.T) {
	tests := []struct {
		name string
		resp fakeResponse
		want bool
	}{
		{"updated", fakeResponse{http.StatusOK, `{"result":"updated"}`}, true},
		{"script noop", fakeResponse{http.StatusOK, `{"result":"noop"}`}, false},
		{"missing document", fakeResponse{http.StatusNotFound, `{"error":"document_missing_exception"}`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fc := newFakeCluster(t, map[string]fakeResponse{
				"POST /test-workflows/_update/wf_1": tt.resp,
			})

			ok, err := store.UpdateWorkflowStatus(context.Background(), "wf_1", models.StatusRunning, models.StatusRejected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			req := fc.last()
			assert.Contains(t, req.query, "retry_on_conflict=3")
			script := req.body["script"].(map[string]interface{})
			params := script["params"].(map[string]interface{})
			assert.Equal(t, "RUNNING", params["from"])
			assert.Equal(t, "REJECTED", params["to"])
			assert.Contains(t, script["source"], "ctx.op = 'noop'")
		})
	}
}

func TestListWorkflows(t *testing.T) {
	store, fc := newFakeCluster(t, map[string]fakeResponse{
		"POST /test-workflows/_search": {status: http.StatusOK, body: `{"hits":{"hits":[
			{"_source":{"workflowId":"wf_2","applicantEmail":"owner@acme.test","status":"RUNNING"}},
			{"_source":{"workflowId":"wf_1","applicantEmail":"owner@acme.test","status":"RUNNING"}}]}}`},
	})

	list, err := store.ListWorkflows(context.Background(), models.WorkflowFilter{
		ApplicantEmail: "owner@acme.test", Status: models.StatusRunning, Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "wf_2", list[0].ID)

	req := fc.last()
	assert.Equal(t, float64(5), req.body["size"])
	filters := req.body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	assert.Len(t, filters, 2)
	sort := req.body["sort"].([]interface{})
	assert.Contains(t, sort[0].(map[string]interface{}), "createdAt")
}

func workflowPage(from, n int) fakeResponse {
	hits := make([]string, n)
	for i := range hits {
		id := fmt.Sprintf("wf_%08d", from+i)
		hits[i] = fmt.Sprintf(`{"_source":{"workflowId":%q,"status":"RUNNING"},"sort":[%d,%q]}`, id, 1700000000000-(from+i), id)
	}
	return fakeResponse{status: http.StatusOK, body: `{"hits":{"hits":[` + strings.Join(hits, ",") + `]}}`}
}

func TestListWorkflows_UnlimitedPagesPastOneRequest(t *testing.T) {
	store, fc := newFakeCluster(t, nil)
	fc.queued = map[string][]fakeResponse{
		"POST /test-workflows/_search": {workflowPage(0, pageSize), workflowPage(pageSize, 3)},
	}

	list, err := store.ListWorkflows(context.Background(), models.WorkflowFilter{Status: models.StatusRunning})
	require.NoError(t, err)
	require.Len(t, list, pageSize+3)
	assert.Equal(t, fmt.Sprintf("wf_%08d", pageSize+2), list[len(list)-1].ID)

	require.Len(t, fc.requests, 2)
	assert.Nil(t, fc.requests[0].body["search_after"])
	assert.Equal(t, float64(pageSize), fc.requests[0].body["size"])
	after := fc.requests[1].body["search_after"].([]interface{})
	assert.Equal(t, fmt.Sprintf("wf_%08d", pageSize-1), after[1])
}

func TestListWorkflows_MissingIndex(t *testing.T) {
	store, _ := newFakeCluster(t, map[string]fakeResponse{
		"POST /test-workflows/_search": {status: http.StatusNotFound, body: `{"error":"index_not_found_exception"}`},
	})

	list, err := store.ListWorkflows(context.Background(), models.WorkflowFilter{})
	assert.NoError(t, err)
	assert.Empty(t, list)
}

// ==========================
// Approvers, transactions, indices
// ==========================

func TestUpsertApproverAction_DocumentID(t *testing.T) {
	store, fc := newFakeCluster(t, nil)

	err := store.UpsertApproverAction(context.Background(), &models.ApproverRecord{
		WorkflowID: "wf_1", Ordinal: 3, Decision: models.DecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, "/test-approvers/_doc/wf_1-3", fc.last().path)
}

func TestCreateFileRecord_WithoutFileIDDoesNotOverwrite(t *testing.T) {
	store, fc := newFakeCluster(t, nil)
	ctx := context.Background()

	a := &models.FileRecord{WorkflowID: "wf_1", PublicURL: "/uploads/a.pdf"}
	b := &models.FileRecord{WorkflowID: "wf_1", PublicURL: "/uploads/b.pdf"}
	require.NoError(t, store.CreateFileRecord(ctx, a))
	first := fc.last().path
	require.NoError(t, store.CreateFileRecord(ctx, b))
	second := fc.last().path

	assert.NotEqual(t, "/test-files/_doc/wf_1-", first)
	assert.True(t, strings.HasSuffix(first, "wf_1-"+a.FileID), first)
	assert.True(t, strings.HasSuffix(second, "wf_1-"+b.FileID), second)
	assert.NotEqual(t, first, second)
}

func TestListTransactions_JoinsOwner(t *testing.T) {
	store, _ := newFakeCluster(t, map[string]fakeResponse{
		"POST /test-transactions/_search": {status: http.StatusOK, body: `{"hits":{"hits":[
			{"_source":{"id":"tx-2","workflowId":"wf_1","type":"WEBHOOK"}},
			{"_source":{"id":"tx-1","workflowId":"wf_1","type":"SUBMISSION"}},
			{"_source":{"id":"tx-0","workflowId":"wf_gone","type":"ERROR"}}]}}`},
		"GET /test-workflows/_doc/wf_1":    {status: http.StatusOK, body: `{"found":true,"_source":{"workflowId":"wf_1","businessName":"Acme","applicantEmail":"owner@acme.test"}}`},
		"GET /test-workflows/_doc/wf_gone": {status: http.StatusNotFound, body: `{"found":false}`},
	})

	txs, err := store.ListTransactions(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "Acme", txs[0].BusinessName)
	assert.Equal(t, "owner@acme.test", txs[1].ApplicantEmail)
	assert.Empty(t, txs[2].BusinessName)
}

func TestEnsureIndices_ExistingIsFine(t *testing.T) {
	responses := map[string]fakeResponse{}
	for name := range indexMappings {
		responses["PUT /test-"+name] = fakeResponse{http.StatusBadRequest, `{"error":{"type":"resource_already_exists_exception"}}`}
	}
	store, fc := newFakeCluster(t, responses)

	require.NoError(t, store.EnsureIndices(context.Background()))
	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Len(t, fc.requests, len(indexMappings))
	for _, r := range fc.requests {
		assert.True(t, strings.HasPrefix(r.path, "/test-"))
	}
}

func TestEnsureIndices_ServerError(t *testing.T) {
	responses := map[string]fakeResponse{}
	for name := range indexMappings {
		responses["PUT /test-"+name] = fakeResponse{http.StatusForbidden, `{"error":"forbidden"}`}
	}
	store, _ := newFakeCluster(t, responses)

	assert.Error(t, store.EnsureIndices(context.Background()))
}
