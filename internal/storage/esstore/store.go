// Package esstore keeps workflows, approver actions, transactions and file
// metadata in Elasticsearch indices sharing one prefix.
package esstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"vendor-onboarding/internal/common/database"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/storage"
)

var now = func() time.Time { return time.Now().UTC() }

type Store struct {
	client *elasticsearch.Client
	prefix string
}

func New(client *elasticsearch.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "onboarding"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) index(name string) string {
	return s.prefix + "-" + name
}

// EnsureIndices creates the indices with their mappings. Existing indices
// are left alone.
func (s *Store) EnsureIndices(ctx context.Context) error {
	for name, mapping := range indexMappings {
		res, err := esapi.IndicesCreateRequest{
			Index: s.index(name),
			Body:  strings.NewReader(mapping),
		}.Do(ctx, s.client)
		if err != nil {
			return fmt.Errorf("create index %s: %w", s.index(name), err)
		}
		if res.IsError() && res.StatusCode != http.StatusBadRequest {
			err := responseError("create index "+s.index(name), res)
			res.Body.Close()
			return err
		}
		res.Body.Close()
	}
	return nil
}

// put indexes doc under id and waits until it is searchable.
func (s *Store) put(ctx context.Context, index, id string, doc interface{}, createOnly bool) error {
	body, err := encode(doc)
	if err != nil {
		return err
	}
	var res *esapi.Response
	if createOnly {
		res, err = esapi.CreateRequest{
			Index:      index,
			DocumentID: id,
			Body:       body,
			Refresh:    "wait_for",
		}.Do(ctx, s.client)
	} else {
		res, err = esapi.IndexRequest{
			Index:      index,
			DocumentID: id,
			Body:       body,
			Refresh:    "wait_for",
		}.Do(ctx, s.client)
	}
	if err != nil {
		return fmt.Errorf("index %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index "+index+"/"+id, res)
	}
	return nil
}

func (s *Store) search(ctx context.Context, index string, body map[string]interface{}) ([]json.RawMessage, error) {
	hits, err := s.searchPage(ctx, index, body)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// searchAll returns up to limit hits in one request, or every hit when limit
// is not positive, paging on the sort values of the last hit. body must sort
// on a unique tiebreaker.
func (s *Store) searchAll(ctx context.Context, index string, body map[string]interface{}, limit int) ([]json.RawMessage, error) {
	if limit > 0 {
		body["size"] = limit
		return s.search(ctx, index, body)
	}

	body["size"] = pageSize
	var out []json.RawMessage
	for {
		hits, err := s.searchPage(ctx, index, body)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			out = append(out, h.Source)
		}
		if len(hits) < pageSize || len(hits[len(hits)-1].Sort) == 0 {
			return out, nil
		}
		body["search_after"] = hits[len(hits)-1].Sort
	}
}

func (s *Store) searchPage(ctx context.Context, index string, body map[string]interface{}) ([]searchHit, error) {
	reader, err := encode(body)
	if err != nil {
		return nil, err
	}
	res, err := esapi.SearchRequest{
		Index:             []string{index},
		Body:              reader,
		IgnoreUnavailable: esapi.BoolPtr(true),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, responseError("search "+index, res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search %s: %w", index, err)
	}
	return parsed.Hits.Hits, nil
}

// ==========================
// Workflows
// ==========================

func (s *Store) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	return s.put(ctx, s.index("workflows"), wf.ID, wf, true)
}

func (s *Store) GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	res, err := esapi.GetRequest{Index: s.index("workflows"), DocumentID: id}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, responseError("get workflow "+id, res)
	}

	var doc struct {
		Found  bool            `json:"found"`
		Source models.Workflow `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	if !doc.Found {
		return nil, nil
	}
	return &doc.Source, nil
}

func (s *Store) GetWorkflowByApplicantEmail(ctx context.Context, email string) (*models.Workflow, error) {
	list, err := s.ListWorkflows(ctx, models.WorkflowFilter{ApplicantEmail: email, Limit: 1})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (s *Store) UpdateWorkflowStatus(ctx context.Context, id string, from, to models.WorkflowStatus) (bool, error) {
	body, err := encode(map[string]interface{}{
		"script": map[string]interface{}{
			"lang":   "painless",
			"source": statusScript,
			"params": map[string]interface{}{
				"from": string(from),
				"to":   string(to),
				"now":  now().Format(time.RFC3339Nano),
			},
		},
	})
	if err != nil {
		return false, err
	}

	retries := 3
	res, err := esapi.UpdateRequest{
		Index:           s.index("workflows"),
		DocumentID:      id,
		Body:            body,
		Refresh:         "wait_for",
		RetryOnConflict: &retries,
	}.Do(ctx, s.client)
	if err != nil {
		return false, fmt.Errorf("update workflow %s status: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, responseError("update workflow "+id, res)
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode update %s: %w", id, err)
	}
	return out.Result == "updated", nil
}

func (s *Store) SetExternalID(ctx context.Context, id, externalID string) error {
	body, err := encode(map[string]interface{}{
		"doc": map[string]interface{}{
			"externalId": externalID,
			"updatedAt":  now().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return err
	}
	res, err := esapi.UpdateRequest{
		Index:      s.index("workflows"),
		DocumentID: id,
		Body:       body,
		Refresh:    "wait_for",
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("set external id for %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("set external id for "+id, res)
	}
	return nil
}

func (s *Store) ListWorkflows(ctx context.Context, filter models.WorkflowFilter) ([]models.Workflow, error) {
	body := searchBody(termFilters(map[string]string{
		"status":         string(filter.Status),
		"applicantEmail": filter.ApplicantEmail,
		"businessName":   filter.BusinessName,
		"externalId":     filter.ExternalID,
	}), filter.Limit, desc("createdAt"), desc("workflowId"))

	hits, err := s.searchAll(ctx, s.index("workflows"), body, filter.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Workflow, 0, len(hits))
	for _, h := range hits {
		var wf models.Workflow
		if err := json.Unmarshal(h, &wf); err != nil {
			return nil, fmt.Errorf("decode workflow hit: %w", err)
		}
		out = append(out, wf)
	}
	return out, nil
}

// ==========================
// Approver actions
// ==========================

func (s *Store) UpsertApproverAction(ctx context.Context, rec *models.ApproverRecord) error {
	id := fmt.Sprintf("%s-%d", rec.WorkflowID, rec.Ordinal)
	return s.put(ctx, s.index("approvers"), id, rec, false)
}

func (s *Store) ListApproverActions(ctx context.Context, workflowID string) ([]models.ApproverRecord, error) {
	body := searchBody(termFilters(map[string]string{"workflowId": workflowID}), approverSize, asc("approverId"))
	hits, err := s.search(ctx, s.index("approvers"), body)
	if err != nil {
		return nil, err
	}
	out := make([]models.ApproverRecord, 0, len(hits))
	for _, h := range hits {
		var rec models.ApproverRecord
		if err := json.Unmarshal(h, &rec); err != nil {
			return nil, fmt.Errorf("decode approver hit: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ==========================
// Transactions and files
// ==========================

func (s *Store) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	doc := *tx
	doc.BusinessName, doc.ApplicantEmail = "", ""
	return s.put(ctx, s.index("transactions"), tx.ID, doc, true)
}

func (s *Store) ListTransactions(ctx context.Context, workflowID string, limit int) ([]models.Transaction, error) {
	body := searchBody(termFilters(map[string]string{"workflowId": workflowID}), limit, desc("createdAt"), desc("id"))
	hits, err := s.searchAll(ctx, s.index("transactions"), body, limit)
	if err != nil {
		return nil, err
	}

	owners := map[string]*models.Workflow{}
	out := make([]models.Transaction, 0, len(hits))
	for _, h := range hits {
		var tx models.Transaction
		if err := json.Unmarshal(h, &tx); err != nil {
			return nil, fmt.Errorf("decode transaction hit: %w", err)
		}
		wf, seen := owners[tx.WorkflowID]
		if !seen {
			wf, err = s.GetWorkflowByID(ctx, tx.WorkflowID)
			if err != nil {
				return nil, err
			}
			owners[tx.WorkflowID] = wf
		}
		if wf != nil {
			tx.BusinessName = wf.BusinessName
			tx.ApplicantEmail = wf.ApplicantEmail
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) CreateFileRecord(ctx context.Context, f *models.FileRecord) error {
	storage.AssignFileID(f)
	return s.put(ctx, s.index("files"), f.WorkflowID+"-"+f.FileID, f, false)
}

func (s *Store) ListFileRecords(ctx context.Context, workflowID string) ([]models.FileRecord, error) {
	body := searchBody(termFilters(map[string]string{"workflowId": workflowID}), 0, asc("createdAt"), asc("fileId"))
	hits, err := s.searchAll(ctx, s.index("files"), body, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileRecord, 0, len(hits))
	for _, h := range hits {
		var f models.FileRecord
		if err := json.Unmarshal(h, &f); err != nil {
			return nil, fmt.Errorf("decode file hit: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) Health(ctx context.Context) error {
	return database.PingElasticsearch(ctx, s.client)
}

func (s *Store) Close() error { return nil }
