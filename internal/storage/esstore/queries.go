package esstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	// pageSize bounds one search request; unlimited listings page with
	// search_after until a short page comes back.
	pageSize     = 1000
	approverSize = 100
)

var indexMappings = map[string]string{
	"workflows": `{"mappings":{"properties":{
		"workflowId":{"type":"keyword"},
		"applicantEmail":{"type":"keyword"},
		"businessName":{"type":"keyword"},
		"status":{"type":"keyword"},
		"externalId":{"type":"keyword"},
		"formData":{"type":"object","enabled":false},
		"createdAt":{"type":"date"},
		"updatedAt":{"type":"date"}}}}`,
	"approvers": `{"mappings":{"properties":{
		"workflowId":{"type":"keyword"},
		"approverId":{"type":"integer"},
		"decision":{"type":"keyword"},
		"reason":{"type":"text"},
		"updatedAt":{"type":"date"}}}}`,
	"transactions": `{"mappings":{"properties":{
		"id":{"type":"keyword"},
		"workflowId":{"type":"keyword"},
		"type":{"type":"keyword"},
		"status":{"type":"keyword"},
		"details":{"type":"text"},
		"createdAt":{"type":"date"}}}}`,
	"files": `{"mappings":{"properties":{
		"workflowId":{"type":"keyword"},
		"fileId":{"type":"keyword"},
		"createdAt":{"type":"date"}}}}`,
}

// statusScript moves a workflow only while it still holds params.from.
const statusScript = `if (ctx._source.status == params.from) { ctx._source.status = params.to; ctx._source.updatedAt = params.now } else { ctx.op = 'noop' }`

func termFilters(terms map[string]string) []interface{} {
	filters := []interface{}{}
	for field, value := range terms {
		if value == "" {
			continue
		}
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{field: value},
		})
	}
	return filters
}

func searchBody(filters []interface{}, size int, sort ...map[string]interface{}) map[string]interface{} {
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(filters) > 0 {
		query = map[string]interface{}{"bool": map[string]interface{}{"filter": filters}}
	}
	sorts := make([]interface{}, len(sort))
	for i, s := range sort {
		sorts[i] = s
	}
	return map[string]interface{}{
		"query": query,
		"size":  size,
		"sort":  sorts,
	}
}

func desc(field string) map[string]interface{} {
	return map[string]interface{}{field: map[string]interface{}{"order": "desc"}}
}

func asc(field string) map[string]interface{} {
	return map[string]interface{}{field: map[string]interface{}{"order": "asc"}}
}

func encode(v interface{}) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

type searchHit struct {
	Source json.RawMessage `json:"_source"`
	Sort   json.RawMessage `json:"sort"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return fmt.Errorf("%s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
}
