package collection

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "name": "Vendor Onboarding",
  "version": "2.1.0",
  "steps": [
    {"name": "1. Get JWT Token", "kind": "oauth2",
     "oauth2": {"tokenUrl": "{{auth_url}}/token", "clientId": "{{client_id}}", "clientSecret": "{{client_secret}}", "tokenVariable": "jwt_token"}},
    {"name": "2. Start Onboarding Workflow", "kind": "http",
     "request": {"method": "POST", "url": "{{engine_url}}/workflow", "body": {"name": "vendor_onboarding"}},
     "capture": {"correlation_id": "workflowId"}},
    {"name": "4a. Submit Single Approver Response", "kind": "zeebe.publish_message",
     "zeebe": {"messageName": "approver-decision", "correlationKey": "{{workflow_id}}"}}
  ]
}`

func TestParseAndResolve(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "2.1.0", c.Version)
	assert.Equal(t, []string{"1. Get JWT Token", "2. Start Onboarding Workflow", "4a. Submit Single Approver Response"}, c.Names())

	steps, err := c.Resolve([]string{"4a. Submit Single Approver Response", "1. Get JWT Token"})
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, KindZeebePublishMessage, steps[0].Kind)
	assert.Equal(t, KindOAuth2, steps[1].Kind)

	_, err = c.Resolve([]string{"1. Get JWT Token", "9. Missing"})
	assert.True(t, errors.Is(err, ErrUnknownStep))
}

func TestValidate(t *testing.T) {
	c := &Collection{Steps: []Step{
		{Name: "a", Kind: KindHTTP},
		{Name: "a", Kind: "ftp"},
		{Name: "", Kind: KindOAuth2, OAuth2: &OAuth2Spec{TokenURL: "x"}},
		{Name: "z", Kind: KindZeebeCreateInstance, Zeebe: &ZeebeSpec{}},
		{Name: "ok", Kind: KindHTTP, Request: &HTTPRequest{Method: "GET", URL: "http://x"}},
	}}

	problems := c.Validate()
	assert.Len(t, problems, 6)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collection.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Vendor Onboarding", c.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
