package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"vendor-onboarding/internal/onboarding/environment"
	"vendor-onboarding/pkg/collection"
)

// ZeebeGateway is the subset of the Camunda client used by zeebe.* steps.
type ZeebeGateway interface {
	CreateInstance(ctx context.Context, bpmnProcessID string, version int32, variables map[string]interface{}) (int64, error)
	PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, variables map[string]interface{}) (int64, error)
}

func (inv *Invoker) runStep(ctx context.Context, step collection.Step, rc *runContext) (StepResult, error) {
	switch step.Kind {
	case collection.KindHTTP:
		return inv.runHTTP(ctx, step, rc)
	case collection.KindOAuth2:
		return inv.runOAuth2(ctx, step, rc)
	case collection.KindZeebeCreateInstance:
		return inv.runCreateInstance(ctx, step, rc)
	case collection.KindZeebePublishMessage:
		return inv.runPublishMessage(ctx, step, rc)
	default:
		return StepResult{}, fmt.Errorf("unsupported step kind %q", step.Kind)
	}
}

func (inv *Invoker) runHTTP(ctx context.Context, step collection.Step, rc *runContext) (StepResult, error) {
	def := step.Request
	method := def.Method
	if method == "" {
		method = http.MethodGet
	}

	var body *bytes.Reader
	contentType := ""
	switch b := def.Body.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(render(b, rc)))
	default:
		encoded, err := json.Marshal(renderValue(b, rc))
		if err != nil {
			return StepResult{}, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequest(method, render(def.URL, rc), body)
	if err != nil {
		return StepResult{}, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range def.Headers {
		req.Header.Set(k, render(v, rc))
	}

	resp, err := inv.http.Do(ctx, req)
	if err != nil {
		return StepResult{}, err
	}

	result := StepResult{StatusCode: resp.StatusCode}
	if !resp.IsSuccess() {
		return result, fmt.Errorf("%s %s returned %d: %s", method, req.URL.Redacted(), resp.StatusCode, truncate(resp.Body, 256))
	}

	if len(step.Capture) == 0 {
		return result, nil
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return result, fmt.Errorf("decode response for capture: %w", err)
	}

	for _, name := range sortedCaptureNames(step.Capture) {
		val, err := lookupPath(doc, step.Capture[name])
		if err != nil {
			return result, fmt.Errorf("capture %q: %w", name, err)
		}
		rc.set(name, environment.Encode(val))
		result.Wrote = append(result.Wrote, name)
	}
	return result, nil
}

func (inv *Invoker) runOAuth2(ctx context.Context, step collection.Step, rc *runContext) (StepResult, error) {
	def := step.OAuth2

	cfg := clientcredentials.Config{
		ClientID:     render(def.ClientID, rc),
		ClientSecret: render(def.ClientSecret, rc),
		TokenURL:     render(def.TokenURL, rc),
	}
	for _, s := range def.Scopes {
		cfg.Scopes = append(cfg.Scopes, render(s, rc))
	}
	if len(def.EndpointParams) > 0 {
		cfg.EndpointParams = url.Values{}
		for k, v := range def.EndpointParams {
			cfg.EndpointParams.Set(k, render(v, rc))
		}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, inv.http.Standard())
	tok, err := cfg.Token(ctx)
	if err != nil {
		return StepResult{}, fmt.Errorf("token request: %w", err)
	}

	rc.set(def.TokenVariable, tok.AccessToken)
	return StepResult{Wrote: []string{def.TokenVariable}}, nil
}

func (inv *Invoker) runCreateInstance(ctx context.Context, step collection.Step, rc *runContext) (StepResult, error) {
	if inv.zeebe == nil {
		return StepResult{}, fmt.Errorf("zeebe gateway not configured")
	}
	def := step.Zeebe

	key, err := inv.zeebe.CreateInstance(ctx, render(def.BPMNProcessID, rc), def.Version, rc.subset(def.Variables))
	if err != nil {
		return StepResult{}, err
	}

	result := StepResult{}
	if def.InstanceKeyVariable != "" {
		rc.set(def.InstanceKeyVariable, strconv.FormatInt(key, 10))
		result.Wrote = append(result.Wrote, def.InstanceKeyVariable)
	}
	return result, nil
}

func (inv *Invoker) runPublishMessage(ctx context.Context, step collection.Step, rc *runContext) (StepResult, error) {
	if inv.zeebe == nil {
		return StepResult{}, fmt.Errorf("zeebe gateway not configured")
	}
	def := step.Zeebe

	correlationKey := render(def.CorrelationKey, rc)
	if strings.Contains(correlationKey, "{{") {
		return StepResult{}, fmt.Errorf("correlation key %q has unresolved variables", correlationKey)
	}

	ttl := time.Duration(def.TimeToLive) * time.Millisecond
	if _, err := inv.zeebe.PublishMessage(ctx, render(def.MessageName, rc), correlationKey, ttl, rc.subset(def.Variables)); err != nil {
		return StepResult{}, err
	}
	return StepResult{}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
