// pkg/collection/schema.go
package collection

// Step kinds understood by the trigger invoker.
const (
	KindHTTP                = "http"
	KindOAuth2              = "oauth2"
	KindZeebeCreateInstance = "zeebe.create_instance"
	KindZeebePublishMessage = "zeebe.publish_message"
)

// Collection is a named, versioned set of scripted external steps.
type Collection struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	Description string `json:"description,omitempty"`
	Steps       []Step `json:"steps"`
}

// Step is one externally visible action. Exactly one of Request, OAuth2 or
// Zeebe is set, matching Kind.
type Step struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`

	Request *HTTPRequest      `json:"request,omitempty"`
	Capture map[string]string `json:"capture,omitempty"` // variable -> dotted response path

	OAuth2 *OAuth2Spec `json:"oauth2,omitempty"`
	Zeebe  *ZeebeSpec  `json:"zeebe,omitempty"`
}

// HTTPRequest is a templated request. Strings anywhere in URL, Headers or
// Body may contain {{variable}} placeholders.
type HTTPRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
}

// OAuth2Spec describes a client-credentials token request.
type OAuth2Spec struct {
	TokenURL       string            `json:"tokenUrl"`
	ClientID       string            `json:"clientId"`
	ClientSecret   string            `json:"clientSecret"`
	Scopes         []string          `json:"scopes,omitempty"`
	EndpointParams map[string]string `json:"endpointParams,omitempty"`
	TokenVariable  string            `json:"tokenVariable"`
}

// ZeebeSpec drives a Camunda 8 command.
type ZeebeSpec struct {
	// zeebe.create_instance
	BPMNProcessID       string `json:"bpmnProcessId,omitempty"`
	Version             int32  `json:"version,omitempty"` // 0 selects the latest deployed version
	InstanceKeyVariable string `json:"instanceKeyVariable,omitempty"`

	// zeebe.publish_message
	MessageName    string `json:"messageName,omitempty"`
	CorrelationKey string `json:"correlationKey,omitempty"`
	TimeToLive     int    `json:"timeToLive,omitempty"` // milliseconds

	// Variables restricts which context variables are sent; empty sends all.
	Variables []string `json:"variables,omitempty"`
}
