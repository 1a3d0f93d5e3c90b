// internal/workers/onboarding/record-decision/models.go
package recorddecision

// Input is read from the job variables. Everything else in the variables is
// passed to the correlator untouched.
type Input struct {
	Decision string `json:"decision"`
	Status   string `json:"status"`
	Approved *bool  `json:"approved,omitempty"`
}

type Output struct {
	OnboardingWorkflowID string `json:"onboardingWorkflowId"`
	OnboardingStatus     string `json:"onboardingStatus"`
	StatusChanged        bool   `json:"statusChanged"`
	CorrelationStrategy  string `json:"correlationStrategy"`
	Matched              bool   `json:"matched"`
}
