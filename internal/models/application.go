// internal/models/application.go
package models

import "encoding/json"

// Application is the vendor onboarding form as submitted by the applicant.
// Raw keeps every submitted field so approver email overrides and unknown
// fields survive into FormData.
type Application struct {
	ApplicantEmail        string         `json:"applicant_email"`
	BusinessName          string         `json:"business_name"`
	BusinessContactNumber string         `json:"business_contact_number,omitempty"`
	Address               string         `json:"address,omitempty"`
	BusinessLicenseID     string         `json:"business_license_id,omitempty"`
	UploadedFiles         []UploadedFile `json:"uploadedFiles,omitempty"`

	Raw map[string]interface{} `json:"-"`
}

// UploadedFile is a reference to a file already stored and publicly reachable.
type UploadedFile struct {
	FileID       string `json:"fileId"`
	OriginalName string `json:"originalName"`
	PublicURL    string `json:"publicUrl"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
}

// ParseApplication decodes a loose form map into an Application.
func ParseApplication(form map[string]interface{}) (*Application, error) {
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	var app Application
	if err := json.Unmarshal(raw, &app); err != nil {
		return nil, err
	}
	app.Raw = form
	return &app, nil
}

// Field returns a string form field, or "" when absent or not a string.
func (a *Application) Field(key string) string {
	if a == nil || a.Raw == nil {
		return ""
	}
	if s, ok := a.Raw[key].(string); ok {
		return s
	}
	return ""
}
