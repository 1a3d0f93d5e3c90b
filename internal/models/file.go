// internal/models/file.go
package models

import "time"

// FileRecord is the persisted metadata of one uploaded document.
type FileRecord struct {
	WorkflowID   string    `json:"workflowId"`
	FileID       string    `json:"fileId"`
	OriginalName string    `json:"originalName"`
	Filename     string    `json:"filename"`
	PublicURL    string    `json:"publicUrl"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	CreatedAt    time.Time `json:"createdAt"`
}
