package model

import "time"

// Document represents a stored patient file in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// Documents are immutable after creation; only deletion is supported.
type Document struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	StoragePath      string    `json:"storage_path"`
	Size             int64     `json:"size"`
	ContentType      string    `json:"content_type"`
	Category         Category  `json:"category"`
	UserID           string    `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
}
