package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// File represents an uploaded document for data transfer between layers.
type File struct {
	ID              uuid.UUID            `json:"id"`
	UploadedBy      string               `json:"uploaded_by"`
	FileURL         string               `json:"file_url"`
	FileName        string               `json:"file_name"`
	FileType        string               `json:"file_type"`
	ContentHash     []byte               `json:"content_hash"`
	FileSize        int64                `json:"file_size"`
	PageCount       int                  `json:"page_count"`
	Status          constants.FileStatus `json:"status"`
	ExtractedText   string               `json:"extracted_text,omitempty"`
	ConfidenceScore float64              `json:"confidence_score"`
	InvoiceID       *uuid.UUID           `json:"invoice_id,omitempty"`
	ErrorMessage    string               `json:"error_message,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}
