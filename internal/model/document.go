package model

import (
	"fmt"
	"time"
)

// DocumentStatus represents the lifecycle state of an ingested document.
type DocumentStatus string

const (
	DocumentStatusInProgress DocumentStatus = "InProgress"
	DocumentStatusCompleted  DocumentStatus = "Completed"
	DocumentStatusError      DocumentStatus = "Error"
	DocumentStatusDeleted    DocumentStatus = "Deleted"
)

// Document represents one ingested tabular source file and its metadata.
type Document struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Status       DocumentStatus `json:"status"`
	PredictField string         `json:"predict_field"`
	OriginalURL  string         `json:"original_url"`
	// Worksheet metadata is only set for spreadsheet sources.
	WorksheetName     string    `json:"worksheet_name,omitempty"`
	WorksheetStartRow int       `json:"worksheet_start_row,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DocumentInput holds the caller-supplied fields for a new document.
type DocumentInput struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	PredictField      string `json:"predict_field"`
	WorksheetName     string `json:"worksheet_name,omitempty"`
	WorksheetStartRow int    `json:"worksheet_start_row,omitempty"`
}

// DocumentRow is one record extracted from a document. Data holds the
// serialized source row (all columns preserved); ProvidedValue is the
// ground-truth value of the predict field, when the source carried one.
type DocumentRow struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	Data          string `json:"data"`
	ProvidedValue string `json:"provided_value,omitempty"`
}

// Page identifies one page of a paginated read. Page numbers start at 1.
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// RowPage is one page of document rows.
type RowPage struct {
	Rows    []DocumentRow `json:"rows"`
	HasMore bool          `json:"has_more"`
}

// OriginalURL builds the download path for a document's source file.
func OriginalURL(documentID, name string) string {
	return fmt.Sprintf("/file/document/%s/%s", documentID, name)
}

// PredictionURL builds the download path for a prediction's result csv.
func PredictionURL(documentID, predictionID string) string {
	return fmt.Sprintf("/file/document/%s/prediction/%s/result.csv", documentID, predictionID)
}
