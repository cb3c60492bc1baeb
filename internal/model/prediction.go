package model

import "time"

// Prediction is one completed run of the prediction service over a
// document's rows under a given model. PerformanceSummary is computed on
// read from the stored results, never persisted.
type Prediction struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	Model           string    `json:"model"`
	PredictionField string    `json:"prediction_field,omitempty"`
	PredictionURL   string    `json:"prediction_url"`
	CreatedAt       time.Time `json:"created_at"`

	PerformanceSummary *PerformanceSummary `json:"performance_summary,omitempty"`
}

// PredictionResult is one row's predicted value within a prediction.
// Agree is derived at write time from the canonicalizing compare of
// PredictionValue against ProvidedValue and is never recomputed.
type PredictionResult struct {
	ID              string  `json:"id"`
	DocumentID      string  `json:"document_id"`
	PredictionID    string  `json:"prediction_id"`
	RowID           string  `json:"row_id"`
	ProvidedValue   string  `json:"provided_value,omitempty"`
	PredictionValue string  `json:"prediction_value"`
	Confidence      float64 `json:"confidence"`
	Agree           bool    `json:"agree"`
}

// PredictionCorrection is a human-submitted override of a prediction
// result. Corrections are additive; the original result is never mutated.
type PredictionCorrection struct {
	ID                 string    `json:"id"`
	DocumentID         string    `json:"document_id"`
	PredictionID       string    `json:"prediction_id"`
	PredictionRecordID string    `json:"prediction_record_id"`
	ProvidedValue      string    `json:"provided_value,omitempty"`
	PredictionValue    string    `json:"prediction_value"`
	Confidence         float64   `json:"confidence"`
	Agree              bool      `json:"agree"`
	CreatedAt          time.Time `json:"created_at"`
}

// PerformanceSummary holds the agreement/confidence counters for one
// prediction. Exactly one of the four buckets increments per result;
// TotalCount counts every result and GrandTotal counts every document row,
// so pages skipped after retry exhaustion show up as GrandTotal − TotalCount.
type PerformanceSummary struct {
	TotalCount             int     `json:"total_count"`
	GrandTotal             int     `json:"grand_total"`
	AgreeAboveThreshold    int     `json:"agree_above_threshold"`
	AgreeBelowThreshold    int     `json:"agree_below_threshold"`
	DisagreeAboveThreshold int     `json:"disagree_above_threshold"`
	DisagreeBelowThreshold int     `json:"disagree_below_threshold"`
	CorrectedRecords       int     `json:"corrected_records"`
	ConfidenceThreshold    float64 `json:"confidence_threshold"`
}

// ResultFilter selects a subset of prediction results relative to the
// configured confidence threshold.
type ResultFilter string

const (
	ResultFilterAll                     ResultFilter = "All"
	ResultFilterAllDisagree             ResultFilter = "AllDisagree"
	ResultFilterAllBelowConfidence      ResultFilter = "AllBelowConfidence"
	ResultFilterAgreeBelowConfidence    ResultFilter = "AgreeBelowConfidence"
	ResultFilterDisagreeAboveConfidence ResultFilter = "DisagreeAboveConfidence"
	ResultFilterDisagreeBelowConfidence ResultFilter = "DisagreeBelowConfidence"
)

// ResultPage is one page of prediction results.
type ResultPage struct {
	Results []PredictionResult `json:"results"`
	HasMore bool               `json:"has_more"`
}

// FailedPage records a page of rows that exhausted the prediction retry
// budget during an orchestration run. The run still completes; the record
// exists so operators can see exactly which rows are missing results.
type FailedPage struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Model      string    `json:"model"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	Error      string    `json:"error"`
	CreatedAt  time.Time `json:"created_at"`
}
