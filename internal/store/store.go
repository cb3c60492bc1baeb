package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/verity-ml/predict-cli/internal/model"
)

// ErrNotFound is returned when a document, prediction, or model does not
// exist. Callers must not retry.
var ErrNotFound = eris.New("store: not found")

// ResultListOptions narrows ListPredictionResults. A zero Filter means All;
// a zero ConfidenceThreshold falls back to the summary default.
type ResultListOptions struct {
	Filter              model.ResultFilter
	ConfidenceThreshold float64
}

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	Status model.DocumentStatus
	Page   model.Page
}

// Store defines the persistence interface for documents, rows, predictions,
// results, corrections, and model descriptors.
type Store interface {
	// Documents
	InsertDocument(ctx context.Context, input model.DocumentInput) (*model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status model.DocumentStatus) error
	DeleteDocument(ctx context.Context, id string) error

	// Rows
	InsertDocumentRows(ctx context.Context, rows []model.DocumentRow) error
	ListDocumentRows(ctx context.Context, documentID string, page model.Page) (*model.RowPage, error)
	CountDocumentRows(ctx context.Context, documentID string) (int, error)

	// Predictions. InsertPrediction persists the prediction and all of its
	// results in a single transaction.
	InsertPrediction(ctx context.Context, prediction *model.Prediction, results []model.PredictionResult) (*model.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*model.Prediction, error)
	ListPredictions(ctx context.Context, documentID string) ([]model.Prediction, error)
	ListPredictionResults(ctx context.Context, predictionID string, page model.Page, opts ResultListOptions) (*model.ResultPage, error)
	GetPredictionResult(ctx context.Context, id string) (*model.PredictionResult, error)

	// Corrections are append-only; the original results are never touched.
	InsertCorrections(ctx context.Context, corrections []model.PredictionCorrection) error
	ListCorrections(ctx context.Context, predictionID string) ([]model.PredictionCorrection, error)
	CountCorrections(ctx context.Context, predictionID string) (int, error)

	// Models
	InsertModel(ctx context.Context, m model.AIModel) (*model.AIModel, error)
	GetModel(ctx context.Context, name string) (*model.AIModel, error)
	GetDefaultModel(ctx context.Context) (*model.AIModel, error)
	ListModels(ctx context.Context) ([]model.AIModel, error)

	// Failed pages
	RecordFailedPage(ctx context.Context, fp model.FailedPage) error
	ListFailedPages(ctx context.Context, documentID string) ([]model.FailedPage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// normalizePage applies the default page size and clamps the page number.
func normalizePage(p model.Page) model.Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 100
	}
	return p
}

// resultFilterClause renders a filter as a SQL condition over the agree and
// confidence columns. The placeholder is the driver's marker for the
// threshold argument; the returned args slice is empty when the filter does
// not reference the threshold.
func resultFilterClause(filter model.ResultFilter, placeholder string, threshold float64) (string, []any, error) {
	switch filter {
	case "", model.ResultFilterAll:
		return "", nil, nil
	case model.ResultFilterAllDisagree:
		return "AND agree = " + falseLiteral, nil, nil
	case model.ResultFilterAllBelowConfidence:
		return "AND confidence < " + placeholder, []any{threshold}, nil
	case model.ResultFilterAgreeBelowConfidence:
		return "AND agree = " + trueLiteral + " AND confidence < " + placeholder, []any{threshold}, nil
	case model.ResultFilterDisagreeAboveConfidence:
		return "AND agree = " + falseLiteral + " AND confidence >= " + placeholder, []any{threshold}, nil
	case model.ResultFilterDisagreeBelowConfidence:
		return "AND agree = " + falseLiteral + " AND confidence < " + placeholder, []any{threshold}, nil
	default:
		return "", nil, eris.Errorf("store: unknown result filter %q", filter)
	}
}

// Boolean literals that work for both sqlite (stored as 0/1) and postgres.
const (
	trueLiteral  = "TRUE"
	falseLiteral = "FALSE"
)
