// Package mlserve provides clients for scoring rows against deployed
// prediction models.
package mlserve

import "context"

// Predictor scores a batch of rows against one model deployment.
type Predictor interface {
	Predict(ctx context.Context, req Request) (*Response, error)
}

// Request is one scoring call. Values holds one slice per row, ordered to
// match Fields.
type Request struct {
	DeploymentID string
	Fields       []string
	Values       [][]string
}

// RowPrediction is the scored value for one input row. Confidence is the
// highest class probability the model reported for the row.
type RowPrediction struct {
	Value      string
	Confidence float64
}

// Response carries one prediction per input row, in request order.
type Response struct {
	Predictions []RowPrediction
}
