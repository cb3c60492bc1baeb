package mlserve

import (
	"context"
	"sync"
)

// MockPredictor is a scriptable Predictor for tests. PredictFn, when set,
// handles every call; otherwise each row is answered with FixedValue and
// FixedConfidence.
type MockPredictor struct {
	PredictFn       func(ctx context.Context, req Request) (*Response, error)
	FixedValue      string
	FixedConfidence float64

	mu    sync.Mutex
	calls []Request
}

// Predict records the call and returns the scripted response.
func (m *MockPredictor) Predict(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.PredictFn != nil {
		return m.PredictFn(ctx, req)
	}

	preds := make([]RowPrediction, len(req.Values))
	for i := range req.Values {
		preds[i] = RowPrediction{Value: m.FixedValue, Confidence: m.FixedConfidence}
	}
	return &Response{Predictions: preds}, nil
}

// Calls returns a copy of every request received so far.
func (m *MockPredictor) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
