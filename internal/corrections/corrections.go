// Package corrections ingests human overrides for prediction results.
// Corrections are additive: applying one never mutates the original result,
// and re-applying the same correction is a no-op.
package corrections

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/verity-ml/predict-cli/internal/compare"
	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/store"
)

// Input is one corrected row as submitted by a reviewer.
type Input struct {
	PredictionRecordID string
	CorrectedValue     string
}

// Result reports what an Apply call did with the submitted corrections.
type Result struct {
	Applied          int
	SkippedUnknown   int
	SkippedUnchanged int
}

// Ingestor validates and stores prediction corrections.
type Ingestor struct {
	store store.Store
}

// NewIngestor creates a correction Ingestor.
func NewIngestor(st store.Store) *Ingestor {
	return &Ingestor{store: st}
}

// Apply stores the submitted corrections against a prediction. Corrections
// referencing unknown result records are dropped with a warning. The diff
// baseline is always the original prediction value, never a prior
// correction: submitting the original value back is a no-op even after the
// record was corrected, so a correction cannot be reverted. A value matching
// the latest stored correction is a duplicate and is not persisted again.
// Agreement is recomputed from the corrected value against the row's
// provided value.
func (in *Ingestor) Apply(ctx context.Context, predictionID string, inputs []Input) (*Result, error) {
	prediction, err := in.store.GetPrediction(ctx, predictionID)
	if err != nil {
		return nil, err
	}

	existing, err := in.store.ListCorrections(ctx, predictionID)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]string, len(existing))
	for _, c := range existing {
		latest[c.PredictionRecordID] = c.PredictionValue
	}

	var (
		result  Result
		pending []model.PredictionCorrection
	)
	for _, input := range inputs {
		record, err := in.store.GetPredictionResult(ctx, input.PredictionRecordID)
		if errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("correction references unknown result, dropping",
				zap.String("prediction_id", predictionID),
				zap.String("record_id", input.PredictionRecordID),
			)
			result.SkippedUnknown++
			continue
		}
		if err != nil {
			return nil, err
		}
		if record.PredictionID != predictionID {
			zap.L().Warn("correction references a record from another prediction, dropping",
				zap.String("prediction_id", predictionID),
				zap.String("record_id", input.PredictionRecordID),
			)
			result.SkippedUnknown++
			continue
		}

		corrected := input.CorrectedValue
		if compare.Values(record.PredictionValue, corrected) {
			result.SkippedUnchanged++
			continue
		}
		if v, ok := latest[record.ID]; ok && compare.Values(v, corrected) {
			result.SkippedUnchanged++
			continue
		}

		pending = append(pending, model.PredictionCorrection{
			DocumentID:         record.DocumentID,
			PredictionID:       predictionID,
			PredictionRecordID: record.ID,
			ProvidedValue:      record.ProvidedValue,
			PredictionValue:    corrected,
			Confidence:         record.Confidence,
			Agree:              compare.Values(record.ProvidedValue, corrected),
		})
		latest[record.ID] = corrected
		result.Applied++
	}

	if err := in.store.InsertCorrections(ctx, pending); err != nil {
		return nil, err
	}

	zap.L().Info("corrections applied",
		zap.String("prediction_id", prediction.ID),
		zap.Int("applied", result.Applied),
		zap.Int("skipped_unknown", result.SkippedUnknown),
		zap.Int("skipped_unchanged", result.SkippedUnchanged),
	)
	return &result, nil
}
