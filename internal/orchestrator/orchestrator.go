// Package orchestrator drives prediction runs: it reacts to ingested
// documents, pages their rows through a scoring model, persists results, and
// computes performance summaries.
package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verity-ml/predict-cli/internal/compare"
	"github.com/verity-ml/predict-cli/internal/events"
	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/registry"
	"github.com/verity-ml/predict-cli/internal/resilience"
	"github.com/verity-ml/predict-cli/internal/store"
	"github.com/verity-ml/predict-cli/internal/summary"
	"github.com/verity-ml/predict-cli/pkg/mlserve"
)

// Config tunes a prediction run.
type Config struct {
	// PageSize is how many rows are read and scored per page.
	PageSize int
	// ScoreBatchSize caps the rows sent in one scoring call.
	ScoreBatchSize int
	// Concurrency bounds the scoring calls in flight per page.
	Concurrency int
	// Retry governs each scoring call. Exhausting it fails the page.
	Retry resilience.RetryConfig
	// FailFast aborts the run on the first failed page instead of skipping it.
	FailFast bool
	// ConfidenceThreshold splits summary buckets into above/below.
	ConfidenceThreshold float64
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 30000
	}
	if c.ScoreBatchSize <= 0 {
		c.ScoreBatchSize = 250
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = summary.DefaultConfidenceThreshold
	}
	return c
}

// Orchestrator runs predictions over ingested documents.
type Orchestrator struct {
	store     store.Store
	bus       *events.Bus
	registry  *registry.Registry
	predictor mlserve.Predictor
	cfg       Config
}

// New creates an Orchestrator.
func New(st store.Store, bus *events.Bus, reg *registry.Registry, predictor mlserve.Predictor, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     st,
		bus:       bus,
		registry:  reg,
		predictor: predictor,
		cfg:       cfg.withDefaults(),
	}
}

// Run subscribes to the documents topic and processes every added document
// until the context is cancelled or the topic is removed. Events other than
// document additions are ignored.
func (o *Orchestrator) Run(ctx context.Context) error {
	sub, err := o.bus.Subscribe(events.TopicDocuments)
	if err != nil {
		return eris.Wrap(err, "orchestrator: subscribe")
	}
	defer sub.Cancel()

	zap.L().Info("orchestrator listening for documents")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case ev := <-sub.C():
			if ev.Action != model.EventActionAdd || ev.Target.Document == nil {
				continue
			}
			if _, err := o.ProcessDocument(ctx, ev.Target.Document, ""); err != nil {
				zap.L().Error("prediction run failed",
					zap.String("document_id", ev.Target.ID),
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessDocument runs one prediction over a document's rows. When modelName
// is empty the registry's default model is used; a run without a resolvable
// model is a configuration failure and marks the document errored. Documents
// with no rows still get a prediction, with an empty result set, without the
// scoring backend being called.
func (o *Orchestrator) ProcessDocument(ctx context.Context, doc *model.Document, modelName string) (*model.Prediction, error) {
	aiModel, err := o.registry.Resolve(ctx, modelName)
	if err != nil {
		o.markError(ctx, doc.ID)
		return nil, eris.Wrapf(err, "orchestrator: document %s", doc.ID)
	}

	total, err := o.store.CountDocumentRows(ctx, doc.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: count rows for %s", doc.ID)
	}

	zap.L().Info("starting prediction run",
		zap.String("document_id", doc.ID),
		zap.String("model", aiModel.Name),
		zap.Int("rows", total),
	)

	var results []model.PredictionResult
	for page := 1; total > 0; page++ {
		rowPage, err := o.store.ListDocumentRows(ctx, doc.ID, model.Page{Page: page, PageSize: o.cfg.PageSize})
		if err != nil {
			o.markError(ctx, doc.ID)
			return nil, eris.Wrapf(err, "orchestrator: list rows page %d", page)
		}

		pageResults, err := o.scorePage(ctx, aiModel, rowPage.Rows)
		if err != nil {
			if o.cfg.FailFast {
				o.markError(ctx, doc.ID)
				return nil, eris.Wrapf(err, "orchestrator: page %d", page)
			}
			// Skip the page but keep going; the gap shows up as
			// grand total minus total count in the summary.
			zap.L().Warn("page failed after retries, skipping",
				zap.String("document_id", doc.ID),
				zap.Int("page", page),
				zap.String("error_type", resilience.ClassifyError(err)),
				zap.Error(err),
			)
			if recErr := o.store.RecordFailedPage(ctx, model.FailedPage{
				DocumentID: doc.ID,
				Model:      aiModel.Name,
				Page:       page,
				PageSize:   o.cfg.PageSize,
				Error:      err.Error(),
			}); recErr != nil {
				zap.L().Error("failed to record skipped page", zap.Error(recErr))
			}
		} else {
			results = append(results, pageResults...)
		}

		if !rowPage.HasMore {
			break
		}
	}

	prediction := &model.Prediction{
		DocumentID:      doc.ID,
		Model:           aiModel.Name,
		PredictionField: doc.PredictField,
	}
	prediction, err = o.store.InsertPrediction(ctx, prediction, results)
	if err != nil {
		o.markError(ctx, doc.ID)
		return nil, eris.Wrapf(err, "orchestrator: persist prediction for %s", doc.ID)
	}

	if err := o.complete(ctx, doc.ID); err != nil {
		return nil, err
	}
	if err := o.bus.Publish(events.TopicPredictions, model.PredictionAdded(prediction)); err != nil {
		return nil, eris.Wrap(err, "orchestrator: publish prediction added")
	}

	zap.L().Info("prediction run complete",
		zap.String("document_id", doc.ID),
		zap.String("prediction_id", prediction.ID),
		zap.Int("results", len(results)),
		zap.Int("rows", total),
	)
	return prediction, nil
}

// scorePage scores one page of rows, fanning batches out to the predictor.
// Rows whose skip field already carries a value are not scored.
func (o *Orchestrator) scorePage(ctx context.Context, aiModel *model.AIModel, rows []model.DocumentRow) ([]model.PredictionResult, error) {
	type scorable struct {
		row    model.DocumentRow
		values []string
	}

	var batch []scorable
	for _, row := range rows {
		var data map[string]string
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return nil, eris.Wrapf(err, "orchestrator: row %s data", row.ID)
		}
		if aiModel.SkipField != "" && data[aiModel.SkipField] != "" {
			continue
		}
		batch = append(batch, scorable{row: row, values: registry.InputValues(aiModel, data)})
	}
	if len(batch) == 0 {
		return nil, nil
	}

	fields := registry.InputNames(aiModel)
	chunkResults := make([][]model.PredictionResult, (len(batch)+o.cfg.ScoreBatchSize-1)/o.cfg.ScoreBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for ci := range chunkResults {
		start := ci * o.cfg.ScoreBatchSize
		end := min(start+o.cfg.ScoreBatchSize, len(batch))
		chunk := batch[start:end]

		g.Go(func() error {
			values := make([][]string, len(chunk))
			for i, s := range chunk {
				values[i] = s.values
			}

			resp, err := resilience.DoVal(gctx, o.cfg.Retry, func(ctx context.Context) (*mlserve.Response, error) {
				return o.predictor.Predict(ctx, mlserve.Request{
					DeploymentID: aiModel.DeploymentID,
					Fields:       fields,
					Values:       values,
				})
			})
			if err != nil {
				return err
			}
			if len(resp.Predictions) != len(chunk) {
				return eris.Errorf("orchestrator: predictor returned %d results for %d rows",
					len(resp.Predictions), len(chunk))
			}

			out := make([]model.PredictionResult, len(chunk))
			for i, pred := range resp.Predictions {
				out[i] = model.PredictionResult{
					RowID:           chunk[i].row.ID,
					ProvidedValue:   chunk[i].row.ProvidedValue,
					PredictionValue: pred.Value,
					Confidence:      pred.Confidence,
					Agree:           compare.Values(chunk[i].row.ProvidedValue, pred.Value),
				}
			}
			chunkResults[ci] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []model.PredictionResult
	for _, chunk := range chunkResults {
		results = append(results, chunk...)
	}
	return results, nil
}

// ComputeSummary builds the performance summary for a prediction by paging
// its results through bucket counters, then attaching the document's row
// count and the number of corrections.
func (o *Orchestrator) ComputeSummary(ctx context.Context, predictionID string) (*model.PerformanceSummary, error) {
	prediction, err := o.store.GetPrediction(ctx, predictionID)
	if err != nil {
		return nil, err
	}

	builder := summary.New(o.cfg.ConfidenceThreshold)
	page := 1
	for {
		resultPage, err := o.store.ListPredictionResults(ctx, predictionID,
			model.Page{Page: page, PageSize: o.cfg.PageSize},
			store.ResultListOptions{Filter: model.ResultFilterAll})
		if err != nil {
			return nil, err
		}
		builder.AddAll(resultPage.Results)
		if !resultPage.HasMore {
			break
		}
		page++
	}

	grandTotal, err := o.store.CountDocumentRows(ctx, prediction.DocumentID)
	if err != nil {
		return nil, err
	}
	corrected, err := o.store.CountCorrections(ctx, predictionID)
	if err != nil {
		return nil, err
	}

	s := builder.WithGrandTotal(grandTotal).WithCorrectedRecords(corrected).Summary()
	return &s, nil
}

func (o *Orchestrator) complete(ctx context.Context, documentID string) error {
	if err := o.store.UpdateDocumentStatus(ctx, documentID, model.DocumentStatusCompleted); err != nil {
		return eris.Wrapf(err, "orchestrator: complete document %s", documentID)
	}
	if err := o.bus.Publish(events.TopicDocuments, model.DocumentUpdated(documentID)); err != nil {
		return eris.Wrap(err, "orchestrator: publish document updated")
	}
	return nil
}

func (o *Orchestrator) markError(ctx context.Context, documentID string) {
	if err := o.store.UpdateDocumentStatus(ctx, documentID, model.DocumentStatusError); err != nil {
		zap.L().Error("failed to mark document errored",
			zap.String("document_id", documentID), zap.Error(err))
	}
}
