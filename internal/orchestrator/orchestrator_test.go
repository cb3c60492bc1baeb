package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-ml/predict-cli/internal/events"
	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/registry"
	"github.com/verity-ml/predict-cli/internal/resilience"
	"github.com/verity-ml/predict-cli/internal/store"
	"github.com/verity-ml/predict-cli/pkg/mlserve"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     1.0,
		ShouldRetry:    func(error) bool { return true },
	}
}

type fixture struct {
	store     store.Store
	bus       *events.Bus
	registry  *registry.Registry
	predictor *mlserve.MockPredictor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	return &fixture{
		store:     st,
		bus:       events.NewBus(true),
		registry:  registry.New(st),
		predictor: &mlserve.MockPredictor{FixedValue: "Tech", FixedConfidence: 0.9},
	}
}

func (f *fixture) orchestrator(cfg Config) *Orchestrator {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fastRetry()
	}
	return New(f.store, f.bus, f.registry, f.predictor, cfg)
}

func (f *fixture) seedModel(t *testing.T, m model.AIModel) {
	t.Helper()
	if m.Name == "" {
		m.Name = "industry-classifier"
	}
	if m.DeploymentID == "" {
		m.DeploymentID = "dep-1"
	}
	if m.Label == "" {
		m.Label = "industry"
	}
	if m.Inputs == nil {
		m.Inputs = []model.InputField{{Name: "description"}}
	}
	_, err := f.store.InsertModel(context.Background(), m)
	require.NoError(t, err)
}

func (f *fixture) seedDocument(t *testing.T, rows ...model.DocumentRow) *model.Document {
	t.Helper()
	doc, err := f.store.InsertDocument(context.Background(), model.DocumentInput{
		Name:         "accounts.csv",
		PredictField: "industry",
	})
	require.NoError(t, err)
	for i := range rows {
		rows[i].DocumentID = doc.ID
	}
	if len(rows) > 0 {
		require.NoError(t, f.store.InsertDocumentRows(context.Background(), rows))
	}
	return doc
}

func row(name, description, provided string) model.DocumentRow {
	return model.DocumentRow{
		Data:          fmt.Sprintf(`{"name":%q,"description":%q,"industry":%q}`, name, description, provided),
		ProvidedValue: provided,
	}
}

func TestProcessDocument_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})
	doc := f.seedDocument(t,
		row("Acme", "makes anvils", "Tech"),
		row("Globex", "power plants", "Energy"),
	)
	o := f.orchestrator(Config{})
	ctx := context.Background()

	pred, err := o.ProcessDocument(ctx, doc, "")
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, "industry-classifier", pred.Model)

	fetched, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCompleted, fetched.Status)

	page, err := f.store.ListPredictionResults(ctx, pred.ID,
		model.Page{Page: 1, PageSize: 10}, store.ResultListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)

	// Mock always answers "Tech": one agree, one disagree.
	agrees := 0
	for _, r := range page.Results {
		assert.Equal(t, "Tech", r.PredictionValue)
		if r.Agree {
			agrees++
		}
	}
	assert.Equal(t, 1, agrees)
}

func TestProcessDocument_ExplicitModelOverridesDefault(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Name: "default-model", Default: true})
	f.seedModel(t, model.AIModel{Name: "special-model", DeploymentID: "dep-special"})
	doc := f.seedDocument(t, row("Acme", "anvils", "Tech"))
	o := f.orchestrator(Config{})

	pred, err := o.ProcessDocument(context.Background(), doc, "special-model")
	require.NoError(t, err)
	assert.Equal(t, "special-model", pred.Model)

	calls := f.predictor.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "dep-special", calls[0].DeploymentID)
}

func TestProcessDocument_NoModelIsConfigurationFailure(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, row("Acme", "anvils", "Tech"))
	o := f.orchestrator(Config{})
	ctx := context.Background()

	_, err := o.ProcessDocument(ctx, doc, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)

	fetched, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusError, fetched.Status)

	// No prediction call was ever made.
	assert.Empty(t, f.predictor.Calls())
}

func TestProcessDocument_ZeroRowsStoresEmptyPrediction(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})
	doc := f.seedDocument(t)
	o := f.orchestrator(Config{})
	ctx := context.Background()

	sub, err := f.bus.Subscribe(events.TopicPredictions)
	require.NoError(t, err)
	defer sub.Cancel()

	pred, err := o.ProcessDocument(ctx, doc, "")
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.NotEmpty(t, pred.ID)
	assert.Empty(t, f.predictor.Calls())

	fetched, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCompleted, fetched.Status)

	preds, err := f.store.ListPredictions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, preds, 1)

	rp, err := f.store.ListPredictionResults(ctx, pred.ID,
		model.Page{Page: 1, PageSize: 10}, store.ResultListOptions{})
	require.NoError(t, err)
	assert.Empty(t, rp.Results)

	s, err := o.ComputeSummary(ctx, pred.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalCount)

	select {
	case ev := <-sub.C():
		assert.Equal(t, model.EventActionAdd, ev.Action)
		assert.Equal(t, pred.ID, ev.Target.ID)
	case <-time.After(time.Second):
		t.Fatal("no prediction event published")
	}
}

func TestProcessDocument_RetrySucceedsOnThirdAttempt(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})
	doc := f.seedDocument(t, row("Acme", "anvils", "Tech"))

	var attempts int32
	f.predictor.PredictFn = func(ctx context.Context, req mlserve.Request) (*mlserve.Response, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return nil, resilience.NewTransientError(fmt.Errorf("scoring 503"), 503)
		}
		preds := make([]mlserve.RowPrediction, len(req.Values))
		for i := range preds {
			preds[i] = mlserve.RowPrediction{Value: "Tech", Confidence: 0.9}
		}
		return &mlserve.Response{Predictions: preds}, nil
	}
	o := f.orchestrator(Config{})
	ctx := context.Background()

	pred, err := o.ProcessDocument(ctx, doc, "")
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	fetched, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCompleted, fetched.Status)
}

func TestProcessDocument_FailedPageIsSkippedAndRunCompletes(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})

	// Two pages of one row each; the first page always fails.
	doc := f.seedDocument(t,
		row("Acme", "anvils", "Tech"),
		row("Globex", "power", "Energy"),
	)

	var calls int32
	f.predictor.PredictFn = func(ctx context.Context, req mlserve.Request) (*mlserve.Response, error) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			return nil, resilience.NewTransientError(fmt.Errorf("scoring 503"), 503)
		}
		preds := make([]mlserve.RowPrediction, len(req.Values))
		for i := range preds {
			preds[i] = mlserve.RowPrediction{Value: "Energy", Confidence: 0.95}
		}
		return &mlserve.Response{Predictions: preds}, nil
	}
	o := f.orchestrator(Config{PageSize: 1})
	ctx := context.Background()

	pred, err := o.ProcessDocument(ctx, doc, "")
	require.NoError(t, err)
	require.NotNil(t, pred)

	// The run still completes.
	fetched, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCompleted, fetched.Status)

	// Only the second page's row has a result.
	page, err := f.store.ListPredictionResults(ctx, pred.ID,
		model.Page{Page: 1, PageSize: 10}, store.ResultListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)

	// The skipped page is recorded for operators.
	failed, err := f.store.ListFailedPages(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Page)
	assert.Equal(t, "industry-classifier", failed[0].Model)
}

func TestProcessDocument_FailFastAbortsRun(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})
	doc := f.seedDocument(t, row("Acme", "anvils", "Tech"))

	f.predictor.PredictFn = func(ctx context.Context, req mlserve.Request) (*mlserve.Response, error) {
		return nil, resilience.NewTransientError(fmt.Errorf("scoring 503"), 503)
	}
	o := f.orchestrator(Config{FailFast: true})
	ctx := context.Background()

	_, err := o.ProcessDocument(ctx, doc, "")
	require.Error(t, err)

	fetched, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusError, fetched.Status)
}

func TestProcessDocument_SkipFieldRowsNotScored(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true, SkipField: "industry"})
	// Acme already carries an industry value and must not be scored.
	doc := f.seedDocument(t,
		row("Acme", "anvils", "Tech"),
		row("Globex", "power", ""),
	)
	o := f.orchestrator(Config{})
	ctx := context.Background()

	pred, err := o.ProcessDocument(ctx, doc, "")
	require.NoError(t, err)

	page, err := f.store.ListPredictionResults(ctx, pred.ID,
		model.Page{Page: 1, PageSize: 10}, store.ResultListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "", page.Results[0].ProvidedValue)
}

func TestProcessDocument_AgreementUsesCanonicalCompare(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})
	doc := f.seedDocument(t, row("Acme", "anvils", "  TECH  "))

	f.predictor.FixedValue = "tech"
	o := f.orchestrator(Config{})

	pred, err := o.ProcessDocument(context.Background(), doc, "")
	require.NoError(t, err)

	page, err := f.store.ListPredictionResults(context.Background(), pred.ID,
		model.Page{Page: 1, PageSize: 10}, store.ResultListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.True(t, page.Results[0].Agree)
}

func TestProcessDocument_EmitsPredictionAddedEvent(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})
	doc := f.seedDocument(t, row("Acme", "anvils", "Tech"))
	o := f.orchestrator(Config{})

	sub, err := f.bus.Subscribe(events.TopicPredictions)
	require.NoError(t, err)
	defer sub.Cancel()

	pred, err := o.ProcessDocument(context.Background(), doc, "")
	require.NoError(t, err)

	select {
	case ev := <-sub.C():
		assert.Equal(t, model.EventActionAdd, ev.Action)
		require.NotNil(t, ev.Target.Prediction)
		assert.Equal(t, pred.ID, ev.Target.Prediction.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a prediction added event")
	}
}

func TestRun_ReactsToDocumentAddedOnly(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})
	doc := f.seedDocument(t, row("Acme", "anvils", "Tech"))
	o := f.orchestrator(Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// Give the subscriber a moment to register.
	require.Eventually(t, func() bool {
		return len(f.bus.ListTopics()) > 0
	}, time.Second, 5*time.Millisecond)

	// Update and delete events must be ignored.
	require.NoError(t, f.bus.Publish(events.TopicDocuments, model.DocumentUpdated(doc.ID)))
	require.NoError(t, f.bus.Publish(events.TopicDocuments, model.DocumentDeleted(doc.ID)))
	require.NoError(t, f.bus.Publish(events.TopicDocuments, model.DocumentAdded(doc)))

	require.Eventually(t, func() bool {
		d, err := f.store.GetDocument(context.Background(), doc.ID)
		return err == nil && d.Status == model.DocumentStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	preds, err := f.store.ListPredictions(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, preds, 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestComputeSummary(t *testing.T) {
	f := newFixture(t)
	// The model reads the industry column, so each row maps to its scripted
	// answer regardless of scoring order.
	f.seedModel(t, model.AIModel{Default: true, Inputs: []model.InputField{{Name: "industry"}}})
	doc := f.seedDocument(t,
		row("r1", "a", "A"),
		row("r2", "b", "B"),
		row("r3", "c", "C"),
	)

	answers := map[string]mlserve.RowPrediction{
		"A": {Value: "A", Confidence: 0.9},
		"B": {Value: "X", Confidence: 0.9},
		"C": {Value: "C", Confidence: 0.5},
	}
	f.predictor.PredictFn = func(ctx context.Context, req mlserve.Request) (*mlserve.Response, error) {
		preds := make([]mlserve.RowPrediction, len(req.Values))
		for i, values := range req.Values {
			preds[i] = answers[values[0]]
		}
		return &mlserve.Response{Predictions: preds}, nil
	}

	o := f.orchestrator(Config{})
	ctx := context.Background()

	pred, err := o.ProcessDocument(ctx, doc, "")
	require.NoError(t, err)

	s, err := o.ComputeSummary(ctx, pred.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, 3, s.GrandTotal)
	assert.Equal(t, 1, s.AgreeAboveThreshold)
	assert.Equal(t, 1, s.DisagreeAboveThreshold)
	assert.Equal(t, 1, s.AgreeBelowThreshold)
	assert.Equal(t, 0, s.DisagreeBelowThreshold)
	assert.Equal(t, 0, s.CorrectedRecords)
	assert.InDelta(t, 0.8, s.ConfidenceThreshold, 1e-9)
}

func TestComputeSummary_CountsCorrections(t *testing.T) {
	f := newFixture(t)
	f.seedModel(t, model.AIModel{Default: true})
	doc := f.seedDocument(t, row("Acme", "anvils", "Energy"))
	o := f.orchestrator(Config{})
	ctx := context.Background()

	pred, err := o.ProcessDocument(ctx, doc, "")
	require.NoError(t, err)

	page, err := f.store.ListPredictionResults(ctx, pred.ID,
		model.Page{Page: 1, PageSize: 10}, store.ResultListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)

	require.NoError(t, f.store.InsertCorrections(ctx, []model.PredictionCorrection{{
		DocumentID:         doc.ID,
		PredictionID:       pred.ID,
		PredictionRecordID: page.Results[0].ID,
		ProvidedValue:      "Energy",
		PredictionValue:    "Energy",
		Confidence:         page.Results[0].Confidence,
		Agree:              true,
	}}))

	s, err := o.ComputeSummary(ctx, pred.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CorrectedRecords)
}
