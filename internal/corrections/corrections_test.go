package corrections

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/store"
)

type fixture struct {
	store    store.Store
	ingestor *Ingestor
	doc      *model.Document
	pred     *model.Prediction
	records  []model.PredictionResult
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	doc, err := st.InsertDocument(ctx, model.DocumentInput{Name: "accounts.csv", PredictField: "industry"})
	require.NoError(t, err)

	pred, err := st.InsertPrediction(ctx, &model.Prediction{
		DocumentID: doc.ID,
		Model:      "industry-classifier",
	}, []model.PredictionResult{
		{RowID: "r1", ProvidedValue: "Tech", PredictionValue: "Retail", Confidence: 0.7, Agree: false},
		{RowID: "r2", ProvidedValue: "Energy", PredictionValue: "Energy", Confidence: 0.95, Agree: true},
	})
	require.NoError(t, err)

	page, err := st.ListPredictionResults(ctx, pred.ID,
		model.Page{Page: 1, PageSize: 10}, store.ResultListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)

	return &fixture{
		store:    st,
		ingestor: NewIngestor(st),
		doc:      doc,
		pred:     pred,
		records:  page.Results,
	}
}

func (f *fixture) recordByRow(rowID string) model.PredictionResult {
	for _, r := range f.records {
		if r.RowID == rowID {
			return r
		}
	}
	return model.PredictionResult{}
}

func TestApply_StoresCorrectionAndRecomputesAgreement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.recordByRow("r1")

	res, err := f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "Tech"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	stored, err := f.store.ListCorrections(ctx, f.pred.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, record.ID, stored[0].PredictionRecordID)
	assert.Equal(t, "Tech", stored[0].PredictionValue)
	assert.Equal(t, "Tech", stored[0].ProvidedValue)
	// Corrected value now matches the provided value.
	assert.True(t, stored[0].Agree)
	// Original result is untouched.
	original, err := f.store.GetPredictionResult(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Retail", original.PredictionValue)
	assert.False(t, original.Agree)
}

func TestApply_NoOpCorrectionNotPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.recordByRow("r2")

	// Correcting to the value the model already predicted changes nothing.
	res, err := f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "Energy"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.SkippedUnchanged)

	stored, err := f.store.ListCorrections(ctx, f.pred.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestApply_NoOpComparisonIsCanonical(t *testing.T) {
	f := newFixture(t)
	record := f.recordByRow("r2")

	// Case and whitespace differences are still the same value.
	res, err := f.ingestor.Apply(context.Background(), f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "  ENERGY "},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.SkippedUnchanged)
}

func TestApply_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.recordByRow("r1")
	inputs := []Input{{PredictionRecordID: record.ID, CorrectedValue: "Tech"}}

	res, err := f.ingestor.Apply(ctx, f.pred.ID, inputs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	// The same submission again is a duplicate and is not stored twice.
	res, err = f.ingestor.Apply(ctx, f.pred.ID, inputs)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.SkippedUnchanged)

	stored, err := f.store.ListCorrections(ctx, f.pred.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestApply_OriginalValueIsNoOpAfterCorrection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.recordByRow("r1")

	res, err := f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "Energy"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)

	// The diff always runs against the original prediction value, so
	// submitting "Retail" back after the correction changes nothing.
	res, err = f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "Retail"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.SkippedUnchanged)

	stored, err := f.store.ListCorrections(ctx, f.pred.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Energy", stored[0].PredictionValue)
}

func TestApply_DifferentValueAfterCorrectionPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.recordByRow("r1")

	res, err := f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "Energy"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)

	res, err = f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "Finance"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	stored, err := f.store.ListCorrections(ctx, f.pred.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestApply_DuplicateWithinBatchCollapses(t *testing.T) {
	f := newFixture(t)
	record := f.recordByRow("r1")

	res, err := f.ingestor.Apply(context.Background(), f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "Tech"},
		{PredictionRecordID: record.ID, CorrectedValue: "Tech"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.SkippedUnchanged)
}

func TestApply_UnknownRecordDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.recordByRow("r1")

	res, err := f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: "no-such-record", CorrectedValue: "Tech"},
		{PredictionRecordID: record.ID, CorrectedValue: "Tech"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.SkippedUnknown)
}

func TestApply_RecordFromOtherPredictionDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.InsertPrediction(ctx, &model.Prediction{
		DocumentID: f.doc.ID,
		Model:      "industry-classifier",
	}, []model.PredictionResult{
		{RowID: "r9", PredictionValue: "Retail", Confidence: 0.5},
	})
	require.NoError(t, err)

	page, err := f.store.ListPredictionResults(ctx, other.ID,
		model.Page{Page: 1, PageSize: 10}, store.ResultListOptions{})
	require.NoError(t, err)

	res, err := f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: page.Results[0].ID, CorrectedValue: "Tech"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.SkippedUnknown)
}

func TestApply_UnknownPrediction(t *testing.T) {
	f := newFixture(t)

	_, err := f.ingestor.Apply(context.Background(), "no-such-prediction", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseCSV(t *testing.T) {
	inputs, err := ParseCSV(strings.NewReader(
		"prediction_record_id,corrected_value,notes\nrec-1,Tech,looks wrong\nrec-2,Energy,\n"))
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, Input{PredictionRecordID: "rec-1", CorrectedValue: "Tech"}, inputs[0])
	assert.Equal(t, Input{PredictionRecordID: "rec-2", CorrectedValue: "Energy"}, inputs[1])
}

func TestParseCSV_AlternateHeaderNames(t *testing.T) {
	inputs, err := ParseCSV(strings.NewReader("id,value\nrec-1,Tech\n"))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "rec-1", inputs[0].PredictionRecordID)
}

func TestParseCSV_MissingColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("foo,bar\n1,2\n"))
	require.Error(t, err)
}

func TestParseCSV_SkipsBlankIDs(t *testing.T) {
	inputs, err := ParseCSV(strings.NewReader("id,value\n,Tech\nrec-1,Energy\n"))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
}

func TestExportCSV_RoundTripsThroughParse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var buf strings.Builder
	require.NoError(t, f.ingestor.ExportCSV(ctx, f.pred.ID, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,row_id,provided_value,prediction_value,confidence,agree,corrected_value", lines[0])

	// An unedited export applies as all no-ops.
	inputs, err := ParseCSV(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	res, err := f.ingestor.Apply(ctx, f.pred.ID, inputs)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 2, res.SkippedUnchanged)
}

func TestExportCSV_PrefillsEffectiveValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.recordByRow("r1")

	_, err := f.ingestor.Apply(ctx, f.pred.ID, []Input{
		{PredictionRecordID: record.ID, CorrectedValue: "Tech"},
	})
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, f.ingestor.ExportCSV(ctx, f.pred.ID, &buf))

	var corrected string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n")[1:] {
		fields := strings.Split(line, ",")
		if fields[0] == record.ID {
			corrected = fields[len(fields)-1]
		}
	}
	// The corrected column reflects the latest correction, not the
	// original prediction value.
	assert.Equal(t, "Tech", corrected)
}

func TestExportCSV_UnknownPrediction(t *testing.T) {
	f := newFixture(t)

	var buf strings.Builder
	err := f.ingestor.ExportCSV(context.Background(), "no-such-id", &buf)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
