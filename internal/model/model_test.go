package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginalURL(t *testing.T) {
	got := OriginalURL("doc-1", "accounts.csv")
	assert.Equal(t, "/file/document/doc-1/accounts.csv", got)
}

func TestPredictionURL(t *testing.T) {
	got := PredictionURL("doc-1", "pred-1")
	assert.Equal(t, "/file/document/doc-1/prediction/pred-1/result.csv", got)
}

func TestDocumentAdded_CarriesDocument(t *testing.T) {
	doc := &Document{ID: "doc-1", Name: "accounts.csv"}

	ev := DocumentAdded(doc)
	assert.Equal(t, EventActionAdd, ev.Action)
	assert.Equal(t, "doc-1", ev.Target.ID)
	require.NotNil(t, ev.Target.Document)
	assert.Equal(t, "accounts.csv", ev.Target.Document.Name)
}

func TestDocumentUpdated_IDOnly(t *testing.T) {
	ev := DocumentUpdated("doc-1")
	assert.Equal(t, EventActionUpdate, ev.Action)
	assert.Equal(t, "doc-1", ev.Target.ID)
	assert.Nil(t, ev.Target.Document)
}

func TestDocumentDeleted_IDOnly(t *testing.T) {
	ev := DocumentDeleted("doc-1")
	assert.Equal(t, EventActionDelete, ev.Action)
	assert.Equal(t, "doc-1", ev.Target.ID)
}

func TestPredictionAdded_CarriesPrediction(t *testing.T) {
	p := &Prediction{ID: "pred-1", DocumentID: "doc-1"}

	ev := PredictionAdded(p)
	assert.Equal(t, EventActionAdd, ev.Action)
	assert.Equal(t, "pred-1", ev.Target.ID)
	require.NotNil(t, ev.Target.Prediction)
	assert.Equal(t, "doc-1", ev.Target.Prediction.DocumentID)
}
