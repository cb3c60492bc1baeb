package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/summary"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'InProgress',
	predict_field       TEXT NOT NULL DEFAULT '',
	worksheet_name      TEXT NOT NULL DEFAULT '',
	worksheet_start_row INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS document_rows (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	data           TEXT NOT NULL,
	provided_value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS predictions (
	id               TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL REFERENCES documents(id),
	model            TEXT NOT NULL,
	prediction_field TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS prediction_results (
	id               TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL REFERENCES documents(id),
	prediction_id    TEXT NOT NULL REFERENCES predictions(id),
	row_id           TEXT NOT NULL,
	provided_value   TEXT NOT NULL DEFAULT '',
	prediction_value TEXT NOT NULL,
	confidence       REAL NOT NULL,
	agree            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS prediction_corrections (
	id                   TEXT PRIMARY KEY,
	document_id          TEXT NOT NULL REFERENCES documents(id),
	prediction_id        TEXT NOT NULL REFERENCES predictions(id),
	prediction_record_id TEXT NOT NULL REFERENCES prediction_results(id),
	provided_value       TEXT NOT NULL DEFAULT '',
	prediction_value     TEXT NOT NULL,
	confidence           REAL NOT NULL,
	agree                INTEGER NOT NULL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS models (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT NOT NULL DEFAULT '',
	deployment_id TEXT NOT NULL,
	label         TEXT NOT NULL,
	skip_field    TEXT NOT NULL DEFAULT '',
	is_default    INTEGER NOT NULL DEFAULT 0,
	inputs        TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS failed_pages (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	model       TEXT NOT NULL,
	page        INTEGER NOT NULL,
	page_size   INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_document_rows_document_id ON document_rows(document_id);
CREATE INDEX IF NOT EXISTS idx_predictions_document_id ON predictions(document_id);
CREATE INDEX IF NOT EXISTS idx_prediction_results_prediction_id ON prediction_results(prediction_id);
CREATE INDEX IF NOT EXISTS idx_prediction_results_document_id ON prediction_results(document_id);
CREATE INDEX IF NOT EXISTS idx_prediction_corrections_prediction_id ON prediction_corrections(prediction_id);
CREATE INDEX IF NOT EXISTS idx_failed_pages_document_id ON failed_pages(document_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, input model.DocumentInput) (*model.Document, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, description, status, predict_field, worksheet_name, worksheet_start_row, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, input.Name, input.Description, string(model.DocumentStatusInProgress),
		input.PredictField, input.WorksheetName, input.WorksheetStartRow, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert document")
	}

	return &model.Document{
		ID:                id,
		Name:              input.Name,
		Description:       input.Description,
		Status:            model.DocumentStatusInProgress,
		PredictField:      input.PredictField,
		OriginalURL:       model.OriginalURL(id, input.Name),
		WorksheetName:     input.WorksheetName,
		WorksheetStartRow: input.WorksheetStartRow,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, predict_field, worksheet_name, worksheet_start_row, created_at, updated_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	page := normalizePage(filter.Page)

	query := `SELECT id, name, description, status, predict_field, worksheet_name, worksheet_start_row, created_at, updated_at
		 FROM documents WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, page.PageSize, (page.Page-1)*page.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, id string, status model.DocumentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document status %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

// DeleteDocument soft deletes: the status flips to Deleted and all row data
// is retained.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	return s.UpdateDocumentStatus(ctx, id, model.DocumentStatusDeleted)
}

func (s *SQLiteStore) InsertDocumentRows(ctx context.Context, docRows []model.DocumentRow) error {
	if len(docRows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert rows")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_rows (id, document_id, data, provided_value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert row")
	}
	defer stmt.Close()

	for i := range docRows {
		if docRows[i].ID == "" {
			docRows[i].ID = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, docRows[i].ID, docRows[i].DocumentID, docRows[i].Data, docRows[i].ProvidedValue); err != nil {
			return eris.Wrapf(err, "sqlite: insert row for document %s", docRows[i].DocumentID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert rows")
}

func (s *SQLiteStore) ListDocumentRows(ctx context.Context, documentID string, page model.Page) (*model.RowPage, error) {
	page = normalizePage(page)

	// Fetch one extra row to detect whether more pages remain.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, data, provided_value FROM document_rows
		 WHERE document_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		documentID, page.PageSize+1, (page.Page-1)*page.PageSize,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list document rows")
	}
	defer rows.Close()

	var out []model.DocumentRow
	for rows.Next() {
		var r model.DocumentRow
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Data, &r.ProvidedValue); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list document rows iterate")
	}

	hasMore := len(out) > page.PageSize
	if hasMore {
		out = out[:page.PageSize]
	}
	return &model.RowPage{Rows: out, HasMore: hasMore}, nil
}

func (s *SQLiteStore) CountDocumentRows(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_rows WHERE document_id = ?`, documentID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count document rows")
}

func (s *SQLiteStore) InsertPrediction(ctx context.Context, prediction *model.Prediction, results []model.PredictionResult) (*model.Prediction, error) {
	if prediction.ID == "" {
		prediction.ID = uuid.New().String()
	}
	if prediction.CreatedAt.IsZero() {
		prediction.CreatedAt = time.Now().UTC()
	}
	prediction.PredictionURL = model.PredictionURL(prediction.DocumentID, prediction.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin insert prediction")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO predictions (id, document_id, model, prediction_field, created_at) VALUES (?, ?, ?, ?, ?)`,
		prediction.ID, prediction.DocumentID, prediction.Model, prediction.PredictionField, prediction.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert prediction")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO prediction_results (id, document_id, prediction_id, row_id, provided_value, prediction_value, confidence, agree)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert result")
	}
	defer stmt.Close()

	for i := range results {
		r := &results[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.DocumentID = prediction.DocumentID
		r.PredictionID = prediction.ID
		if _, err := stmt.ExecContext(ctx, r.ID, r.DocumentID, r.PredictionID, r.RowID, r.ProvidedValue, r.PredictionValue, r.Confidence, r.Agree); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert result for prediction %s", prediction.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit insert prediction")
	}
	return prediction, nil
}

func (s *SQLiteStore) GetPrediction(ctx context.Context, id string) (*model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, model, prediction_field, created_at FROM predictions WHERE id = ?`, id)
	return scanPrediction(row)
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, documentID string) ([]model.Prediction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, model, prediction_field, created_at FROM predictions
		 WHERE document_id = ? ORDER BY created_at`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list predictions iterate")
}

func (s *SQLiteStore) ListPredictionResults(ctx context.Context, predictionID string, page model.Page, opts ResultListOptions) (*model.ResultPage, error) {
	page = normalizePage(page)
	threshold := opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = summary.DefaultConfidenceThreshold
	}

	clause, filterArgs, err := resultFilterClause(opts.Filter, "?", threshold)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, document_id, prediction_id, row_id, provided_value, prediction_value, confidence, agree
		 FROM prediction_results WHERE prediction_id = ? ` + clause + ` ORDER BY row_id LIMIT ? OFFSET ?`
	args := append([]any{predictionID}, filterArgs...)
	args = append(args, page.PageSize+1, (page.Page-1)*page.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prediction results")
	}
	defer rows.Close()

	var out []model.PredictionResult
	for rows.Next() {
		var r model.PredictionResult
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.PredictionID, &r.RowID, &r.ProvidedValue, &r.PredictionValue, &r.Confidence, &r.Agree); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction result")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list prediction results iterate")
	}

	hasMore := len(out) > page.PageSize
	if hasMore {
		out = out[:page.PageSize]
	}
	return &model.ResultPage{Results: out, HasMore: hasMore}, nil
}

func (s *SQLiteStore) GetPredictionResult(ctx context.Context, id string) (*model.PredictionResult, error) {
	var r model.PredictionResult
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, prediction_id, row_id, provided_value, prediction_value, confidence, agree
		 FROM prediction_results WHERE id = ?`, id).
		Scan(&r.ID, &r.DocumentID, &r.PredictionID, &r.RowID, &r.ProvidedValue, &r.PredictionValue, &r.Confidence, &r.Agree)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "prediction result %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get prediction result")
	}
	return &r, nil
}

func (s *SQLiteStore) InsertCorrections(ctx context.Context, corrections []model.PredictionCorrection) error {
	if len(corrections) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert corrections")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO prediction_corrections (id, document_id, prediction_id, prediction_record_id, provided_value, prediction_value, confidence, agree, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert correction")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range corrections {
		c := &corrections[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.PredictionID, c.PredictionRecordID, c.ProvidedValue, c.PredictionValue, c.Confidence, c.Agree, c.CreatedAt); err != nil {
			return eris.Wrapf(err, "sqlite: insert correction for record %s", c.PredictionRecordID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert corrections")
}

func (s *SQLiteStore) ListCorrections(ctx context.Context, predictionID string) ([]model.PredictionCorrection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, prediction_id, prediction_record_id, provided_value, prediction_value, confidence, agree, created_at
		 FROM prediction_corrections WHERE prediction_id = ? ORDER BY created_at`, predictionID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list corrections")
	}
	defer rows.Close()

	var out []model.PredictionCorrection
	for rows.Next() {
		var c model.PredictionCorrection
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.PredictionID, &c.PredictionRecordID, &c.ProvidedValue, &c.PredictionValue, &c.Confidence, &c.Agree, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan correction")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list corrections iterate")
}

func (s *SQLiteStore) CountCorrections(ctx context.Context, predictionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prediction_corrections WHERE prediction_id = ?`, predictionID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count corrections")
}

func (s *SQLiteStore) InsertModel(ctx context.Context, m model.AIModel) (*model.AIModel, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	inputsJSON, err := json.Marshal(m.Inputs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal model inputs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO models (id, name, description, deployment_id, label, skip_field, is_default, inputs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			deployment_id = excluded.deployment_id,
			label = excluded.label,
			skip_field = excluded.skip_field,
			is_default = excluded.is_default,
			inputs = excluded.inputs`,
		m.ID, m.Name, m.Description, m.DeploymentID, m.Label, m.SkipField, m.Default, string(inputsJSON),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert model %s", m.Name)
	}
	return &m, nil
}

func (s *SQLiteStore) GetModel(ctx context.Context, name string) (*model.AIModel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, deployment_id, label, skip_field, is_default, inputs FROM models WHERE name = ?`, name)
	m, err := scanModel(row)
	if err != nil {
		return nil, eris.Wrapf(err, "model %s", name)
	}
	return m, nil
}

func (s *SQLiteStore) GetDefaultModel(ctx context.Context) (*model.AIModel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, deployment_id, label, skip_field, is_default, inputs
		 FROM models WHERE is_default = TRUE ORDER BY name LIMIT 1`)
	return scanModel(row)
}

func (s *SQLiteStore) ListModels(ctx context.Context) ([]model.AIModel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, deployment_id, label, skip_field, is_default, inputs FROM models ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list models")
	}
	defer rows.Close()

	var out []model.AIModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list models iterate")
}

func (s *SQLiteStore) RecordFailedPage(ctx context.Context, fp model.FailedPage) error {
	if fp.ID == "" {
		fp.ID = uuid.New().String()
	}
	if fp.CreatedAt.IsZero() {
		fp.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_pages (id, document_id, model, page, page_size, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fp.ID, fp.DocumentID, fp.Model, fp.Page, fp.PageSize, fp.Error, fp.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: record failed page")
}

func (s *SQLiteStore) ListFailedPages(ctx context.Context, documentID string) ([]model.FailedPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, model, page, page_size, error, created_at FROM failed_pages
		 WHERE document_id = ? ORDER BY page`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failed pages")
	}
	defer rows.Close()

	var out []model.FailedPage
	for rows.Next() {
		var fp model.FailedPage
		if err := rows.Scan(&fp.ID, &fp.DocumentID, &fp.Model, &fp.Page, &fp.PageSize, &fp.Error, &fp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failed page")
		}
		out = append(out, fp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list failed pages iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Status, &d.PredictField, &d.WorksheetName, &d.WorksheetStartRow, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "document")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}
	d.OriginalURL = model.OriginalURL(d.ID, d.Name)
	return &d, nil
}

func scanPrediction(row scannable) (*model.Prediction, error) {
	var p model.Prediction
	err := row.Scan(&p.ID, &p.DocumentID, &p.Model, &p.PredictionField, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "prediction")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prediction")
	}
	p.PredictionURL = model.PredictionURL(p.DocumentID, p.ID)
	return &p, nil
}

func scanModel(row scannable) (*model.AIModel, error) {
	var m model.AIModel
	var inputsJSON string
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.DeploymentID, &m.Label, &m.SkipField, &m.Default, &inputsJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "model")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan model")
	}
	if err := json.Unmarshal([]byte(inputsJSON), &m.Inputs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal model inputs")
	}
	return &m, nil
}
