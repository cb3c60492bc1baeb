package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/verity-ml/predict-cli/internal/db"
	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/summary"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'InProgress',
	predict_field       TEXT NOT NULL DEFAULT '',
	worksheet_name      TEXT NOT NULL DEFAULT '',
	worksheet_start_row INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_rows (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	data           JSONB NOT NULL,
	provided_value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS predictions (
	id               TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL REFERENCES documents(id),
	model            TEXT NOT NULL,
	prediction_field TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prediction_results (
	id               TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL REFERENCES documents(id),
	prediction_id    TEXT NOT NULL REFERENCES predictions(id),
	row_id           TEXT NOT NULL,
	provided_value   TEXT NOT NULL DEFAULT '',
	prediction_value TEXT NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	agree            BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS prediction_corrections (
	id                   TEXT PRIMARY KEY,
	document_id          TEXT NOT NULL REFERENCES documents(id),
	prediction_id        TEXT NOT NULL REFERENCES predictions(id),
	prediction_record_id TEXT NOT NULL REFERENCES prediction_results(id),
	provided_value       TEXT NOT NULL DEFAULT '',
	prediction_value     TEXT NOT NULL,
	confidence           DOUBLE PRECISION NOT NULL,
	agree                BOOLEAN NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS models (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT NOT NULL DEFAULT '',
	deployment_id TEXT NOT NULL,
	label         TEXT NOT NULL,
	skip_field    TEXT NOT NULL DEFAULT '',
	is_default    BOOLEAN NOT NULL DEFAULT FALSE,
	inputs        JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS failed_pages (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	model       TEXT NOT NULL,
	page        INTEGER NOT NULL,
	page_size   INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_document_rows_document_id ON document_rows(document_id);
CREATE INDEX IF NOT EXISTS idx_predictions_document_id ON predictions(document_id);
CREATE INDEX IF NOT EXISTS idx_prediction_results_prediction_id ON prediction_results(prediction_id);
CREATE INDEX IF NOT EXISTS idx_prediction_results_document_id ON prediction_results(document_id);
CREATE INDEX IF NOT EXISTS idx_prediction_corrections_prediction_id ON prediction_corrections(prediction_id);
CREATE INDEX IF NOT EXISTS idx_failed_pages_document_id ON failed_pages(document_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, input model.DocumentInput) (*model.Document, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, name, description, status, predict_field, worksheet_name, worksheet_start_row, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, input.Name, input.Description, string(model.DocumentStatusInProgress),
		input.PredictField, input.WorksheetName, input.WorksheetStartRow, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert document")
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

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, status, predict_field, worksheet_name, worksheet_start_row, created_at, updated_at
		 FROM documents WHERE id = $1`, id)

	var d model.Document
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Status, &d.PredictField, &d.WorksheetName, &d.WorksheetStartRow, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "document %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get document")
	}
	d.OriginalURL = model.OriginalURL(d.ID, d.Name)
	return &d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	page := normalizePage(filter.Page)

	query := `SELECT id, name, description, status, predict_field, worksheet_name, worksheet_start_row, created_at, updated_at
		 FROM documents`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []any{string(filter.Status), page.PageSize, (page.Page - 1) * page.PageSize}
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = []any{page.PageSize, (page.Page - 1) * page.PageSize}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Status, &d.PredictField, &d.WorksheetName, &d.WorksheetStartRow, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		d.OriginalURL = model.OriginalURL(d.ID, d.Name)
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id string, status model.DocumentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	return s.UpdateDocumentStatus(ctx, id, model.DocumentStatusDeleted)
}

func (s *PostgresStore) InsertDocumentRows(ctx context.Context, docRows []model.DocumentRow) error {
	if len(docRows) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(docRows))
	for i := range docRows {
		if docRows[i].ID == "" {
			docRows[i].ID = uuid.New().String()
		}
		rows = append(rows, []any{docRows[i].ID, docRows[i].DocumentID, docRows[i].Data, docRows[i].ProvidedValue})
	}

	_, err := db.CopyFrom(ctx, s.pool, "document_rows",
		[]string{"id", "document_id", "data", "provided_value"}, rows)
	return eris.Wrap(err, "postgres: insert document rows")
}

func (s *PostgresStore) ListDocumentRows(ctx context.Context, documentID string, page model.Page) (*model.RowPage, error) {
	page = normalizePage(page)

	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, data, provided_value FROM document_rows
		 WHERE document_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		documentID, page.PageSize+1, (page.Page-1)*page.PageSize,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list document rows")
	}
	defer rows.Close()

	var out []model.DocumentRow
	for rows.Next() {
		var r model.DocumentRow
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Data, &r.ProvidedValue); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list document rows iterate")
	}

	hasMore := len(out) > page.PageSize
	if hasMore {
		out = out[:page.PageSize]
	}
	return &model.RowPage{Rows: out, HasMore: hasMore}, nil
}

func (s *PostgresStore) CountDocumentRows(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_rows WHERE document_id = $1`, documentID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count document rows")
}

func (s *PostgresStore) InsertPrediction(ctx context.Context, prediction *model.Prediction, results []model.PredictionResult) (*model.Prediction, error) {
	if prediction.ID == "" {
		prediction.ID = uuid.New().String()
	}
	if prediction.CreatedAt.IsZero() {
		prediction.CreatedAt = time.Now().UTC()
	}
	prediction.PredictionURL = model.PredictionURL(prediction.DocumentID, prediction.ID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin insert prediction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO predictions (id, document_id, model, prediction_field, created_at) VALUES ($1, $2, $3, $4, $5)`,
		prediction.ID, prediction.DocumentID, prediction.Model, prediction.PredictionField, prediction.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert prediction")
	}

	rows := make([][]any, 0, len(results))
	for i := range results {
		r := &results[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.DocumentID = prediction.DocumentID
		r.PredictionID = prediction.ID
		rows = append(rows, []any{r.ID, r.DocumentID, r.PredictionID, r.RowID, r.ProvidedValue, r.PredictionValue, r.Confidence, r.Agree})
	}

	if _, err := db.CopyFrom(ctx, tx, "prediction_results",
		[]string{"id", "document_id", "prediction_id", "row_id", "provided_value", "prediction_value", "confidence", "agree"},
		rows); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert results for prediction %s", prediction.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit insert prediction")
	}
	return prediction, nil
}

func (s *PostgresStore) GetPrediction(ctx context.Context, id string) (*model.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, document_id, model, prediction_field, created_at FROM predictions WHERE id = $1`, id)

	var p model.Prediction
	err := row.Scan(&p.ID, &p.DocumentID, &p.Model, &p.PredictionField, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "prediction %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get prediction")
	}
	p.PredictionURL = model.PredictionURL(p.DocumentID, p.ID)
	return &p, nil
}

func (s *PostgresStore) ListPredictions(ctx context.Context, documentID string) ([]model.Prediction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, model, prediction_field, created_at FROM predictions
		 WHERE document_id = $1 ORDER BY created_at`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list predictions")
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var p model.Prediction
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Model, &p.PredictionField, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		p.PredictionURL = model.PredictionURL(p.DocumentID, p.ID)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list predictions iterate")
}

func (s *PostgresStore) ListPredictionResults(ctx context.Context, predictionID string, page model.Page, opts ResultListOptions) (*model.ResultPage, error) {
	page = normalizePage(page)
	threshold := opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = summary.DefaultConfidenceThreshold
	}

	clause, filterArgs, err := resultFilterClause(opts.Filter, "$2", threshold)
	if err != nil {
		return nil, err
	}

	args := append([]any{predictionID}, filterArgs...)
	limitPos := len(args) + 1
	query := `SELECT id, document_id, prediction_id, row_id, provided_value, prediction_value, confidence, agree
		 FROM prediction_results WHERE prediction_id = $1 ` + clause +
		` ORDER BY row_id LIMIT $` + strconv.Itoa(limitPos) + ` OFFSET $` + strconv.Itoa(limitPos+1)
	args = append(args, page.PageSize+1, (page.Page-1)*page.PageSize)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prediction results")
	}
	defer rows.Close()

	var out []model.PredictionResult
	for rows.Next() {
		var r model.PredictionResult
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.PredictionID, &r.RowID, &r.ProvidedValue, &r.PredictionValue, &r.Confidence, &r.Agree); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction result")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list prediction results iterate")
	}

	hasMore := len(out) > page.PageSize
	if hasMore {
		out = out[:page.PageSize]
	}
	return &model.ResultPage{Results: out, HasMore: hasMore}, nil
}

func (s *PostgresStore) GetPredictionResult(ctx context.Context, id string) (*model.PredictionResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, document_id, prediction_id, row_id, provided_value, prediction_value, confidence, agree
		 FROM prediction_results WHERE id = $1`, id)

	var r model.PredictionResult
	err := row.Scan(&r.ID, &r.DocumentID, &r.PredictionID, &r.RowID, &r.ProvidedValue, &r.PredictionValue, &r.Confidence, &r.Agree)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "prediction result %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get prediction result")
	}
	return &r, nil
}

func (s *PostgresStore) InsertCorrections(ctx context.Context, corrections []model.PredictionCorrection) error {
	if len(corrections) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(corrections))
	for i := range corrections {
		c := &corrections[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		rows = append(rows, []any{c.ID, c.DocumentID, c.PredictionID, c.PredictionRecordID, c.ProvidedValue, c.PredictionValue, c.Confidence, c.Agree, c.CreatedAt})
	}

	_, err := db.CopyFrom(ctx, s.pool, "prediction_corrections",
		[]string{"id", "document_id", "prediction_id", "prediction_record_id", "provided_value", "prediction_value", "confidence", "agree", "created_at"},
		rows)
	return eris.Wrap(err, "postgres: insert corrections")
}

func (s *PostgresStore) ListCorrections(ctx context.Context, predictionID string) ([]model.PredictionCorrection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, prediction_id, prediction_record_id, provided_value, prediction_value, confidence, agree, created_at
		 FROM prediction_corrections WHERE prediction_id = $1 ORDER BY created_at`, predictionID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list corrections")
	}
	defer rows.Close()

	var out []model.PredictionCorrection
	for rows.Next() {
		var c model.PredictionCorrection
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.PredictionID, &c.PredictionRecordID, &c.ProvidedValue, &c.PredictionValue, &c.Confidence, &c.Agree, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan correction")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list corrections iterate")
}

func (s *PostgresStore) CountCorrections(ctx context.Context, predictionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM prediction_corrections WHERE prediction_id = $1`, predictionID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count corrections")
}

func (s *PostgresStore) InsertModel(ctx context.Context, m model.AIModel) (*model.AIModel, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	inputs := m.Inputs
	if inputs == nil {
		inputs = []model.InputField{}
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal model inputs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO models (id, name, description, deployment_id, label, skip_field, is_default, inputs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			deployment_id = EXCLUDED.deployment_id,
			label = EXCLUDED.label,
			skip_field = EXCLUDED.skip_field,
			is_default = EXCLUDED.is_default,
			inputs = EXCLUDED.inputs`,
		m.ID, m.Name, m.Description, m.DeploymentID, m.Label, m.SkipField, m.Default, string(inputsJSON),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert model %s", m.Name)
	}
	return &m, nil
}

func (s *PostgresStore) GetModel(ctx context.Context, name string) (*model.AIModel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, deployment_id, label, skip_field, is_default, inputs FROM models WHERE name = $1`, name)
	m, err := scanPostgresModel(row)
	if err != nil {
		return nil, eris.Wrapf(err, "model %s", name)
	}
	return m, nil
}

func (s *PostgresStore) GetDefaultModel(ctx context.Context) (*model.AIModel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, deployment_id, label, skip_field, is_default, inputs
		 FROM models WHERE is_default = TRUE ORDER BY name LIMIT 1`)
	return scanPostgresModel(row)
}

func (s *PostgresStore) ListModels(ctx context.Context) ([]model.AIModel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, deployment_id, label, skip_field, is_default, inputs FROM models ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list models")
	}
	defer rows.Close()

	var out []model.AIModel
	for rows.Next() {
		m, err := scanPostgresModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list models iterate")
}

func (s *PostgresStore) RecordFailedPage(ctx context.Context, fp model.FailedPage) error {
	if fp.ID == "" {
		fp.ID = uuid.New().String()
	}
	if fp.CreatedAt.IsZero() {
		fp.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO failed_pages (id, document_id, model, page, page_size, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fp.ID, fp.DocumentID, fp.Model, fp.Page, fp.PageSize, fp.Error, fp.CreatedAt,
	)
	return eris.Wrap(err, "postgres: record failed page")
}

func (s *PostgresStore) ListFailedPages(ctx context.Context, documentID string) ([]model.FailedPage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, model, page, page_size, error, created_at FROM failed_pages
		 WHERE document_id = $1 ORDER BY page`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failed pages")
	}
	defer rows.Close()

	var out []model.FailedPage
	for rows.Next() {
		var fp model.FailedPage
		if err := rows.Scan(&fp.ID, &fp.DocumentID, &fp.Model, &fp.Page, &fp.PageSize, &fp.Error, &fp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failed page")
		}
		out = append(out, fp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list failed pages iterate")
}

func scanPostgresModel(row pgx.Row) (*model.AIModel, error) {
	var m model.AIModel
	var inputsJSON []byte
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.DeploymentID, &m.Label, &m.SkipField, &m.Default, &inputsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "model")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan model")
	}
	if err := json.Unmarshal(inputsJSON, &m.Inputs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal model inputs")
	}
	return &m, nil
}
