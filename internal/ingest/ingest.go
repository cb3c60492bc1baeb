package ingest

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verity-ml/predict-cli/internal/events"
	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/store"
)

// DefaultBatchSize is the number of rows written per insert batch.
const DefaultBatchSize = 30000

// Options configures the ingestion service.
type Options struct {
	BatchSize int
	HTTP      Fetcher
	FTP       Fetcher
}

// Service ingests source files into documents and rows. The document-added
// event is published only after the document and every row are durably
// stored, so consumers never observe a partially written document.
type Service struct {
	store     store.Store
	bus       *events.Bus
	http      Fetcher
	ftp       Fetcher
	batchSize int
}

// NewService creates an ingestion Service.
func NewService(st store.Store, bus *events.Bus, opts Options) *Service {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	httpFetcher := opts.HTTP
	if httpFetcher == nil {
		httpFetcher = NewHTTPFetcher(HTTPOptions{})
	}
	ftpFetcher := opts.FTP
	if ftpFetcher == nil {
		ftpFetcher = NewFTPFetcher(FTPOptions{})
	}
	return &Service{
		store:     st,
		bus:       bus,
		http:      httpFetcher,
		ftp:       ftpFetcher,
		batchSize: batchSize,
	}
}

// Ingest loads the source (a local path or an http/https/ftp URL), creates a
// document, stores every row, and publishes the document-added event. It
// returns the stored document and the number of rows ingested.
func (s *Service) Ingest(ctx context.Context, source string, input model.DocumentInput) (*model.Document, int, error) {
	localPath, cleanup, err := s.localize(ctx, source)
	if err != nil {
		return nil, 0, err
	}
	defer cleanup()

	if input.Name == "" {
		input.Name = filepath.Base(localPath)
	}

	header, rowCh, errCh, err := s.openTable(ctx, localPath, input)
	if err != nil {
		return nil, 0, err
	}

	doc, err := s.store.InsertDocument(ctx, input)
	if err != nil {
		return nil, 0, err
	}

	zap.L().Info("ingesting document",
		zap.String("document_id", doc.ID),
		zap.String("name", doc.Name),
		zap.String("predict_field", doc.PredictField),
	)

	count, err := s.storeRows(ctx, doc, header, rowCh, errCh)
	if err != nil {
		if stErr := s.store.UpdateDocumentStatus(ctx, doc.ID, model.DocumentStatusError); stErr != nil {
			zap.L().Error("failed to mark document errored",
				zap.String("document_id", doc.ID), zap.Error(stErr))
		}
		return nil, 0, eris.Wrapf(err, "ingest document %s", doc.ID)
	}

	if err := s.bus.Publish(events.TopicDocuments, model.DocumentAdded(doc)); err != nil {
		return nil, 0, eris.Wrap(err, "publish document added")
	}

	zap.L().Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.Int("rows", count),
	)
	return doc, count, nil
}

// localize resolves a source reference to a local file path. Remote sources
// are downloaded to a temp directory; zip archives are unpacked to their
// single tabular entry. The returned cleanup removes any temp files.
func (s *Service) localize(ctx context.Context, source string) (string, func(), error) {
	cleanup := func() {}
	path := source

	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"),
		strings.HasPrefix(source, "ftp://"):
		tmpDir, err := os.MkdirTemp("", "ingest-*")
		if err != nil {
			return "", nil, eris.Wrap(err, "create temp dir")
		}
		cleanup = func() { os.RemoveAll(tmpDir) } //nolint:errcheck

		fetcher := s.http
		if strings.HasPrefix(source, "ftp://") {
			fetcher = s.ftp
		}
		path = filepath.Join(tmpDir, filepath.Base(source))
		if _, err := fetcher.DownloadToFile(ctx, source, path); err != nil {
			cleanup()
			return "", nil, err
		}
	default:
		if _, err := os.Stat(source); err != nil {
			return "", nil, eris.Wrapf(err, "source %s", source)
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		extracted, err := extractZIPTable(path, filepath.Dir(path))
		if err != nil {
			cleanup()
			return "", nil, err
		}
		path = extracted
	}

	return path, cleanup, nil
}

func (s *Service) openTable(ctx context.Context, path string, input model.DocumentInput) ([]string, <-chan []string, <-chan error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return StreamXLSX(ctx, path, XLSXOptions{
			SheetName: input.WorksheetName,
			StartRow:  input.WorksheetStartRow,
		})
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, nil, eris.Wrapf(err, "open %s", path)
		}
		header, rowCh, errCh, err := StreamCSV(ctx, f, CSVOptions{TrimSpace: true})
		if err != nil {
			f.Close() //nolint:errcheck
			return nil, nil, nil, err
		}
		// Close the file once the stream drains.
		return header, rowCh, wrapClose(errCh, f), nil
	}
}

func wrapClose(errCh <-chan error, c io.Closer) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		defer c.Close() //nolint:errcheck
		for err := range errCh {
			out <- err
		}
	}()
	return out
}

// storeRows drains the row stream into batched inserts. The predict field is
// matched against header columns case-insensitively; when absent, every row's
// provided value is empty.
func (s *Service) storeRows(ctx context.Context, doc *model.Document, header []string, rowCh <-chan []string, errCh <-chan error) (int, error) {
	predictCol := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), doc.PredictField) {
			predictCol = i
			break
		}
	}
	if predictCol < 0 && doc.PredictField != "" {
		zap.L().Warn("predict field not found in header",
			zap.String("document_id", doc.ID),
			zap.String("predict_field", doc.PredictField),
		)
	}

	var (
		batch []model.DocumentRow
		count int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.store.InsertDocumentRows(ctx, batch); err != nil {
			return err
		}
		count += len(batch)
		batch = batch[:0]
		return nil
	}

	for record := range rowCh {
		data := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				data[col] = record[i]
			} else {
				data[col] = ""
			}
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return count, eris.Wrap(err, "marshal row")
		}

		provided := ""
		if predictCol >= 0 && predictCol < len(record) {
			provided = record[predictCol]
		}

		batch = append(batch, model.DocumentRow{
			DocumentID:    doc.ID,
			Data:          string(payload),
			ProvidedValue: provided,
		})
		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return count, err
			}
		}
	}
	if err := <-errCh; err != nil {
		return count, err
	}

	if err := flush(); err != nil {
		return count, err
	}
	return count, nil
}
