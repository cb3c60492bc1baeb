package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verity-ml/predict-cli/internal/corrections"
	"github.com/verity-ml/predict-cli/internal/events"
	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves the document, prediction, and correction API. Ingested documents are predicted automatically when a scoring backend is configured. Document and prediction events stream over /events.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		// Auto-predict ingested documents when a backend is configured.
		if env.Orchestrator != nil {
			go func() {
				if err := env.Orchestrator.Run(ctx); err != nil {
					zap.L().Error("orchestrator stopped", zap.Error(err))
				}
			}()
		} else {
			zap.L().Warn("no scoring backend configured, documents will not be predicted automatically")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the chi router over the shared environment.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", handleListDocuments(env))
		r.Post("/", handleIngestDocument(env))
		r.Get("/{id}", handleGetDocument(env))
		r.Delete("/{id}", handleDeleteDocument(env))
		r.Get("/{id}/rows", handleListRows(env))
		r.Get("/{id}/predictions", handleListPredictions(env))
		r.Get("/{id}/failures", handleListFailures(env))
		r.Post("/{id}/predict", handlePredictDocument(env))
	})

	r.Route("/predictions", func(r chi.Router) {
		r.Get("/{id}", handleGetPrediction(env))
		r.Get("/{id}/summary", handleGetSummary(env))
		r.Get("/{id}/results", handleListResults(env))
		r.Get("/{id}/corrections", handleListCorrections(env))
		r.Post("/{id}/corrections", handleApplyCorrections(env))
		r.Get("/{id}/export", handleExportResults(env))
	})

	// The prediction_url recorded on every prediction resolves here.
	r.Get("/file/document/{docID}/prediction/{id}/result.csv", handleExportResults(env))

	r.Get("/events", handleEvents(env))

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// queryPage reads page/page_size query parameters.
func queryPage(r *http.Request) model.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return model.Page{Page: page, PageSize: pageSize}
}

func handleListDocuments(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := env.Store.ListDocuments(r.Context(), store.DocumentFilter{
			Status: model.DocumentStatus(r.URL.Query().Get("status")),
			Page:   queryPage(r),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	}
}

func handleIngestDocument(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Source string `json:"source"`
			model.DocumentInput
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Source == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source is required"})
			return
		}
		if req.PredictField == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "predict_field is required"})
			return
		}
		if req.Name == "" {
			req.Name = req.Source
		}

		doc, rows, err := env.Ingest.Ingest(r.Context(), req.Source, req.DocumentInput)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"document": doc, "rows": rows})
	}
}

func handleGetDocument(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := env.Store.GetDocument(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleDeleteDocument(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := env.Store.DeleteDocument(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		if err := env.Bus.Publish(events.TopicDocuments, model.DocumentDeleted(id)); err != nil {
			zap.L().Warn("failed to publish document deleted",
				zap.String("document_id", id), zap.Error(err))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListRows(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rp, err := env.Store.ListDocumentRows(r.Context(), chi.URLParam(r, "id"), queryPage(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rp)
	}
}

func handleListPredictions(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preds, err := env.Store.ListPredictions(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"predictions": preds})
	}
}

func handleListFailures(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages, err := env.Store.ListFailedPages(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"failed_pages": pages})
	}
}

func handlePredictDocument(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if env.Orchestrator == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no scoring backend configured"})
			return
		}

		doc, err := env.Store.GetDocument(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		var req struct {
			Model string `json:"model"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
		}

		// Run the prediction asynchronously; progress surfaces via /events.
		go func() {
			p, err := env.Orchestrator.ProcessDocument(context.Background(), doc, req.Model)
			if err != nil {
				zap.L().Error("prediction failed",
					zap.String("document_id", doc.ID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("prediction complete",
				zap.String("document_id", doc.ID),
				zap.String("prediction_id", p.ID),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":   "accepted",
			"document": doc.ID,
		})
	}
}

func handleGetPrediction(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := env.Store.GetPrediction(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleGetSummary(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ocfg := orchestratorConfig()
		if t, err := strconv.ParseFloat(r.URL.Query().Get("threshold"), 64); err == nil && t > 0 {
			ocfg.ConfidenceThreshold = t
		}

		s, err := newSummaryOrchestrator(env, ocfg).ComputeSummary(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleListResults(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threshold, _ := strconv.ParseFloat(r.URL.Query().Get("threshold"), 64)

		rp, err := env.Store.ListPredictionResults(r.Context(), chi.URLParam(r, "id"),
			queryPage(r),
			store.ResultListOptions{
				Filter:              model.ResultFilter(r.URL.Query().Get("filter")),
				ConfidenceThreshold: threshold,
			})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rp)
	}
}

func handleExportResults(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="result.csv"`)
		if err := env.Corrections.ExportCSV(r.Context(), id, w); err != nil {
			if eris.Is(err, store.ErrNotFound) {
				w.Header().Del("Content-Disposition")
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
				return
			}
			zap.L().Error("export failed", zap.String("prediction_id", id), zap.Error(err))
		}
	}
}

func handleListCorrections(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		corrs, err := env.Store.ListCorrections(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"corrections": corrs})
	}
}

func handleApplyCorrections(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Corrections []struct {
				PredictionRecordID string `json:"prediction_record_id"`
				CorrectedValue     string `json:"corrected_value"`
			} `json:"corrections"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		inputs := make([]corrections.Input, 0, len(req.Corrections))
		for _, c := range req.Corrections {
			inputs = append(inputs, corrections.Input{
				PredictionRecordID: c.PredictionRecordID,
				CorrectedValue:     c.CorrectedValue,
			})
		}

		res, err := env.Corrections.Apply(r.Context(), chi.URLParam(r, "id"), inputs)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleEvents streams bus events as server-sent events. The client picks
// topics with ?topic=documents&topic=predictions; both stream by default.
func handleEvents(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
			return
		}

		topics := r.URL.Query()["topic"]
		if len(topics) == 0 {
			topics = []string{events.TopicDocuments, events.TopicPredictions}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		merged := make(chan busEvent, 16)
		for _, name := range topics {
			sub, err := env.Bus.Subscribe(name)
			if err != nil {
				continue
			}
			defer sub.Cancel()
			go func(name string, sub *events.Subscription) {
				for {
					select {
					case ev, ok := <-sub.C():
						if !ok {
							return
						}
						select {
						case merged <- busEvent{Topic: name, Event: ev}:
						case <-r.Context().Done():
							return
						}
					case <-sub.Done():
						return
					case <-r.Context().Done():
						return
					}
				}
			}(name, sub)
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-merged:
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}

// busEvent is the SSE wire shape: the event plus its topic.
type busEvent struct {
	Topic string      `json:"topic"`
	Event model.Event `json:"event"`
}
