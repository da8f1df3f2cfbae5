package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the records API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("server listening", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return eris.Wrap(err, "server shutdown")
			}
			return nil
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return eris.Wrap(err, "server listen")
		}
	},
}

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/records", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		records, err := env.Store.ListRecords(req.Context(), store.RecordFilter{
			Project: q.Get("project"),
			School:  q.Get("school"),
			Program: q.Get("program"),
			Status:  model.ExtractionStatus(q.Get("status")),
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list records failed"})
			return
		}
		if records == nil {
			records = []model.ExtractionRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Get("/records/{id}", func(w http.ResponseWriter, req *http.Request) {
		record, err := env.Store.GetRecord(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
			return
		}
		writeJSON(w, http.StatusOK, record)
	})

	r.Post("/extract", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Project string `json:"project"`
			School  string `json:"school"`
			Program string `json:"program"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.School == "" || body.Program == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "school and program are required"})
			return
		}

		// Extraction runs in the background; poll /records for the result.
		go func() {
			record, err := env.Pipeline.Run(context.WithoutCancel(req.Context()), model.ExtractionRequest{
				Project: body.Project,
				School:  body.School,
				Program: body.Program,
			})
			if err != nil {
				zap.L().Error("async extraction failed",
					zap.String("school", body.School),
					zap.String("program", body.Program),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("async extraction complete",
				zap.String("school", body.School),
				zap.String("program", body.Program),
				zap.String("status", string(record.Facts.Status)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
