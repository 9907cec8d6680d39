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

	"github.com/sells-group/willow/pkg/cloudcma"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intelligence API and webhook server",
	Long: `Serves the lead-intelligence API and the inbound webhook endpoints:

  GET  /health
  GET  /api/intelligence/{leadID}    score, defaults, and valuation for a lead
  POST /api/cma/generate             request a CMA report ({"lead_id": "..."})
  POST /webhook/cloudcma?token=...   Cloud CMA report-completion callback
  POST /webhook/crm/person-updated   CRM change notification, triggers a rescore`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	r := newRouter(ctx, env, cfg.Server.AllowedOrigins)

	port := servePort
	if port == 0 {
		port = cfg.Server.Port
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// newRouter registers the API and webhook routes. ctx outlives individual
// requests and bounds the async rescore work.
func newRouter(ctx context.Context, env *appEnv, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/intelligence/{leadID}", func(w http.ResponseWriter, req *http.Request) {
		result, err := env.Pipeline.Analyze(req.Context(), chi.URLParam(req, "leadID"))
		if err != nil {
			zap.L().Error("intelligence request failed", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "analysis failed"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/api/cma/generate", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			LeadID string `json:"lead_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.LeadID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lead_id is required"})
			return
		}
		out, err := env.Pipeline.GenerateCMA(req.Context(), body.LeadID)
		if err != nil {
			zap.L().Error("cma generate failed", zap.String("lead_id", body.LeadID), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "report request failed"})
			return
		}
		writeJSON(w, http.StatusAccepted, out)
	})

	r.Post("/webhook/cloudcma", func(w http.ResponseWriter, req *http.Request) {
		token := req.URL.Query().Get("token")
		var payload cloudcma.WebhookPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		outcome, err := env.Webhook.Process(req.Context(), token, payload)
		if err != nil {
			zap.L().Error("cloudcma webhook failed", zap.String("token", token), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
			return
		}
		// Duplicates and unmatched tokens answer 200 so the provider
		// stops redelivering.
		writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
	})

	r.Post("/webhook/crm/person-updated", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			PersonID json.Number `json:"personId"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.PersonID.String() == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "personId is required"})
			return
		}

		// Rescore asynchronously; the CRM only needs the ack.
		leadID := body.PersonID.String()
		go func() {
			result, err := env.Pipeline.Analyze(ctx, leadID)
			if err != nil {
				zap.L().Error("webhook rescore failed", zap.String("lead_id", leadID), zap.Error(err))
				return
			}
			zap.L().Info("webhook rescore complete",
				zap.String("lead_id", leadID),
				zap.Int("composite", result.Score.Composite),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "lead_id": leadID})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
