package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/feedback-cli/internal/classify"
	"github.com/sells-group/feedback-cli/internal/model"
	"github.com/sells-group/feedback-cli/internal/monitoring"
	"github.com/sells-group/feedback-cli/internal/taxonomy"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the classification preview server",
	Long:  "Serves ad-hoc classification and coverage stats over HTTP. The taxonomy file is watched and hot-reloaded, so keyword edits take effect without a restart.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// The engine pointer is swapped atomically on taxonomy reload so
		// in-flight requests keep the version they started with.
		var engine atomic.Pointer[classify.Engine]
		engine.Store(env.Engine)

		watcher, err := taxonomy.NewWatcher(cfg.Taxonomy.Path, func(tax *taxonomy.Taxonomy) {
			e, err := classify.NewEngine(tax, cfg.Classifier)
			if err != nil {
				zap.L().Error("rebuilding engine after taxonomy reload failed", zap.Error(err))
				return
			}
			engine.Store(e)
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
		go watcher.Run(ctx)

		// Background quality checker.
		collector := monitoring.NewCollector(env.Store)
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring, env.Engine.Version())
		go checker.Run(ctx)

		r := chi.NewRouter()
		r.Use(chimw.RequestID)
		r.Use(chimw.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}))
		r.Use(rateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/classify", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Text string `json:"text"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Text == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
				return
			}

			// Preview records are never persisted, so the natural key is
			// synthetic.
			rec := model.SourceRecord{
				OriginTable: "preview",
				OriginRow:   1,
				Field:       "text",
				Text:        body.Text,
			}
			result, err := engine.Load().Classify(rec)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "classification failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"category":         result.Category,
				"confidence":       result.Confidence,
				"is_noise":         result.IsNoise,
				"noise_reason":     result.NoiseReason,
				"normalized_text":  result.NormalizedText,
				"evidence":         result.Evidence,
				"taxonomy_version": result.TaxonomyVersion,
			})
		})

		r.Get("/api/stats", func(w http.ResponseWriter, req *http.Request) {
			snap, err := collector.Collect(req.Context(), engine.Load().Version())
			if err != nil {
				zap.L().Error("stats collection failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}

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

// rateLimit applies a global token-bucket limit across all clients. The
// preview server sits behind an internal proxy, so per-IP accounting is
// not worth the bookkeeping.
func rateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = int(perSecond) * 2
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
