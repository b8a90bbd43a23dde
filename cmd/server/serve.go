package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/examprep/backend/internal/attempts"
	"github.com/examprep/backend/internal/auth"
	"github.com/examprep/backend/internal/config"
	"github.com/examprep/backend/internal/database"
	"github.com/examprep/backend/internal/engagement"
	"github.com/examprep/backend/internal/evaluation"
	"github.com/examprep/backend/internal/events"
	"github.com/examprep/backend/internal/middleware"
	"github.com/examprep/backend/internal/progress"
	"github.com/examprep/backend/internal/ratelimit"
	"github.com/examprep/backend/internal/store"
)

const (
	eventQueueSize     = 1024
	eventRetryAttempts = 5
	shutdownTimeout    = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("catalog", "", "YAML test catalog to upsert on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	s, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if path, _ := cmd.Flags().GetString("catalog"); path != "" {
		if err := seedCatalog(ctx, s, path); err != nil {
			return err
		}
		logger.Info("catalog loaded", "path", path)
	}

	sink, closeSink, err := buildEmitter(cfg, logger)
	if err != nil {
		return err
	}
	emitter := events.NewAsync(sink, eventQueueSize, eventRetryAttempts)

	counter, err := buildCounter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	limiter := ratelimit.New(counter, cfg.RateLimitRequests, cfg.RateLimitWindow)

	// Initialize services
	secret := []byte(cfg.JWTSecret)
	attemptService := attempts.NewService(s, emitter, logger)
	progressService := progress.NewService(s, logger)
	engagementService := engagement.NewService(s, emitter, logger, cfg.AssignmentTTL)
	evaluationService := evaluation.NewService(s, emitter, logger)

	// Initialize handlers
	authHandler := auth.NewHandler(s, secret, logger)
	attemptHandler := attempts.NewHandler(attemptService)
	progressHandler := progress.NewHandler(progressService)
	engagementHandler := engagement.NewHandler(engagementService)
	evaluationHandler := evaluation.NewHandler(evaluationService)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLog)
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	public := api.PathPrefix("/auth").Subrouter()
	public.Use(limiter.Middleware)
	public.HandleFunc("/register", authHandler.Register).Methods("POST")
	public.HandleFunc("/login", authHandler.Login).Methods("POST")

	// Machine-to-machine routes
	hooks := api.PathPrefix("/webhooks").Subrouter()
	hooks.Use(middleware.SharedSecret(evaluation.SecretHeader, cfg.EvaluationWebhookSecret))
	hooks.HandleFunc("/evaluations", evaluationHandler.Record).Methods("POST")
	hooks.HandleFunc("/completions", progressHandler.Reconcile).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(secret))
	protected.Use(limiter.Middleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	protected.HandleFunc("/tests/{id}/attempts", attemptHandler.Start).Methods("POST")
	protected.HandleFunc("/attempts/{id}", attemptHandler.Get).Methods("GET")
	protected.HandleFunc("/attempts/{id}/answers", attemptHandler.RecordAnswer).Methods("PUT")
	protected.HandleFunc("/attempts/{id}/submit", attemptHandler.Submit).Methods("POST")
	protected.HandleFunc("/attempts/{id}/evaluation", evaluationHandler.Get).Methods("GET")

	protected.HandleFunc("/progress", progressHandler.List).Methods("GET")

	protected.HandleFunc("/engagement", engagementHandler.GetState).Methods("GET")
	protected.HandleFunc("/daily-test", engagementHandler.DailyTest).Methods("GET")
	protected.HandleFunc("/assignments", engagementHandler.CreateAssignment).Methods("POST")
	protected.HandleFunc("/assignments", engagementHandler.ListAssignments).Methods("GET")
	protected.HandleFunc("/assignments/{id}/complete", engagementHandler.CompleteAssignment).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		engagementService.StartSweepWorker(gctx, cfg.AssignmentSweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if cerr := emitter.Close(shutdownCtx); cerr != nil {
			logger.Warn("event queue not drained", "error", cerr)
		}
		closeSink()
		return err
	})
	return g.Wait()
}

// buildEmitter assembles the outbound event sinks. The log sink is always
// present; the webhook and NATS sinks are added when configured.
func buildEmitter(cfg *config.Config, logger *slog.Logger) (events.Emitter, func(), error) {
	sinks := events.Multi{events.Log{}}
	closers := []func(){}

	if cfg.EventWebhookURL != "" {
		sinks = append(sinks, events.NewWebhook(cfg.EventWebhookURL, cfg.EventWebhookSecret))
		logger.Info("event webhook enabled", "url", cfg.EventWebhookURL)
	}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("examprep-backend"), nats.MaxReconnects(-1))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		sinks = append(sinks, events.NewNATS(nc, cfg.NATSSubjectPrefix))
		closers = append(closers, func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("nats drain failed", "error", err)
			}
		})
		logger.Info("nats events enabled", "url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// buildCounter picks Redis when configured so limits hold across replicas.
func buildCounter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.Counter, error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("redis rate limiting enabled", "addr", cfg.RedisAddr)
	return ratelimit.NewRedis(client), nil
}

func seedCatalog(ctx context.Context, s store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	catalog, err := database.ParseCatalog(f)
	if err != nil {
		return err
	}
	return database.ImportCatalog(ctx, s, catalog)
}
