package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/api"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/config"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/handlers"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/logging"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/service"
)

const serviceName = "armorum-backoffice-service"

// MAIN: inicializa configuración, registros y servidor HTTP
func main() {
	bootstrap, err := logging.NewLogger("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(bootstrap)

	cfg, err := config.Load()
	if err != nil {
		zap.L().Error("Invalid configuration", zap.Error(err))
		os.Exit(1)
	}

	// Logger definitivo con el nivel configurado
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		zap.L().Error("Invalid log level", zap.String("log_level", cfg.LogLevel), zap.Error(err))
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Inicializar dependencias
	client, err := api.NewArmorumClient(api.Options{
		BaseURL:        cfg.APIBaseURL,
		Tokens:         api.StaticToken(cfg.AuthToken),
		Timeout:        cfg.HTTPTimeout,
		MaxFailures:    cfg.BreakerMaxFailures,
		BreakerTimeout: cfg.BreakerTimeout,
	})
	if err != nil {
		zap.L().Error("Failed to start Armorum client", zap.Error(err))
		os.Exit(1)
	}

	app := service.NewApp(client, service.Settings{
		BatchPollInterval:     cfg.BatchPollInterval,
		ExceptionPollInterval: cfg.ExceptionPollInterval,
		ProductPollInterval:   cfg.ProductPollInterval,
		MessageTTL:            cfg.MessageTTL,
		MaxUploadBytes:        cfg.MaxUploadBytes,
	})

	rootCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()

	if err := app.Start(rootCtx); err != nil {
		zap.L().Error("Failed to start registries", zap.Error(err))
		os.Exit(1)
	}

	// HTTP ROUTES
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	handlers.Register(mux, app, cfg.MaxUploadBytes, withLogging)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// GRACEFUL SHUTDOWN
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		zap.L().Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("Graceful shutdown failed", zap.Error(err))
		}

		// Detener el polling: descarta respuestas en curso
		app.Stop()
		stopPolling()

		zap.L().Info("Server exited")
	}()

	zap.L().Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("armorum_api_url", cfg.APIBaseURL),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zap.L().Error("Server stopped unexpectedly", zap.Error(err))
		app.Stop()
		return
	}
	<-done
}

// MIDDLEWARE: Logging con Trace ID compatible con GCP
func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extraer Trace ID de Cloud Run
		traceHeader := r.Header.Get("X-Cloud-Trace-Context")
		var traceID string
		if traceHeader != "" {
			// Formato: TRACE_ID/SPAN_ID;o=TRACE_TRUE
			if slashIdx := strings.IndexByte(traceHeader, '/'); slashIdx != -1 {
				traceID = traceHeader[:slashIdx]
			} else {
				traceID = traceHeader
			}
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		projectID := os.Getenv("GCP_PROJECT")
		if projectID == "" {
			projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}

		ctx := logging.WithTraceID(r.Context(), traceID)

		logFields := []zap.Field{
			zap.String("trace_id", traceID),
			zap.String("httpRequest.requestMethod", r.Method),
			zap.String("httpRequest.requestUrl", r.URL.Path),
			zap.String("httpRequest.remoteIp", r.RemoteAddr),
			zap.String("httpRequest.userAgent", r.UserAgent()),
		}
		if projectID != "" {
			logFields = append(logFields, zap.String("logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", projectID, traceID)))
		}

		zap.L().Info("Request started", logFields...)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(ctx))

		duration := time.Since(start)

		completedFields := []zap.Field{
			zap.String("trace_id", traceID),
			zap.String("httpRequest.requestMethod", r.Method),
			zap.String("httpRequest.requestUrl", r.URL.Path),
			zap.Int("httpRequest.status", rec.status),
			zap.Int64("httpRequest.latency.milliseconds", duration.Milliseconds()),
			zap.Float64("httpRequest.latency.seconds", duration.Seconds()),
		}
		if projectID != "" {
			completedFields = append(completedFields, zap.String("logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", projectID, traceID)))
		}

		zap.L().Info("Request completed", completedFields...)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HEALTH CHECK
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Service: serviceName,
		Version: "1.0.0",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
