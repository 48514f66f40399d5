// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assistly/assistant-platform/internal/config"
	"github.com/assistly/assistant-platform/internal/handler"
	"github.com/assistly/assistant-platform/internal/llm"
	"github.com/assistly/assistant-platform/internal/middleware"
	natsclient "github.com/assistly/assistant-platform/internal/nats"
	"github.com/assistly/assistant-platform/internal/service"
	"github.com/assistly/assistant-platform/internal/speech"
	"github.com/assistly/assistant-platform/internal/store/natskv"
	"github.com/assistly/assistant-platform/pkg/logger"
	"github.com/assistly/assistant-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "assistant-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing")
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure JetStream stream and KV buckets exist
	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", "error", err)
		os.Exit(1)
	}
	if err := streamManager.EnsureBuckets(ctx); err != nil {
		log.Error("failed to ensure buckets", "error", err)
		os.Exit(1)
	}

	st, err := natskv.New(ctx, streamManager)
	if err != nil {
		log.Error("failed to open stores", "error", err)
		os.Exit(1)
	}

	// Initialize LLM clients
	llmClients := make(map[llm.Provider]llm.Client)
	if cfg.OpenAIAPIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client", "error", err)
		} else {
			llmClients[llm.ProviderOpenAI] = client
		}
	}
	if cfg.AnthropicAPIKey != "" {
		client, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client", "error", err)
		} else {
			llmClients[llm.ProviderAnthropic] = client
		}
	}
	if len(llmClients) == 0 {
		log.Warn("no LLM API keys configured, test chat replies disabled")
	}

	// Initialize speech providers
	var transcriber speech.Transcriber
	if cfg.DeepgramAPIKey != "" {
		client, err := speech.NewDeepgramClient(cfg.DeepgramAPIKey)
		if err != nil {
			log.Warn("failed to create Deepgram client, transcription disabled", "error", err)
		} else {
			transcriber = client
		}
	} else {
		log.Warn("no Deepgram API key configured, transcription disabled")
	}

	var synthesizer speech.Synthesizer
	if cfg.ElevenLabsAPIKey != "" {
		client, err := speech.NewElevenLabsClient(cfg.ElevenLabsAPIKey)
		if err != nil {
			log.Warn("failed to create ElevenLabs client, synthesis disabled", "error", err)
		} else {
			synthesizer = client
		}
	} else {
		log.Warn("no ElevenLabs API key configured, synthesis disabled")
	}

	// Initialize services
	configSvc := service.NewConfigService(st, log)
	registrySvc := service.NewRegistryService(st, configSvc, log)
	sessionSvc := service.NewSessionService(st, log)
	testChatSvc := service.NewTestChatService(registrySvc, configSvc, llmClients, transcriber, synthesizer, streamManager, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	assistantHandler := handler.NewAssistantHandler(registrySvc, log)
	configHandler := handler.NewConfigHandler(registrySvc, configSvc, log)
	sessionHandler := handler.NewSessionHandler(sessionSvc, registrySvc, log)
	testChatHandler := handler.NewTestChatHandler(testChatSvc, sessionSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Assistants
		r.Route("/assistants", func(r chi.Router) {
			r.Post("/", assistantHandler.Create)
			r.Get("/", assistantHandler.List)
			r.Get("/state", assistantHandler.GetState)
			r.Put("/active", assistantHandler.SetActive)
			r.Put("/search", assistantHandler.SetSearch)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", assistantHandler.Get)
				r.Put("/", assistantHandler.Update)
				r.Delete("/", assistantHandler.Delete)

				// Configuration
				r.Get("/config", configHandler.Get)
				r.Put("/config", configHandler.Update)
				r.Post("/config/files", configHandler.AddFile)
				r.Delete("/config/files/{fileID}", configHandler.RemoveFile)
			})
		})

		// Chat sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/", sessionHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/messages", sessionHandler.Append)
			})
		})

		// Test dialogs
		r.Route("/test-dialogs", func(r chi.Router) {
			r.Post("/", testChatHandler.Open)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", testChatHandler.Get)
				r.Delete("/", testChatHandler.Close)
				r.Get("/events", testChatHandler.Events)
				r.Post("/permission", testChatHandler.SetPermission)
				r.Post("/recording/start", testChatHandler.StartRecording)
				r.Post("/recording/stop", testChatHandler.StopRecording)
				r.Post("/messages", testChatHandler.Send)
				r.Post("/playback/done", testChatHandler.FinishPlayback)
				r.Post("/save", testChatHandler.SaveTranscript)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
