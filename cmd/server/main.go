// Ollie - Educational Chat Companion Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/orbitlearn/ollie/internal/api"
	"github.com/orbitlearn/ollie/internal/config"
	"github.com/orbitlearn/ollie/internal/convlog"
	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/genai"
	"github.com/orbitlearn/ollie/internal/identity"
	"github.com/orbitlearn/ollie/internal/middleware"
	"github.com/orbitlearn/ollie/internal/profile"
	"github.com/orbitlearn/ollie/internal/quota"
	"github.com/orbitlearn/ollie/internal/session"
	"github.com/orbitlearn/ollie/internal/store"
	"github.com/orbitlearn/ollie/web"
)

// transcriptTTL is how long an untouched transcript survives before the
// background sweeper removes it.
const transcriptTTL = 7 * 24 * time.Hour

// registrySweepInterval is how often idle in-memory sessions are evicted.
const registrySweepInterval = 5 * time.Minute

// demoLesson is the built-in lesson demo sessions generate study tools
// from. Live deployments swap in real lesson content per learner.
var demoLesson = &domain.Lesson{
	Title: "Our Amazing Solar System",
	RawText: "The solar system is our home in space. At its center sits the Sun, " +
		"a star so large that more than a million Earths could fit inside it. " +
		"Eight planets travel around the Sun: Mercury, Venus, Earth, Mars, " +
		"Jupiter, Saturn, Uranus, and Neptune. The four inner planets are made " +
		"of rock, while the four outer planets are giant balls of gas and ice. " +
		"Earth is the only planet we know of with liquid water on its surface " +
		"and living things. Beyond the planets lies the asteroid belt, and far " +
		"past Neptune drift icy comets that grow glowing tails when they swing " +
		"close to the Sun. Gravity holds the whole family together, keeping " +
		"every planet on its own racetrack around our star.",
	KeyConcepts: []string{"Sun", "planets", "gravity", "orbits", "comets"},
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "ai_enabled", cfg.AIEnabled())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	convLogger, err := convlog.New(convlog.Config{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// OpenAI client is optional; without a key the service runs demo-only.
	var aiClient *genai.Client
	var generator *genai.Generator
	if cfg.AIEnabled() {
		aiClient, err = genai.NewClient(genai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			ImageModel: cfg.OpenAI.ImageModel,
		})
		if err != nil {
			slog.Error("Failed to initialize OpenAI client", "error", err)
			os.Exit(1)
		}
		generator = genai.NewGenerator(aiClient)
		slog.Info("AI features enabled", "model", cfg.OpenAI.Model)
	} else {
		slog.Info("AI features disabled (OPENAI_API_KEY not set), serving demo mode only")
	}

	keeper := quota.NewKeeper(repo, cfg.QuotaWindow)
	profiles := profile.NewResolver(repo)
	broadcaster := api.NewBroadcaster()

	registry := session.NewRegistry(func(userID, sessionID string) *session.Session {
		publish := func(msg domain.Message) {
			broadcaster.Publish(userID, sessionID, msg)
		}
		sc := session.Config{
			Mode:         session.ModeDemo,
			UserID:       userID,
			SessionID:    sessionID,
			Lesson:       session.StaticLesson{Lesson: demoLesson},
			Profiles:     profiles,
			Quota:        keeper,
			MessageLimit: cfg.DemoMessageLimit,
			OnAppend:     publish,
			History:      store.LoadTranscriptMessages(context.Background(), repo, userID, sessionID),
		}
		if aiClient != nil {
			sc.Mode = session.ModeLive
			sc.Backend = genai.NewLiveBackend(aiClient, publish)
			sc.Generator = generator
		}
		return session.New(sc)
	}, cfg.SessionTTL)

	handler := api.NewHandler(repo, registry, broadcaster, convLogger, cfg)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	handler.RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// SSE connections require long timeouts (no WriteTimeout); keepalive
	// pings run every 10s to hold the connection open.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry.StartSweeper(ctx, registrySweepInterval, logger)
	store.StartSweeper(ctx, repo, cfg.QuotaWindow, transcriptTTL)
	slog.Info("Background sweepers started", "session_ttl", cfg.SessionTTL, "quota_window", cfg.QuotaWindow)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	registry.CloseAll()
	slog.Info("Server stopped successfully")
}
