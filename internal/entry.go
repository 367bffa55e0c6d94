// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/skilldesk/internal/api"
	"github.com/starford/skilldesk/internal/filetree"
	"github.com/starford/skilldesk/internal/index"
	"github.com/starford/skilldesk/internal/mcpserver"
	"github.com/starford/skilldesk/internal/session"
	"github.com/starford/skilldesk/internal/skillservice"
	"github.com/starford/skilldesk/internal/sse"
	"github.com/starford/skilldesk/internal/storage"
)

// runtime holds the components shared by every entry point.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	svc    *skillservice.Service
}

func (a *application) open(logOut io.Writer) (*runtime, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("skills_path", cfg.Skills.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Skills.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create skills dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Skills.Path, cfg.Skills.StorageOptions()...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		db:     db,
		svc:    skillservice.NewService(store, db),
	}, nil
}

// Run starts the HTTP server, the skills watcher and the event broker.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.open(os.Stdout)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	cfg, logger := rt.cfg, rt.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt.svc.OnSaved(func(name string) {
		broker.PublishSkillEvent("saved", name)
	})

	sessions := session.NewManager(rt.svc, broker, logger, cfg.Editor.Session())
	defer sessions.CloseAll()

	apiRouter := api.NewRouter(rt.svc, sessions, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := index.Watch(gCtx, rt.db, rt.store, cfg.Skills.Path, logger, func(kind, skill string) {
			broker.PublishSkillEvent(kind, skill)
		})
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the skills catalogue over MCP on stdin/stdout. Logs go to
// stderr so they do not corrupt the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.open(os.Stderr)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(ctx, rt.db, rt.store, rt.cfg.Skills.Path, rt.logger, nil); err != nil {
			rt.logger.Warn("watcher: stopped", slog.String("error", err.Error()))
		}
	}()

	rt.logger.Info("mcp: serving on stdio")
	return mcpserver.New(rt.svc, app.version).ServeStdio()
}

// PrintTree writes the file tree of one skill.
func PrintTree(ctx context.Context, skill string, opts ...Option) error {
	app := newApplication(opts)
	if app.out == nil {
		app.out = os.Stdout
	}
	rt, err := app.open(io.Discard)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	nodes, err := rt.svc.FileTree(ctx, skill)
	if err != nil {
		return err
	}
	return filetree.Fprint(app.out, nodes)
}
