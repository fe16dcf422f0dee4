// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/texflow/internal/api"
	"github.com/starford/texflow/internal/mcpserver"
	"github.com/starford/texflow/internal/mirror"
	"github.com/starford/texflow/internal/projectservice"
	"github.com/starford/texflow/internal/sse"
	"github.com/starford/texflow/internal/storage"
	"github.com/starford/texflow/internal/store"
)

const treeThrottle = 2 * time.Second

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger installs the structured JSON logger as the process default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openService opens the document store and builds the project service on
// top of it. The caller closes the returned store.
func (a *application) openService(svcOpts ...projectservice.Option) (*store.DB, *projectservice.Service, error) {
	db, err := store.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	svcOpts = append(svcOpts, projectservice.WithAuthorDefault(a.config.Preview.AuthorDefault))
	return db, projectservice.New(db, svcOpts...), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("mirror_path", cfg.Mirror.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(treeThrottle)
	defer broker.Close()

	db, svc, err := app.openService(projectservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer db.Close()

	apiRouter := api.NewRouter(svc, api.RouterConfig{
		AuthEnabled:  cfg.Auth.AuthEnabled(),
		Token:        cfg.Auth.Token,
		DefaultOwner: cfg.Auth.DefaultOwner,
		Events:       broker,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ready(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Mirror.Enabled() {
		fsys, err := openMirror(cfg.Mirror.Path)
		if err != nil {
			return err
		}
		if _, err := svc.GetProject(ctx, cfg.Mirror.ProjectID); err != nil {
			return fmt.Errorf("mirror project %s: %w", cfg.Mirror.ProjectID, err)
		}

		st, err := mirror.Sync(ctx, svc, fsys, cfg.Mirror.ProjectID, logger)
		if err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		} else {
			logger.Info("initial sync done",
				slog.Int("created", st.Created), slog.Int("updated", st.Updated), slog.Int("deleted", st.Deleted))
		}

		g.Go(func() error {
			return mirror.Watch(gCtx, svc, fsys, cfg.Mirror.ProjectID, cfg.Mirror.Debounce, logger)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stops the mirror watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the assistant tool surface on stdin/stdout. Logs go to
// stderr unless WithLogOutput says otherwise.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	db, svc, err := app.openService()
	if err != nil {
		return err
	}
	defer db.Close()

	owner := app.config.Auth.DefaultOwner
	if owner == "" {
		return fmt.Errorf("auth.default_owner is required for the MCP server")
	}
	logger.Info("MCP server starting", slog.String("owner", owner))
	return mcpserver.New(svc, owner).ServeStdio()
}

// Export writes a project's files into dir, creating it if needed, and
// returns the number of files written.
func Export(ctx context.Context, projectID, dir string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	logger := app.logger()

	db, svc, err := app.openService()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	fsys, err := openMirror(dir)
	if err != nil {
		return 0, err
	}
	return mirror.Export(ctx, svc, fsys, projectID, logger)
}

func openMirror(dir string) (*storage.FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	fsys, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("init mirror storage: %w", err)
	}
	return fsys, nil
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}
