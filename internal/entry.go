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

	"github.com/starford/notepress/internal/api"
	"github.com/starford/notepress/internal/mcpserver"
	"github.com/starford/notepress/internal/normalize"
	"github.com/starford/notepress/internal/pipeline"
	"github.com/starford/notepress/internal/prompt"
	"github.com/starford/notepress/internal/publisher"
	"github.com/starford/notepress/internal/sse"
	"github.com/starford/notepress/internal/vcs"
	"github.com/starford/notepress/internal/watch"
)

// PublishCommand describes one CLI publish.
type PublishCommand struct {
	SourcePath string
	Title      string
	NoGit      bool
	// Tags, Categories and Excerpt answer the header questions. When none is
	// set and Yes is false, the questions are asked on the console.
	Tags       []string
	Categories []string
	Excerpt    string
	Yes        bool
}

func (c PublishCommand) interaction(a *application) normalize.Interaction {
	if c.Yes || len(c.Tags) > 0 || len(c.Categories) > 0 || c.Excerpt != "" {
		return prompt.FromAnswers(c.Tags, c.Categories, c.Excerpt)
	}
	return prompt.NewConsole(a.stdin, a.stdout)
}

// WatchCommand describes a watch session.
type WatchCommand struct {
	SourcePath string
	Title      string
	Push       bool
}

func newApplication(opts []Option) (*application, error) {
	app := &application{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds the process logger. Logs go to stderr so stdout stays free
// for prompts and command output.
func (a *application) newLogger() *slog.Logger {
	hopts := &slog.HandlerOptions{Level: a.config.App.LogLevel}
	var h slog.Handler
	if a.config.App.LogFormat == LogFormatJSON {
		h = slog.NewJSONHandler(a.stderr, hopts)
	} else {
		h = slog.NewTextHandler(a.stderr, hopts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func (a *application) newPublisher(logger *slog.Logger, extra ...publisher.Option) (*publisher.Service, error) {
	cfg := a.config
	p := pipeline.New(cfg.PipelineConfig(),
		pipeline.WithLogger(logger),
		pipeline.WithClock(a.now),
	)
	opts := []publisher.Option{publisher.WithLogger(logger)}
	if cfg.Git.Enabled {
		gopts := []vcs.Option{vcs.WithBinary(cfg.Git.Binary), vcs.WithLogger(logger)}
		if a.runner != nil {
			gopts = append(gopts, vcs.WithRunner(a.runner))
		}
		opts = append(opts, publisher.WithGit(vcs.New(cfg.Site.Root, gopts...)))
	}
	svc, err := publisher.New(cfg.PublisherSettings(), p, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	return svc, nil
}

// RunPublish publishes one note and prints the outcome. A failed git step is
// returned as an error after the report is printed; the post stays written.
func RunPublish(ctx context.Context, cmd PublishCommand, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()
	svc, err := app.newPublisher(logger)
	if err != nil {
		return err
	}

	push := !cmd.NoGit && app.config.Git.Enabled
	report, err := svc.Publish(ctx, publisher.Options{
		SourcePath:  cmd.SourcePath,
		Title:       cmd.Title,
		Interaction: cmd.interaction(app),
		Push:        push,
	})
	if err != nil {
		return err
	}

	printReport(app.stdout, report)
	if push && !report.Pushed {
		return fmt.Errorf("post written but git publishing failed")
	}
	return nil
}

func printReport(w io.Writer, r *publisher.Report) {
	fmt.Fprintf(w, "published %q -> %s\n", r.Title, r.Post)
	for _, a := range r.Assets {
		switch {
		case a.Renamed:
			fmt.Fprintf(w, "  asset %s (renamed)\n", a.URL)
		case a.Copied:
			fmt.Fprintf(w, "  asset %s\n", a.URL)
		default:
			fmt.Fprintf(w, "  asset %s (already present)\n", a.URL)
		}
	}
	for _, warn := range r.Warnings {
		if warn.Reference != "" {
			fmt.Fprintf(w, "  warning [%s] %s: %s\n", warn.Stage, warn.Reference, warn.Message)
		} else {
			fmt.Fprintf(w, "  warning [%s] %s\n", warn.Stage, warn.Message)
		}
	}
	for _, step := range r.Git {
		status := "ok"
		if !step.OK {
			status = "FAILED"
		}
		fmt.Fprintf(w, "  git %s: %s\n", step.Step, status)
		if step.Note != "" {
			fmt.Fprintf(w, "    %s\n", step.Note)
		}
		if !step.OK && step.Output != "" {
			fmt.Fprintf(w, "    %s\n", step.Output)
		}
	}
}

// RunTags prints the tag and category indexes of the site.
func RunTags(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, err := app.newPublisher(app.newLogger())
	if err != nil {
		return err
	}
	tags, cats, err := svc.Taxonomy()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "tags (%d)\n", tags.Len())
	for _, e := range tags.Entries() {
		fmt.Fprintf(app.stdout, "  %4d  %s\n", e.Count, e.Name)
	}
	fmt.Fprintf(app.stdout, "categories (%d)\n", cats.Len())
	for _, e := range cats.Entries() {
		fmt.Fprintf(app.stdout, "  %4d  %s\n", e.Count, e.Name)
	}
	return nil
}

// RunWatch publishes the note once and again after every saved change until
// ctx is cancelled or a signal arrives.
func RunWatch(ctx context.Context, cmd WatchCommand, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()
	svc, err := app.newPublisher(logger)
	if err != nil {
		return err
	}

	publish := func(ctx context.Context) error {
		report, err := svc.Publish(ctx, publisher.Options{
			SourcePath:  cmd.SourcePath,
			Title:       cmd.Title,
			Interaction: prompt.Scripted{},
			Push:        cmd.Push && app.config.Git.Enabled,
		})
		if err != nil {
			return err
		}
		printReport(app.stdout, report)
		return nil
	}
	if err := publish(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watch.Watch(ctx, cmd.SourcePath, publish, watch.WithLogger(logger))
}

// RunMCP serves the MCP tools over stdio.
func RunMCP(_ context.Context, version string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()
	// The console is the transport, so tools never prompt.
	svc, err := app.newPublisher(logger)
	if err != nil {
		return err
	}
	logger.Info("mcp: serving on stdio", slog.String("site_root", app.config.Site.Root))
	return mcpserver.New(svc, version).ServeStdio()
}

// RunServe starts the HTTP server with the given options.
func RunServe(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("site_root", cfg.Site.Root),
		slog.String("posts_dir", cfg.Site.PostsDir),
		slog.String("assets_dir", cfg.Site.AssetsDir),
		slog.Bool("git", cfg.Git.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, err := app.newPublisher(logger, publisher.WithEvents(broker.Sink(publisher.EventFinished)))
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Migrated images, so previews of published posts resolve.
	r.Get(cfg.Site.AssetURLPrefix+"{filename}", api.NewAssetHandler(cfg.Site.AssetsPath()).ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
