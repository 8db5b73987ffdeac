// Package server initializes and runs the FailSeed server: it opens storage,
// applies migrations, builds the LLM gateway and services, and serves the
// HTTP and gRPC transports until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/failseed/internal/dbx"
	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/config"
	"github.com/dmitrijs2005/failseed/internal/server/httpapi"
	"github.com/dmitrijs2005/failseed/internal/server/llm"
	"github.com/dmitrijs2005/failseed/internal/server/metrics"
	"github.com/dmitrijs2005/failseed/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/failseed/internal/server/services"

	gs "github.com/dmitrijs2005/failseed/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	metrics       *metrics.Metrics
	conversations *services.ConversationService
	userService   *services.UserService
	exportService *services.ExportService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogLevel)

	dialect, err := dbx.ParseDialect(c.StorageDriver)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, dialect, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewSQLRepositoryManager(dialect)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	completer, err := newCompleter(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	policy, err := llm.LoadPolicy(c.PromptPolicyFile)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prompt policy error: %w", err)
	}

	m := metrics.New()
	gateway := llm.NewGateway(completer, policy, logger, m)

	app := &App{
		config:        c,
		logger:        logger,
		db:            db,
		metrics:       m,
		conversations: services.NewConversationService(db, rm, gateway, logger, c),
		userService:   services.NewUserService(db, rm, c),
		exportService: services.NewExportService(db, rm, c),
	}

	logger.Info(ctx, "app initialised",
		"storage", string(dialect), "llm_provider", completer.Name(), "export", app.exportService.Enabled())

	return app, nil
}

// newCompleter builds the configured provider. A hosted provider without an
// API key falls back to the mock provider so a local setup still works.
func newCompleter(ctx context.Context, c *config.Config, logger logging.Logger) (llm.Completer, error) {
	pc := llm.ProviderConfig{
		Provider:    c.LLMProvider,
		Model:       c.LLMModel,
		APIKey:      c.LLMAPIKey,
		BaseURL:     c.LLMBaseURL,
		Timeout:     c.LLMTimeout,
		Temperature: c.LLMTemperature,
	}

	if pc.Provider != "mock" && pc.APIKey == "" && pc.BaseURL == "" {
		logger.Warn(ctx, "no LLM API key configured, using mock provider", "provider", pc.Provider)
		pc.Provider = "mock"
	}

	completer, err := llm.NewCompleter(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("llm init error: %w", err)
	}
	return completer, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Handler returns the HTTP API with every collaborator wired in.
func (app *App) Handler() http.Handler {
	opts := httpapi.Options{Metrics: app.metrics}
	if app.exportService.Enabled() {
		opts.Exporter = app.exportService
	}
	return httpapi.NewServer(app.conversations, app.userService, []byte(app.config.SecretKey), app.logger, opts)
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.conversations, app.config.SecretKey, app.metrics)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves both transports until ctx is cancelled or a signal arrives,
// then closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
