// Package app wires the reminder scheduler together and manages its
// lifecycle: store, recurrence engine, job registry, dispatcher,
// orchestrator and the optional metrics listener.
package app

import (
	"context"
	"sync"

	"github.com/aatumaykin/habitflow/internal/config"
	"github.com/aatumaykin/habitflow/internal/cron"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/aatumaykin/habitflow/internal/metrics"
	"github.com/aatumaykin/habitflow/internal/notify"
	"github.com/aatumaykin/habitflow/internal/reminder"
	"github.com/aatumaykin/habitflow/internal/store"
)

// App holds every component of a running scheduler.
type App struct {
	config *config.Config
	logger *logger.Logger

	store        store.Store
	engine       *cron.Engine
	registry     *cron.Registry
	dispatcher   *notify.Dispatcher
	orchestrator *reminder.Orchestrator

	metrics       *metrics.PrometheusMetrics
	metricsServer *metrics.Server

	// openStore and newSender are replaced in tests.
	openStore func(store.Config, *logger.Logger) (store.Store, error)
	newSender func(notify.Config, *logger.Logger) (notify.Sender, error)

	mu      sync.Mutex
	started bool

	// writeMu covers a store write and the job change that follows it, so a
	// delete cannot land between a save and its scheduling.
	writeMu sync.Mutex
}

// New creates an App. Components are built by Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config:    cfg,
		logger:    log,
		openStore: store.Open,
		newSender: notify.NewSender,
	}
}

// Run initializes and starts the scheduler, blocks until ctx is cancelled,
// then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	a.logger.Info("habitflow is running")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Scheduler.ShutdownTimeout())
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Orchestrator returns the reminder orchestrator.
func (a *App) Orchestrator() *reminder.Orchestrator {
	return a.orchestrator
}

// Registry returns the job registry.
func (a *App) Registry() *cron.Registry {
	return a.registry
}

// Store returns the persistence collaborator.
func (a *App) Store() store.Store {
	return a.store
}
