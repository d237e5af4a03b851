package app

import (
	"context"
	"fmt"
	"os"

	"github.com/aatumaykin/habitflow/internal/cron"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/aatumaykin/habitflow/internal/metrics"
	"github.com/aatumaykin/habitflow/internal/notify"
	"github.com/aatumaykin/habitflow/internal/reminder"
	"github.com/aatumaykin/habitflow/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Initialize builds every component. Nothing fires until Start. On failure
// the store is closed again.
func (a *App) Initialize(ctx context.Context) (err error) {
	loc, err := a.config.Scheduler.Location()
	if err != nil {
		return err
	}

	// 1. Persistence
	st, err := a.openStore(a.config.Store.Store(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.store = st
	defer func() {
		if err == nil {
			return
		}
		if cerr := st.Close(); cerr != nil {
			a.logger.Error("failed to close store", cerr)
		}
		a.store = nil
	}()

	if path := a.config.Store.SeedFile; path != "" {
		if err := a.seed(ctx, path); err != nil {
			return err
		}
	}

	// 2. Metrics
	var registryOpts []cron.RegistryOption
	dispatchOpts := []notify.DispatcherOption{
		notify.WithRateLimit(a.config.Notify.RatePerSec),
		notify.WithTimeout(a.config.Notify.Timeout()),
	}
	if a.config.Metrics.Enabled {
		a.metrics = metrics.InitPrometheusMetrics(a.config.Metrics.Namespace, prometheus.NewRegistry())
		a.metricsServer = metrics.NewServer(a.config.Metrics.Addr, a.metrics, a.logger)
		registryOpts = append(registryOpts, cron.WithObserver(a.metrics))
		dispatchOpts = append(dispatchOpts, notify.WithDispatchObserver(a.metrics))
	}

	// 3. Delivery
	sender, err := a.newSender(a.config.Notify.Sender(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to create %s sender: %w", a.config.Notify.Transport, err)
	}
	notifyLog := a.logger.With(logger.Field{Key: "component", Value: "notify"})
	breaker := notify.NewCircuitBreaker(a.config.Notify.BreakerThreshold, a.config.Notify.BreakerTimeout())
	sender = notify.NewBreakerSender(sender, breaker, notifyLog)
	a.dispatcher = notify.NewDispatcher(sender, notifyLog, dispatchOpts...)

	// 4. Scheduling
	cronLog := a.logger.With(logger.Field{Key: "component", Value: "cron"})
	a.engine = cron.NewEngine(loc, cronLog)
	a.registry = cron.NewRegistry(a.engine, cronLog, registryOpts...)
	a.orchestrator = reminder.New(a.store, a.registry, a.dispatcher,
		a.logger.With(logger.Field{Key: "component", Value: "reminder"}))

	a.logger.Info("components initialized",
		logger.Field{Key: "store", Value: a.config.Store.Driver},
		logger.Field{Key: "transport", Value: sender.Name()},
		logger.Field{Key: "timezone", Value: loc.String()},
		logger.Field{Key: "metrics", Value: a.config.Metrics.Enabled})
	return nil
}

// Start arms every stored reminder and starts firing them.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("app already started")
	}
	if a.orchestrator == nil {
		return fmt.Errorf("app not initialized")
	}

	a.writeMu.Lock()
	_, err := a.orchestrator.InitializeAllReminders(ctx)
	a.writeMu.Unlock()
	if err != nil {
		return err
	}
	if err := a.engine.Start(); err != nil {
		return err
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Start(); err != nil {
			return err
		}
	}

	a.started = true
	return nil
}

func (a *App) seed(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	res, err := store.Seed(ctx, a.store, f)
	if err != nil {
		return err
	}
	a.logger.Info("seed file loaded",
		logger.Field{Key: "path", Value: path},
		logger.Field{Key: "users", Value: len(res.Users)},
		logger.Field{Key: "habits", Value: len(res.Habits)})
	return nil
}
