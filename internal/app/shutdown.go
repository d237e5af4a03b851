package app

import (
	"context"
	"errors"
)

// Shutdown stops the components in reverse order of Start:
//  1. Stops the metrics listener
//  2. Stops the recurrence engine, waiting for running reminders
//  3. Cancels every registered job
//  4. Closes the store
//
// In-memory jobs are lost; the next Start rebuilds them from the store.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error

	if a.metricsServer != nil && a.started {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics listener", err)
			errs = append(errs, err)
		}
	}

	if a.engine != nil && a.engine.IsStarted() {
		if err := a.engine.Stop(ctx); err != nil {
			a.logger.Error("failed to stop recurrence engine", err)
			errs = append(errs, err)
		}
	}

	if a.registry != nil {
		a.registry.Close()
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close store", err)
			errs = append(errs, err)
		}
	}

	a.started = false
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
