package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// StartScheduler registers a refresh of every stored symbol on the configured
// cron schedule (standard five-field expression, evaluated in UTC) and starts it.
// Jobs run with ctx; Close stops the scheduler.
func (a *App) StartScheduler(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(a.Config.History.Schedule, func() { a.RefreshStored(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", a.Config.History.Schedule, err)
	}
	c.Start()
	a.scheduler = c

	a.Logger.Info().Str("schedule", a.Config.History.Schedule).Msg("Refresh scheduler: started")
	return nil
}

// stopScheduler stops the cron scheduler and waits for a running job
func (a *App) stopScheduler() {
	if a.scheduler == nil {
		return
	}
	<-a.scheduler.Stop().Done()
	a.scheduler = nil
	a.Logger.Info().Msg("Refresh scheduler: stopped")
}

// RefreshStored refreshes every symbol already in storage. Failures are
// logged; the next run retries them.
func (a *App) RefreshStored(ctx context.Context) {
	start := time.Now()

	symbols, err := a.Storage.ListSymbols(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduled refresh: listing symbols failed")
		return
	}
	if len(symbols) == 0 {
		return
	}

	results, err := a.Backfill.RefreshAll(ctx, symbols, false)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduled refresh: some symbols failed")
	}

	refreshed := 0
	for _, res := range results {
		if res.Err == nil && !res.Skipped {
			refreshed++
		}
	}
	a.Logger.Info().
		Int("symbols", len(symbols)).
		Int("refreshed", refreshed).
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled refresh: complete")
}
