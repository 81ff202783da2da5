package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/castscheduler/internal/metrics"
	"github.com/iliyamo/castscheduler/internal/service"
)

// reconcileBatch is the page size of one reconcile query.
const reconcileBatch = 500

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reschedule pending casts whose job went missing and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), metrics.Nop())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.casts().Reconcile(cmd.Context(), reconcileBatch)
		if err != nil {
			return err
		}
		a.log.Info("reconcile done", "rescheduled", n)
		return nil
	},
}

// reconcileLoop runs one pass at start and then every interval.
func reconcileLoop(ctx context.Context, casts *service.CastService, interval time.Duration, a *app) {
	run := func() {
		n, err := casts.Reconcile(ctx, reconcileBatch)
		if err != nil {
			if ctx.Err() == nil {
				a.log.Error("reconcile failed", "err", err)
			}
			return
		}
		if n > 0 {
			a.log.Info("reconcile rescheduled casts", "count", n)
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
