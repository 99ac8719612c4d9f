package session

import (
	"context"
	"time"
)

// Scan intervals. Deadlines are enforced by the next tick, so enforcement
// lags a true deadline by at most the interval; that bounded staleness is an
// accepted tradeoff, not a bug.
const (
	ReminderScanInterval  = 10 * time.Second
	ExpiryScanInterval    = 30 * time.Second
	LifecycleScanInterval = 60 * time.Second
)

// RunScanWorkers drives the three periodic scans until ctx is done. Each
// scan isolates failures per session or attempt: one failing item is logged
// and skipped, never aborting the rest of the batch.
func (r *Runtime) RunScanWorkers(ctx context.Context) error {
	reminders := time.NewTicker(ReminderScanInterval)
	expiry := time.NewTicker(ExpiryScanInterval)
	lifecycle := time.NewTicker(LifecycleScanInterval)
	defer reminders.Stop()
	defer expiry.Stop()
	defer lifecycle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reminders.C:
			r.RunReminderScan(ctx)
		case <-expiry.C:
			r.RunExpiryScan(ctx)
		case <-lifecycle.C:
			r.RunLifecycleScan(ctx)
		}
	}
}

// RunReminderScan sends starting-soon and started pushes for open sessions.
func (r *Runtime) RunReminderScan(ctx context.Context) {
	sessions, err := r.store.ListOpenSessions(ctx)
	if err != nil {
		r.logger.Error("listing open sessions", "scan", "reminder", "error", err)
		return
	}
	for _, sess := range sessions {
		r.remindUpcoming(ctx, sess)
	}
}

// RunExpiryScan completes attempts whose deadline has passed.
func (r *Runtime) RunExpiryScan(ctx context.Context) {
	r.expireOverdueAttempts(ctx)
}

// RunLifecycleScan re-evaluates every open session's lifecycle transitions.
func (r *Runtime) RunLifecycleScan(ctx context.Context) {
	sessions, err := r.store.ListOpenSessions(ctx)
	if err != nil {
		r.logger.Error("listing open sessions", "scan", "lifecycle", "error", err)
		return
	}
	for _, sess := range sessions {
		if err := r.evaluateSession(ctx, sess); err != nil {
			r.logger.Error("lifecycle evaluation failed", "session_id", sess.ID, "error", err)
		}
	}
}
