package worker

import (
	"context"
	"time"

	"github.com/prreminder/frontend/pkg/utils/logging"
)

// SessionSweeper removes sessions that expired before now and reports how
// many were removed.
type SessionSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionSweepWorker periodically deletes expired sessions together with
// their in-memory scopes.
//
// Architecture assumptions:
// - Deleting an already deleted session is harmless, so several instances may sweep the same store
type SessionSweepWorker struct {
	sweeper  SessionSweeper
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSessionSweepWorker(sweeper SessionSweeper, interval time.Duration) *SessionSweepWorker {
	return &SessionSweepWorker{
		sweeper:  sweeper,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in a background goroutine. The first sweep
// happens immediately.
func (w *SessionSweepWorker) Start(ctx context.Context) error {
	logging.Default().Info("Session sweep worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion.
func (w *SessionSweepWorker) Stop() {
	logging.Default().Info("Session sweep worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Session sweep worker stopped")
}

func (w *SessionSweepWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("Session sweep worker context cancelled")
			return
		}
	}
}

func (w *SessionSweepWorker) sweep(ctx context.Context) {
	started := w.now()
	n, err := w.sweeper.SweepExpired(ctx, started)
	if err != nil {
		logging.Default().Error("Session sweep failed (will retry next interval)",
			"error", err.Error())
		return
	}

	if n > 0 {
		logging.Default().Info("Expired sessions removed",
			"count", n,
			"duration", time.Since(started).String())
	}
}
