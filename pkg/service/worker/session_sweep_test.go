package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/prreminder/frontend/pkg/service/worker"
)

type mockSweeper struct {
	mu     sync.Mutex
	calls  int
	err    error
	called chan struct{}
}

func newMockSweeper() *mockSweeper {
	return &mockSweeper{called: make(chan struct{}, 16)}
}

func (m *mockSweeper) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()

	select {
	case m.called <- struct{}{}:
	default:
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (m *mockSweeper) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func waitCall(t *testing.T, m *mockSweeper) {
	t.Helper()
	select {
	case <-m.called:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper was not called")
	}
}

func TestSessionSweepWorker_SweepsImmediatelyAndPeriodically(t *testing.T) {
	sweeper := newMockSweeper()
	w := worker.NewSessionSweepWorker(sweeper, 10*time.Millisecond)

	gt.NoError(t, w.Start(context.Background())).Required()
	waitCall(t, sweeper)
	waitCall(t, sweeper)
	w.Stop()

	gt.Bool(t, sweeper.count() >= 2).True()
}

func TestSessionSweepWorker_ContinuesAfterError(t *testing.T) {
	sweeper := newMockSweeper()
	sweeper.err = errors.New("store unavailable")
	w := worker.NewSessionSweepWorker(sweeper, 10*time.Millisecond)

	gt.NoError(t, w.Start(context.Background())).Required()
	waitCall(t, sweeper)
	waitCall(t, sweeper)
	w.Stop()
}

func TestSessionSweepWorker_StopsOnContextCancel(t *testing.T) {
	sweeper := newMockSweeper()
	w := worker.NewSessionSweepWorker(sweeper, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	gt.NoError(t, w.Start(ctx)).Required()
	waitCall(t, sweeper)
	cancel()

	// Stop must return once the loop has exited
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
