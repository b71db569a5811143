package agent

import (
	"context"
	"sync"
)

// Tracker tracks active orchestrator runs so shutdown can cancel them and
// wait for them to drain.
type Tracker struct {
	mu   sync.Mutex
	runs map[string]*trackedRun
	wg   sync.WaitGroup
}

type trackedRun struct {
	cancel func()
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*trackedRun)}
}

// Register records a run under callID and returns its unregister func, which
// is idempotent. Registering the same call id again replaces (and cancels)
// the previous run.
func (t *Tracker) Register(callID string, cancel func()) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedRun{cancel: cancel}

	t.mu.Lock()
	old := t.runs[callID]
	t.runs[callID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		if old.cancel != nil {
			old.cancel()
		}
		t.unregister(callID, old)
	}

	return func() { t.unregister(callID, entry) }
}

func (t *Tracker) unregister(callID string, entry *trackedRun) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.runs[callID] == entry {
			delete(t.runs, callID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.runs)
}

// CancelAll cancels every active run.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.runs {
		if entry == nil || entry.cancel == nil {
			continue
		}
		cancels = append(cancels, entry.cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until all runs have unregistered or ctx expires; it reports
// whether the tracker drained in time.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
