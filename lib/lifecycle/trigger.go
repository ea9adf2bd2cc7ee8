// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Trigger is a one-shot shutdown latch.
type Trigger struct {
	logger *slog.Logger

	once   sync.Once
	mu     sync.Mutex
	reason string
	fired  chan struct{}
}

// NewTrigger returns an unfired Trigger.
func NewTrigger(logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		logger: logger,
		fired:  make(chan struct{}),
	}
}

// Fire requests shutdown. It reports whether this call was the one
// that fired the trigger.
func (t *Trigger) Fire(reason string) bool {
	first := false
	t.once.Do(func() {
		t.mu.Lock()
		t.reason = reason
		t.mu.Unlock()
		close(t.fired)
		first = true
	})
	if first {
		t.logger.Info("shutdown requested", "reason", reason)
	} else {
		t.logger.Debug("shutdown already requested", "reason", reason, "first_reason", t.Reason())
	}
	return first
}

// Done is closed once Fire has been called.
func (t *Trigger) Done() <-chan struct{} {
	return t.fired
}

// Reason returns the reason passed to the first Fire, or "" if the
// trigger has not fired.
func (t *Trigger) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// NotifySignals fires the trigger on SIGINT or SIGTERM until stop is
// called. A second signal after the first is only logged; callers
// enforce their own shutdown deadline.
func (t *Trigger) NotifySignals() (stop func()) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case received := <-signals:
				t.Fire("signal " + received.String())
			case <-done:
				return
			}
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(signals)
			close(done)
			wg.Wait()
		})
	}
}
