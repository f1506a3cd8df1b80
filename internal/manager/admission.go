package manager

import (
	"context"
	"time"
)

// Begin reserves a queue slot and then the single in-flight slot of h. The
// returned release func must be called exactly once when the generation is
// done with the model.
func (h *Handle) Begin(ctx context.Context) (func(), error) {
	if h.State() == StateDraining {
		return func() {}, tooBusyError{modelID: h.ID}
	}
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(h.maxWait)
	defer timer.Stop()
	select {
	case h.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		admissionRejectsTotal.WithLabelValues(h.ID, "queue").Inc()
		return func() {}, tooBusyError{modelID: h.ID}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-h.queueCh
		}
	}()
	// Unload may have started while we waited; it only waits for slots
	// taken before it set draining.
	if h.State() == StateDraining {
		return func() {}, tooBusyError{modelID: h.ID}
	}
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(h.maxWait)
	defer timer2.Stop()
	select {
	case h.genCh <- struct{}{}:
		acquired = true
		h.mu.Lock()
		h.lastUsed = h.now()
		h.mu.Unlock()
		return func() { <-h.genCh; <-h.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		admissionRejectsTotal.WithLabelValues(h.ID, "inflight").Inc()
		return func() {}, tooBusyError{modelID: h.ID}
	}
}

// QueueLen is the number of admitted generations, running or waiting.
func (h *Handle) QueueLen() int { return len(h.queueCh) }

// Inflight is 1 while a generation holds the model.
func (h *Handle) Inflight() int { return len(h.genCh) }
