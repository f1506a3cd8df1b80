package manager

import (
	"time"
)

// Unload initiates a graceful drain of a handle and removes it.
//   - Sets the handle to draining so new Begin calls fail with too busy.
//   - Waits up to the drain timeout for in-flight and queued generations.
//   - Closes the model and removes the handle.
//
// A later GetOrLoad for the same id loads it again (from the asset cache).
func (m *Manager) Unload(modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	h := m.handles[modelID]
	if h == nil {
		m.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	h.setState(StateDraining)
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: EventUnloadStart, ModelID: modelID, Fields: map[string]any{}})

	deadline := time.Now().Add(m.drainTimeout)
	for {
		qlen, inflight := h.QueueLen(), h.Inflight()
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.log.Warn().Str("event", EventUnloadTimeout).Str("model", modelID).Int("inflight", inflight).Int("queue", qlen).Msg("drain timed out")
			m.publisher.Publish(Event{Name: EventUnloadTimeout, ModelID: modelID, Fields: map[string]any{"inflight": inflight, "queue": qlen}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.mu.Lock()
	if m.handles[modelID] == h {
		delete(m.handles, modelID)
		handlesLoaded.Dec()
	}
	m.mu.Unlock()
	err := h.model.Close()

	m.log.Info().Str("event", EventUnloadDone).Str("model", modelID).Msg("model unloaded")
	m.publisher.Publish(Event{Name: EventUnloadDone, ModelID: modelID, Fields: map[string]any{}})
	return err
}
