package manager

import (
	"sort"

	"textgend/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	resp := types.StatusResponse{
		Handles:        make([]types.HandleStatus, 0, len(m.handles)),
		Loading:        make([]string, 0, len(m.loading)),
		LastError:      m.lastErr,
		LoadsTotal:     m.loads,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	for _, h := range m.handles {
		resp.Handles = append(resp.Handles, types.HandleStatus{
			ModelID:       h.ID,
			Backend:       h.Backend,
			LoadedAt:      h.LoadedAt.Unix(),
			LastUsed:      h.LastUsed().Unix(),
			AssetBytes:    h.AssetBytes,
			QueueLen:      h.QueueLen(),
			Inflight:      h.Inflight(),
			MaxQueueDepth: cap(h.queueCh),
			State:         string(h.State()),
		})
	}
	sort.Slice(resp.Handles, func(i, j int) bool { return resp.Handles[i].ModelID < resp.Handles[j].ModelID })
	for id := range m.loading {
		resp.Loading = append(resp.Loading, id)
	}
	sort.Strings(resp.Loading)
	c := m.fetcher.Cache()
	resp.Cache = types.CacheStatus{Entries: c.Len(), Bytes: c.Bytes(), Capacity: c.Capacity()}
	return resp
}
