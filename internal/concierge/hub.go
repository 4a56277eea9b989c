package concierge

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultViewer is used when a request carries no viewer id.
const DefaultViewer = "default"

// HubLimits bounds how many viewer sessions stay in memory. Zero values
// disable the respective limit.
type HubLimits struct {
	IdleTTL    time.Duration
	MaxViewers int
}

type hubEntry struct {
	svc  Service
	seen time.Time
}

// Hub keeps one Service per viewer so separate browsers never share a
// conversation. Sessions idle longer than IdleTTL are closed, and past
// MaxViewers the least recently used one goes.
type Hub struct {
	deps   Deps
	limits HubLimits
	base   *zap.Logger
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*hubEntry
}

func NewHub(deps Deps, limits HubLimits, logger *zap.Logger) *Hub {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Hub{
		deps:     deps,
		limits:   limits,
		base:     logger,
		logger:   logger.Named("hub"),
		sessions: make(map[string]*hubEntry),
	}
}

func (h *Hub) Get(viewerID string) Service {
	if viewerID == "" {
		viewerID = DefaultViewer
	}
	now := h.deps.Now()

	h.mu.Lock()
	evicted := h.expireLocked(now)
	e, ok := h.sessions[viewerID]
	if !ok {
		e = &hubEntry{svc: NewService(h.deps, viewerID, h.base)}
		h.sessions[viewerID] = e
	}
	e.seen = now
	evicted = append(evicted, h.trimLocked(viewerID)...)
	h.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	return e.svc
}

// Len reports how many viewer sessions are held.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) expireLocked(now time.Time) []Service {
	if h.limits.IdleTTL <= 0 {
		return nil
	}
	var out []Service
	for id, e := range h.sessions {
		if now.Sub(e.seen) >= h.limits.IdleTTL {
			delete(h.sessions, id)
			out = append(out, e.svc)
			h.logger.Debug("session expired", zap.String("viewer", id))
		}
	}
	return out
}

// trimLocked drops least recently used sessions over the cap, sparing keep.
func (h *Hub) trimLocked(keep string) []Service {
	if h.limits.MaxViewers <= 0 {
		return nil
	}
	var out []Service
	for len(h.sessions) > h.limits.MaxViewers {
		oldest := ""
		var at time.Time
		for id, e := range h.sessions {
			if id == keep {
				continue
			}
			if oldest == "" || e.seen.Before(at) {
				oldest, at = id, e.seen
			}
		}
		if oldest == "" {
			break
		}
		out = append(out, h.sessions[oldest].svc)
		delete(h.sessions, oldest)
		h.logger.Debug("session evicted", zap.String("viewer", oldest))
	}
	return out
}

// Personas is the selectable list, shared by all viewers.
func (h *Hub) Personas() Personas {
	return h.deps.Personas
}

func (h *Hub) Transcript() Transcript {
	return h.deps.Transcript
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, e := range h.sessions {
		e.svc.Close()
		delete(h.sessions, id)
	}
}
