package session

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/Vovarama1992/scene-concierge/internal/agent"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/sessionctx"
)

// Snapshot is everything needed to pick a persona's conversation back up
// without re-running the welcome.
type Snapshot struct {
	Messages         []domain.Message
	SuggestedActions []string
	Scene            domain.SceneState
	Agent            agent.Handle
	Customer         *domain.CustomerProfile
	// Context is never mutated after it is built and is shared.
	Context *sessionctx.SessionContext
	// IdentifiedEmail and IdentifiedName are what the visitor told the
	// agent about themselves mid-conversation.
	IdentifiedEmail string
	IdentifiedName  string
	SavedAt         time.Time
}

// Clone copies everything the caller could mutate.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Messages = append([]domain.Message(nil), s.Messages...)
	c.SuggestedActions = append([]string(nil), s.SuggestedActions...)
	c.Scene = s.Scene.Clone()
	c.Agent.State = append(json.RawMessage(nil), s.Agent.State...)
	c.Customer = s.Customer.Clone()
	return c
}

// Cache holds one snapshot per persona key for the life of the process.
type Cache struct {
	mu    sync.RWMutex
	items map[string]Snapshot
	now   func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		items: make(map[string]Snapshot),
		now:   time.Now,
	}
}

func (c *Cache) Save(key string, s Snapshot) {
	s = s.Clone()
	s.SavedAt = c.now()

	c.mu.Lock()
	c.items[key] = s
	c.mu.Unlock()
}

func (c *Cache) Restore(key string) (Snapshot, bool) {
	c.mu.RLock()
	s, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return s.Clone(), true
}

func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Keys lists cached persona keys in order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
