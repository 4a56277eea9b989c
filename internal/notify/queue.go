package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

const (
	DefaultStagger = 600 * time.Millisecond
	DefaultTTL     = 4 * time.Second
)

// Toast is a capture notification while it is on screen.
type Toast struct {
	ID      int64     `json:"id"`
	Type    string    `json:"type"`
	Label   string    `json:"label"`
	Value   string    `json:"value,omitempty"`
	ShownAt time.Time `json:"shownAt"`
}

// Queue shows capture notifications one at a time, a fixed stagger apart,
// and drops each one after its TTL.
type Queue struct {
	stagger time.Duration
	ttl     time.Duration
	in      chan pending
	done    chan struct{}
	once    sync.Once
	logger  *zap.Logger

	mu      sync.Mutex
	gen     uint64 // bumped by Clear; older pending toasts are dropped
	nextID  int64
	visible []Toast
}

type pending struct {
	capture domain.CaptureNotification
	gen     uint64
}

func NewQueue(stagger, ttl time.Duration, buffer int, logger *zap.Logger) *Queue {
	if buffer <= 0 {
		buffer = 16
	}
	q := &Queue{
		stagger: stagger,
		ttl:     ttl,
		in:      make(chan pending, buffer),
		done:    make(chan struct{}),
		logger:  logger.Named("notify"),
	}
	go q.run()
	return q
}

// Push enqueues captures in order. It never blocks; whatever does not fit
// is dropped.
func (q *Queue) Push(captures ...domain.CaptureNotification) bool {
	q.mu.Lock()
	gen := q.gen
	q.mu.Unlock()
	for _, c := range captures {
		select {
		case <-q.done:
			return false
		default:
		}
		select {
		case q.in <- pending{capture: c, gen: gen}:
		default:
			q.logger.Warn("toast queue full", zap.String("type", c.Type))
			return false
		}
	}
	return true
}

// Visible returns the toasts currently on screen, oldest first.
func (q *Queue) Visible() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Toast{}, q.visible...)
}

func (q *Queue) Dismiss(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.visible {
		if t.ID == id {
			q.visible = append(q.visible[:i], q.visible[i+1:]...)
			return
		}
	}
}

// Clear drops everything on screen and everything still waiting.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.gen++
	q.visible = nil
	q.mu.Unlock()
	for {
		select {
		case <-q.in:
		default:
			return
		}
	}
}

func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

func (q *Queue) run() {
	for {
		select {
		case <-q.done:
			return
		case p := <-q.in:
			if !q.show(p) {
				continue
			}
		}

		t := time.NewTimer(q.stagger)
		select {
		case <-q.done:
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (q *Queue) show(p pending) bool {
	c := p.capture
	q.mu.Lock()
	if p.gen != q.gen {
		q.mu.Unlock()
		return false
	}
	q.nextID++
	toast := Toast{ID: q.nextID, Type: c.Type, Label: c.Label, Value: c.Value, ShownAt: time.Now()}
	q.visible = append(q.visible, toast)
	q.mu.Unlock()

	q.logger.Debug("toast", zap.String("type", c.Type), zap.String("label", c.Label))
	time.AfterFunc(q.ttl, func() { q.Dismiss(toast.ID) })
	return true
}
