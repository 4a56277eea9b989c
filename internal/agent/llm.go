package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/ai"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/sessionctx"
)

const maxHistory = 24

// LLM drives the conversation with a chat model. The reply format is
// enforced by the chat client's JSON guard.
type LLM struct {
	chat    ai.Chat
	catalog []domain.Product
	lookup  Products
	logger  *zap.Logger

	mu        sync.Mutex
	sessionID string
	seq       int64
	system    string
	history   []ai.Message
}

func NewLLM(chat ai.Chat, products []domain.Product, lookup Products, logger *zap.Logger) *LLM {
	return &LLM{
		chat:    chat,
		catalog: products,
		lookup:  lookup,
		logger:  logger.Named("agent-llm"),
	}
}

func (l *LLM) InitSession(_ context.Context, sc *sessionctx.SessionContext) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = "llm-" + uuid.NewString()
	l.seq = 0
	l.history = nil
	l.system = l.systemPrompt(sc)
	return l.snapshotLocked(), nil
}

func (l *LLM) UpdateContext(sc *sessionctx.SessionContext) {
	l.mu.Lock()
	l.system = l.systemPrompt(sc)
	l.mu.Unlock()
}

func (l *LLM) systemPrompt(sc *sessionctx.SessionContext) string {
	var b strings.Builder
	b.WriteString(ConciergePrompt)
	b.WriteString("\nCatalog:\n")
	for _, p := range l.catalog {
		fmt.Fprintf(&b, "- %s | %s | %s | %.2f %s\n", p.ID, p.Name, p.Category, p.Price, p.Currency)
	}
	if sc != nil {
		b.WriteString("\nCustomer context:\n")
		b.WriteString(sc.Prompt())
	}
	return b.String()
}

func (l *LLM) SendMessage(ctx context.Context, text string) (*domain.AgentResponse, error) {
	l.mu.Lock()
	if l.sessionID == "" {
		l.mu.Unlock()
		return nil, ErrNoSession
	}
	msgs := make([]ai.Message, 0, len(l.history)+2)
	msgs = append(msgs, ai.Message{Role: "system", Text: l.system})
	msgs = append(msgs, l.history...)
	msgs = append(msgs, ai.Message{Role: "user", Text: text})
	id := l.sessionID
	l.mu.Unlock()

	raw, err := l.chat.GetReply(ctx, msgs)
	if err != nil {
		return nil, err
	}

	resp, err := ParseResponse([]byte(raw))
	switch {
	case errors.Is(err, ErrBadDirective):
		l.logger.Warn("dropping directive", zap.Error(err))
	case err != nil:
		l.logger.Warn("reply was not json", zap.Error(err))
		resp = &domain.AgentResponse{Message: strings.TrimSpace(raw), SuggestedActions: []string{}, Confidence: 0.5}
	}
	if resp.Message == "" {
		return nil, errors.New("agent llm: empty reply")
	}
	resp.SessionID = id
	resp.Directive = hydrate(resp.Directive, l.lookup)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessionID != id {
		return resp, nil
	}
	l.seq++
	l.history = append(l.history,
		ai.Message{Role: "user", Text: text},
		ai.Message{Role: "assistant", Text: resp.Message},
	)
	if n := len(l.history); n > maxHistory {
		l.history = append([]ai.Message(nil), l.history[n-maxHistory:]...)
	}
	return resp, nil
}

func (l *LLM) Snapshot() Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *LLM) snapshotLocked() Handle {
	state, _ := json.Marshal(l.history)
	return Handle{SessionID: l.sessionID, SequenceID: l.seq, State: state}
}

func (l *LLM) Restore(_ context.Context, h Handle) error {
	if h.SessionID == "" {
		return ErrNoSession
	}
	var history []ai.Message
	if len(h.State) > 0 {
		if err := json.Unmarshal(h.State, &history); err != nil {
			return fmt.Errorf("restore llm history: %w", err)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = h.SessionID
	l.seq = h.SequenceID
	l.history = history
	if l.system == "" {
		l.system = l.systemPrompt(nil)
	}
	return nil
}

// AccessToken is empty: a local model session has nothing to delegate.
func (l *LLM) AccessToken(context.Context) (string, error) {
	return "", nil
}
