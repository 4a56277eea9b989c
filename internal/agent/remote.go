package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/sessionctx"
)

// Remote talks to a hosted agent over REST.
type Remote struct {
	baseURL  string
	agentID  string
	token    string
	client   *http.Client
	products Products
	logger   *zap.Logger

	mu        sync.Mutex
	sessionID string
	seq       int64
}

func NewRemote(baseURL, agentID, token string, products Products, logger *zap.Logger) *Remote {
	return &Remote{
		baseURL:  strings.TrimRight(baseURL, "/"),
		agentID:  agentID,
		token:    strings.TrimSpace(token),
		client:   &http.Client{Timeout: 30 * time.Second},
		products: products,
		logger:   logger.Named("agent-remote"),
	}
}

type remoteContext struct {
	CustomerID   string   `json:"customerId,omitempty"`
	Tier         string   `json:"identityTier"`
	Channel      string   `json:"channel"`
	Summary      string   `json:"summary,omitempty"`
	CategoryBias []string `json:"categoryBias,omitempty"`
}

// only agent-safe renderings leave the process
func contextPayload(sc *sessionctx.SessionContext) remoteContext {
	rc := remoteContext{Tier: string(domain.TierAnonymous), Channel: "web"}
	if sc == nil {
		return rc
	}
	rc.CustomerID = sc.CustomerID
	rc.Tier = string(sc.Tier)
	rc.Summary = sc.Prompt()
	rc.CategoryBias = sc.CategoryBias
	return rc
}

func (r *Remote) InitSession(ctx context.Context, sc *sessionctx.SessionContext) (Handle, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	err := r.send(ctx, "/sessions", map[string]any{
		"agentId": r.agentID,
		"context": contextPayload(sc),
	}, &out)
	if err != nil {
		return Handle{}, err
	}
	if out.SessionID == "" {
		return Handle{}, errors.New("agent api error: empty sessionId")
	}

	r.mu.Lock()
	r.sessionID = out.SessionID
	r.seq = 0
	r.mu.Unlock()
	r.logger.Info("session started", zap.String("session", out.SessionID))
	return r.Snapshot(), nil
}

func (r *Remote) SendMessage(ctx context.Context, text string) (*domain.AgentResponse, error) {
	r.mu.Lock()
	id := r.sessionID
	if id == "" {
		r.mu.Unlock()
		return nil, ErrNoSession
	}
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	var raw json.RawMessage
	err := r.send(ctx, "/sessions/"+url.PathEscape(id)+"/messages", map[string]any{
		"message":            text,
		"sequenceId":         seq,
		"requestUIDirective": true,
	}, &raw)
	if err != nil {
		return nil, err
	}

	resp, err := ParseResponse(raw)
	if errors.Is(err, ErrBadDirective) {
		r.logger.Warn("dropping directive", zap.Error(err))
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		resp.SessionID = id
	}
	resp.Directive = hydrate(resp.Directive, r.products)
	return resp, nil
}

func (r *Remote) Snapshot() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Handle{SessionID: r.sessionID, SequenceID: r.seq}
}

func (r *Remote) Restore(_ context.Context, h Handle) error {
	if h.SessionID == "" {
		return ErrNoSession
	}
	r.mu.Lock()
	r.sessionID = h.SessionID
	r.seq = h.SequenceID
	r.mu.Unlock()
	return nil
}

func (r *Remote) AccessToken(context.Context) (string, error) {
	if r.token == "" {
		return "", errors.New("agent: no access token configured")
	}
	return r.token, nil
}

func (r *Remote) send(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.baseURL+path,
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.New(
			"agent api error: " +
				resp.Status +
				" body=" + string(respBody),
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode agent api response: %w", err)
	}
	return nil
}
