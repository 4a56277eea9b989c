package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

type rawDirective struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type rawResponse struct {
	SessionID        string                       `json:"sessionId"`
	Message          string                       `json:"message"`
	UIDirective      *rawDirective                `json:"uiDirective"`
	SuggestedActions []string                     `json:"suggestedActions"`
	Confidence       *float64                     `json:"confidence"`
	Captures         []domain.CaptureNotification `json:"captures"`
	RawText          string                       `json:"rawText"`
	Metadata         *struct {
		UIDirective *rawDirective `json:"uiDirective"`
	} `json:"metadata"`
}

var embeddedDirective = regexp.MustCompile(`(?s)\{.*"uiDirective".*\}`)

// ParseResponse decodes a backend reply. The directive is taken from
// metadata.uiDirective, then a top-level uiDirective, then the first JSON
// object in rawText that carries one. A directive that cannot be decoded
// is dropped and reported as ErrBadDirective alongside a usable response.
func ParseResponse(b []byte) (*domain.AgentResponse, error) {
	var raw rawResponse
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}

	resp := &domain.AgentResponse{
		SessionID:        raw.SessionID,
		Message:          raw.Message,
		SuggestedActions: raw.SuggestedActions,
		Confidence:       1,
		Captures:         raw.Captures,
	}
	if raw.Confidence != nil {
		resp.Confidence = *raw.Confidence
	}
	if resp.SuggestedActions == nil {
		resp.SuggestedActions = []string{}
	}

	rd := directiveOf(raw)
	if rd == nil || strings.TrimSpace(rd.Action) == "" {
		return resp, nil
	}
	d, err := domain.DecodeDirectiveParts(rd.Action, rd.Payload)
	if err != nil {
		return resp, fmt.Errorf("%w: %v", ErrBadDirective, err)
	}
	resp.Directive = d
	return resp, nil
}

func directiveOf(raw rawResponse) *rawDirective {
	if raw.Metadata != nil && raw.Metadata.UIDirective != nil {
		return raw.Metadata.UIDirective
	}
	if raw.UIDirective != nil {
		return raw.UIDirective
	}
	m := embeddedDirective.FindString(raw.RawText)
	if m == "" {
		return nil
	}
	var inner struct {
		UIDirective *rawDirective `json:"uiDirective"`
	}
	if err := json.Unmarshal([]byte(m), &inner); err != nil {
		return nil
	}
	return inner.UIDirective
}

// hydrate swaps product stubs for full catalog records where known.
func hydrate(d domain.Directive, products Products) domain.Directive {
	if products == nil {
		return d
	}
	switch v := d.(type) {
	case domain.ShowProducts:
		v.Products = hydrateList(v.Products, products)
		return v
	case domain.InitiateCheckout:
		v.Products = hydrateList(v.Products, products)
		return v
	}
	return d
}

func hydrateList(in []domain.Product, products Products) []domain.Product {
	out := make([]domain.Product, 0, len(in))
	for _, p := range in {
		if full, ok := products.Product(p.ID); ok {
			out = append(out, full)
			continue
		}
		if p.Name != "" {
			out = append(out, p)
		}
	}
	return out
}
