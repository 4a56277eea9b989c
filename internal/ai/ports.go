package ai

import (
	"context"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

// Chat is an external model that answers a conversation. It knows nothing
// about scenes or sessions.
type Chat interface {
	GetReply(ctx context.Context, history []Message) (string, error)
}

// Message is the provider-neutral dialogue format.
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}

// ScenePrompts supplies the base prompt for a known or custom setting.
type ScenePrompts interface {
	ScenePrompt(s domain.Setting, mood string) string
}
