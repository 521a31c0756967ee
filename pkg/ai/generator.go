package ai

import (
	"context"
	"strings"

	"numainda/pkg/domain"
)

// TextGenerator produces one completion for a system and user prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ChatGenerator continues a conversation. Messages use the roles "user"
// and "assistant"; other roles are dropped.
type ChatGenerator interface {
	TextGenerator
	Chat(ctx context.Context, systemPrompt string, messages []domain.Message) (string, error)
}

// chatTurns keeps the user and assistant turns with content.
func chatTurns(messages []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, domain.Message{Role: role, Content: m.Content})
	}
	return out
}
