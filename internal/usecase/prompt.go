package usecase

import (
	"strings"

	"portfolio-functions/internal/domain"
)

// buildPromptMessages returns the system prompt followed by the user message.
// No conversation history is replayed; every message is answered on its own.
func buildPromptMessages(systemPrompt, message string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: strings.TrimSpace(systemPrompt)},
		{Role: "user", Content: message},
	}
}
