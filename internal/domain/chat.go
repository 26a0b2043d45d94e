package domain

// ChatMessage is the provider-agnostic chat message shape used by the chat
// relay and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionParams are the sampling settings sent with every completion.
type CompletionParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}
