package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"portfolio-functions/internal/domain"
	"portfolio-functions/internal/quota"
)

const (
	DefaultMaxMessageLength = 500
	DefaultModel            = "llama-3.3-70b-versatile"
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 500
	DefaultTopP             = 1.0
)

// ContextSource supplies the system prompt.
type ContextSource interface {
	Prompt(ctx context.Context) string
}

type LLMClient interface {
	Chat(ctx context.Context, p domain.CompletionParams, messages []domain.ChatMessage) (string, error)
}

type QuotaGate interface {
	Admit(ctx context.Context, sessionID string) (quota.Decision, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// DefaultCompletionParams returns the fixed sampling settings of the relay.
func DefaultCompletionParams() domain.CompletionParams {
	return domain.CompletionParams{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
	}
}

// ChatService relays a visitor's message to the LLM under a session quota.
type ChatService struct {
	prompts       ContextSource
	llm           LLMClient
	gate          QuotaGate
	params        domain.CompletionParams
	maxMessageLen int
}

type ChatInput struct {
	Message   string
	SessionID string
}

type ChatOutput struct {
	Response          string
	RemainingMessages int
}

func NewChatService(prompts ContextSource, llm LLMClient, gate QuotaGate, params domain.CompletionParams, maxMessageLen int) (*ChatService, error) {
	if prompts == nil {
		return nil, errors.New("usecase: context source must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if gate == nil {
		return nil, errors.New("usecase: quota gate must not be nil")
	}
	defaults := DefaultCompletionParams()
	if strings.TrimSpace(params.Model) == "" {
		params.Model = defaults.Model
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaults.MaxTokens
	}
	if maxMessageLen <= 0 {
		maxMessageLen = DefaultMaxMessageLength
	}
	return &ChatService{
		prompts:       prompts,
		llm:           llm,
		gate:          gate,
		params:        params,
		maxMessageLen: maxMessageLen,
	}, nil
}

// Chat validates the input, consumes one message of the session quota and
// returns the model's reply verbatim.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	logger := zerolog.Ctx(ctx)

	if strings.TrimSpace(in.Message) == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, ReasonEmptyMessage, nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, ReasonMissingSession, nil)
	}
	if utf8.RuneCountInString(in.Message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, ReasonMessageTooLong, nil)
	}

	decision, err := s.gate.Admit(ctx, sessionID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, ReasonQuotaStore, err)
	}
	if !decision.Allowed {
		logger.Info().Str("session_id", sessionID).Int("count", decision.Count).Msg("session quota exhausted")
		return ChatOutput{}, newError(ErrorRateLimited, ReasonSessionQuota, nil)
	}

	messages := buildPromptMessages(s.prompts.Prompt(ctx), in.Message)
	reply, err := s.llm.Chat(ctx, s.params, messages)
	if err != nil {
		return ChatOutput{}, classifyLLMError(err)
	}
	if strings.TrimSpace(reply) == "" {
		return ChatOutput{}, newError(ErrorUpstream, ReasonLLMEmpty, nil)
	}

	return ChatOutput{
		Response:          reply,
		RemainingMessages: decision.Remaining,
	}, nil
}

func classifyLLMError(err error) *Error {
	if errors.Is(err, domain.ErrMissingAPIKey) {
		return newError(ErrorNotConfigured, ReasonLLMNotConfigured, err)
	}
	if status, ok := upstreamStatusCode(err); ok {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return newError(ErrorUpstreamAuth, ReasonLLMAuth, err)
		case http.StatusTooManyRequests:
			return newError(ErrorRateLimited, ReasonLLMRateLimited, err)
		}
	}
	return newError(ErrorUpstream, ReasonLLMError, err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
