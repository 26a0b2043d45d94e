package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"portfolio-functions/internal/usecase"
)

const (
	msgRateLimited       = "Rate limit exceeded"
	msgSessionExhausted  = "You've reached the maximum number of messages for this session. Please start a new conversation later."
	msgServiceBusy       = "The chat service is temporarily unavailable. Please try again later."
	msgChatFailed        = "Failed to process chat message"
	msgTryAgain          = "An error occurred. Please try again."
	msgContactAdmin      = "Please contact the site administrator."
	msgConfigError       = "Chat service configuration error. Please contact the site administrator."
	msgNotConfigured     = "Chat service not configured"
	msgInvalidBody       = "Invalid request body"
	msgMessageRequired   = "Message is required"
	msgSessionIDRequired = "Session ID is required"
	msgMethodNotAllowed  = "Method not allowed"
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response          string `json:"response"`
	RemainingMessages int    `json:"remainingMessages"`
}

// ChatHandler serves POST /chat.
type ChatHandler struct {
	uc   ChatUseCase
	opts options
}

func NewChatHandler(uc ChatUseCase, opts ...Option) (*ChatHandler, error) {
	if uc == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	h := &ChatHandler{uc: uc, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&h.opts)
	}
	return h, nil
}

func (h *ChatHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx, logger, correlationID := h.opts.requestScope(ctx, event)
	headers := h.opts.baseHeaders(correlationID, "POST, OPTIONS")

	switch event.HTTPMethod {
	case http.MethodOptions:
		return preflight(headers), nil
	case http.MethodPost:
	default:
		return errorJSON(http.StatusMethodNotAllowed, headers, msgMethodNotAllowed, ""), nil
	}

	raw, err := requestBody(event)
	if err != nil {
		logger.Info().Err(err).Msg("undecodable request body")
		return errorJSON(http.StatusBadRequest, headers, msgInvalidBody, ""), nil
	}
	var req chatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Info().Err(err).Msg("invalid request body")
		return errorJSON(http.StatusBadRequest, headers, msgInvalidBody, ""), nil
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{Message: req.Message, SessionID: req.SessionID})
	if err != nil {
		return h.errorResponse(logger, headers, err), nil
	}

	headers[headerCacheControl] = "no-cache"
	logger.Info().Int("remaining_messages", out.RemainingMessages).Msg("chat message relayed")
	return jsonResponse(http.StatusOK, headers, chatResponse{
		Response:          out.Response,
		RemainingMessages: out.RemainingMessages,
	}), nil
}

func (h *ChatHandler) errorResponse(logger *zerolog.Logger, headers map[string]string, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error().Err(err).Msg("unexpected chat failure")
		return errorJSON(http.StatusInternalServerError, headers, msgChatFailed, msgTryAgain)
	}

	entry := logger.Error()
	if ucErr.Code == usecase.ErrorInvalidInput || ucErr.Reason == usecase.ReasonSessionQuota {
		entry = logger.Info()
	}
	entry.Err(ucErr.Err).Str("code", string(ucErr.Code)).Str("reason", ucErr.Reason).Msg("chat request failed")

	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		switch ucErr.Reason {
		case usecase.ReasonMissingSession:
			return errorJSON(http.StatusBadRequest, headers, msgSessionIDRequired, "")
		case usecase.ReasonMessageTooLong:
			return errorJSON(http.StatusBadRequest, headers, fmt.Sprintf("Message too long (max %d characters)", h.opts.maxMessageLen), "")
		default:
			return errorJSON(http.StatusBadRequest, headers, msgMessageRequired, "")
		}
	case usecase.ErrorRateLimited:
		if ucErr.Reason == usecase.ReasonSessionQuota {
			return errorJSON(http.StatusTooManyRequests, headers, msgRateLimited, msgSessionExhausted)
		}
		return errorJSON(http.StatusTooManyRequests, headers, msgRateLimited, msgServiceBusy)
	case usecase.ErrorNotConfigured:
		return errorJSON(http.StatusInternalServerError, headers, msgNotConfigured, msgContactAdmin)
	case usecase.ErrorUpstreamAuth:
		return errorJSON(http.StatusInternalServerError, headers, msgChatFailed, msgConfigError)
	default:
		return errorJSON(http.StatusInternalServerError, headers, msgChatFailed, msgTryAgain)
	}
}
