// Package handler adapts API Gateway proxy events to the chat and visitor
// use cases.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"portfolio-functions/internal/usecase"
)

const (
	headerContentType   = "Content-Type"
	headerCacheControl  = "Cache-Control"
	headerCorrelationID = "X-Correlation-Id"
	contentTypeJSON     = "application/json"
	defaultAllowOrigin  = "*"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type Option func(*options)

type options struct {
	logger        zerolog.Logger
	allowOrigin   string
	maxMessageLen int
}

func defaultOptions() options {
	return options{
		logger:        log.Logger,
		allowOrigin:   defaultAllowOrigin,
		maxMessageLen: usecase.DefaultMaxMessageLength,
	}
}

// WithLogger sets the base logger; each request derives a child carrying its
// correlation ID.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAllowedOrigin sets Access-Control-Allow-Origin.
func WithAllowedOrigin(origin string) Option {
	return func(o *options) {
		if origin = strings.TrimSpace(origin); origin != "" {
			o.allowOrigin = origin
		}
	}
}

// WithMaxMessageLength is the limit quoted in the "too long" error message.
func WithMaxMessageLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessageLen = n
		}
	}
}

// requestScope prepares the correlation ID and request logger shared by every
// handler.
func (o options) requestScope(ctx context.Context, event events.APIGatewayProxyRequest) (context.Context, *zerolog.Logger, string) {
	correlationID := correlationIDFromHeaders(event.Headers)
	logger := o.logger.With().
		Str("correlation_id", correlationID).
		Str("method", event.HTTPMethod).
		Str("path", event.Path).
		Logger()
	return logger.WithContext(ctx), &logger, correlationID
}

func (o options) baseHeaders(correlationID, methods string) map[string]string {
	return map[string]string{
		headerContentType:              contentTypeJSON,
		headerCorrelationID:            correlationID,
		"Access-Control-Allow-Origin":  o.allowOrigin,
		"Access-Control-Allow-Methods": methods,
		"Access-Control-Allow-Headers": "Content-Type, X-Correlation-Id",
	}
}

func correlationIDFromHeaders(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, headerCorrelationID) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

func requestBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}
	return base64.StdEncoding.DecodeString(event.Body)
}

func jsonResponse(status int, headers map[string]string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal server error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}

func errorJSON(status int, headers map[string]string, errMsg, message string) events.APIGatewayProxyResponse {
	return jsonResponse(status, headers, errorResponse{Error: errMsg, Message: message})
}

func preflight(headers map[string]string) events.APIGatewayProxyResponse {
	delete(headers, headerContentType)
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: headers}
}
