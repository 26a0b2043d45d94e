package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"portfolio-functions/internal/domain"
)

const msgVisitorsFailed = "Failed to fetch visitor data"

type VisitorUseCase interface {
	Counts(ctx context.Context) (domain.VisitorCounts, error)
}

// VisitorHandler serves GET /visitors.
type VisitorHandler struct {
	uc   VisitorUseCase
	opts options
}

func NewVisitorHandler(uc VisitorUseCase, opts ...Option) (*VisitorHandler, error) {
	if uc == nil {
		return nil, errors.New("handler: visitor use case must not be nil")
	}
	h := &VisitorHandler{uc: uc, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&h.opts)
	}
	return h, nil
}

func (h *VisitorHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx, logger, correlationID := h.opts.requestScope(ctx, event)
	headers := h.opts.baseHeaders(correlationID, "GET, HEAD, OPTIONS")

	switch event.HTTPMethod {
	case http.MethodOptions:
		return preflight(headers), nil
	case http.MethodGet, http.MethodHead:
	default:
		return errorJSON(http.StatusMethodNotAllowed, headers, msgMethodNotAllowed, ""), nil
	}

	counts, err := h.uc.Counts(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("visitor counts unavailable")
		return errorJSON(http.StatusInternalServerError, headers, msgVisitorsFailed, ""), nil
	}

	headers[headerCacheControl] = "public, max-age=3600"
	resp := jsonResponse(http.StatusOK, headers, counts)
	if event.HTTPMethod == http.MethodHead {
		resp.Body = ""
	}
	return resp, nil
}
