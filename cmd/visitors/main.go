package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"portfolio-functions/handler"
	"portfolio-functions/internal/config"
	"portfolio-functions/internal/domain"
	"portfolio-functions/internal/integrations/analytics"
	"portfolio-functions/internal/logging"
	"portfolio-functions/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load("")
	if err != nil {
		fatalLogger := logging.New(os.Stdout, "error")
		fatalLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	// ---- Clients ----
	// A missing or broken credential answers every request with a 500 rather
	// than failing the cold start.
	var reports usecase.ReportClient
	client, err := analytics.NewFromCredentials(logger.WithContext(ctx), cfg.Analytics.Credentials, cfg.Analytics.PropertyID)
	if err != nil {
		logger.Error().Err(err).Msg("analytics client unavailable")
		reports = unavailableReports{err: err}
	} else {
		reports = client
	}

	// ---- Handler ----
	visitors, err := usecase.NewVisitorService(reports, cfg.Analytics.Projects,
		usecase.WithVisitorCacheTTL(cfg.Analytics.CacheTTL))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create visitor service")
	}

	h, err := handler.NewVisitorHandler(visitors,
		handler.WithLogger(logger),
		handler.WithAllowedOrigin(cfg.AllowedOrigin))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}

type unavailableReports struct {
	err error
}

func (u unavailableReports) ActiveUsers(context.Context, domain.DateRange) (int64, error) {
	return 0, u.err
}

func (u unavailableReports) UsersByHost(context.Context, domain.DateRange) (map[string]int64, error) {
	return nil, u.err
}
