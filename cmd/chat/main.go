package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"portfolio-functions/handler"
	"portfolio-functions/internal/chatcontext"
	"portfolio-functions/internal/config"
	"portfolio-functions/internal/domain"
	"portfolio-functions/internal/integrations/blobstore"
	"portfolio-functions/internal/integrations/openai"
	"portfolio-functions/internal/integrations/paramstore"
	"portfolio-functions/internal/logging"
	"portfolio-functions/internal/quota"
	"portfolio-functions/internal/repository"
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
	ctx = logger.WithContext(ctx)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load AWS config")
	}

	// ---- Clients ----
	keys, err := apiKeySource(cfg, awsssm.NewFromConfig(awsCfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create API key source")
	}
	llm, err := openai.NewClient(keys, openai.WithBaseURL(cfg.LLM.BaseURL))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create LLM client")
	}

	var blobs chatcontext.BlobStore
	if cfg.Context.Bucket != "" {
		store, err := blobstore.New(awss3.NewFromConfig(awsCfg), cfg.Context.Bucket)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create context store")
		}
		blobs = store
	}
	prompts, err := chatcontext.NewChain(blobs, cfg.Context.Inline,
		chatcontext.WithKey(cfg.Context.Key), chatcontext.WithTTL(cfg.Context.TTL))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create context loader")
	}

	gate, err := quota.NewGate(quotaStore(cfg, awsdynamodb.NewFromConfig(awsCfg), logger),
		quota.Policy{Limit: cfg.Quota.Limit, Window: cfg.Quota.Window})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create quota gate")
	}

	// ---- Handler ----
	params := domain.CompletionParams{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		TopP:        usecase.DefaultTopP,
	}
	chatService, err := usecase.NewChatService(prompts, llm, gate, params, cfg.MaxMessageLength)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create chat service")
	}

	h, err := handler.NewChatHandler(chatService,
		handler.WithLogger(logger),
		handler.WithAllowedOrigin(cfg.AllowedOrigin),
		handler.WithMaxMessageLength(cfg.MaxMessageLength))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}

// apiKeySource prefers GROQ_API_KEY and falls back to <PARAM_PREFIX>/groq-token
// in Parameter Store. With neither set every request reports the service as
// not configured.
func apiKeySource(cfg *config.Config, ssmAPI *awsssm.Client) (openai.KeySource, error) {
	if cfg.LLM.APIKey != "" || cfg.ParamPrefix == "" {
		return openai.StaticKey(cfg.LLM.APIKey), nil
	}
	params, err := paramstore.New(ssmAPI)
	if err != nil {
		return nil, err
	}
	return paramstore.NewTokenSource(params, cfg.ParamPrefix, "groq-token")
}

func quotaStore(cfg *config.Config, dynamo *awsdynamodb.Client, logger zerolog.Logger) quota.Store {
	if cfg.Quota.Table == "" {
		logger.Info().Msg("QUOTA_TABLE not set, session quotas are kept in memory")
		return quota.NewMemoryStore()
	}
	store, err := repository.New(dynamo, cfg.Quota.Table)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create quota store")
	}
	return store
}
