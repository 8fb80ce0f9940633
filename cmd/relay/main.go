package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"coin-chat/handler"
	"coin-chat/internal/integrations/openai"
	"coin-chat/internal/integrations/paramstore"
	"coin-chat/internal/ratelimit"
	"coin-chat/internal/repository"
	"coin-chat/internal/usecase"
)

func main() {
	ctx := context.Background()

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	// ---- Configuration (read only here) ----
	cfg := loadConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel})))

	// ---- AWS SDK config ----
	var awsCfg aws.Config
	if cfg.usesAWS() {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
	}

	// ---- Clients ----
	store, err := newRateLimitStore(cfg, awsCfg)
	if err != nil {
		slog.Error("failed to create rate limit store", "backend", cfg.backend, "err", err)
		os.Exit(1)
	}
	limiter, err := ratelimit.NewLimiter(store, cfg.rateLimitMax, cfg.rateLimitWindow)
	if err != nil {
		slog.Error("failed to create rate limiter", "err", err)
		os.Exit(1)
	}

	llm, err := newUpstreamClient(cfg, awsCfg)
	if err != nil {
		slog.Error("failed to create upstream client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	relay, err := usecase.NewRelayService(limiter, llm, cfg.chatModel)
	if err != nil {
		slog.Error("failed to create relay service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(relay)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("relay configured",
		"backend", cfg.backend,
		"limit", cfg.rateLimitMax,
		"window", cfg.rateLimitWindow.String(),
		"model", cfg.chatModel,
	)

	if cfg.localAddr != "" {
		if err := serveLocal(ctx, cfg.localAddr, h); err != nil {
			slog.Error("local server stopped", "err", err)
			os.Exit(1)
		}
		return
	}
	lambda.Start(h.Handle)
}

func newRateLimitStore(cfg config, awsCfg aws.Config) (ratelimit.Store, error) {
	switch cfg.backend {
	case backendRedis:
		return repository.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.redisAddr}))
	case backendDynamoDB:
		return repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), cfg.rateLimitTable)
	default:
		return ratelimit.NewMemoryStore(), nil
	}
}

func newUpstreamClient(cfg config, awsCfg aws.Config) (*openai.Client, error) {
	opts := []openai.Option{openai.WithBaseURL(cfg.upstreamBaseURL)}
	if cfg.upstreamAPIKey != "" {
		opts = append(opts, openai.WithAPIKey(cfg.upstreamAPIKey))
		return openai.NewClient(nil, "", opts...)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg), paramstore.WithCacheTTL(cfg.paramCacheTTL))
	if err != nil {
		return nil, err
	}
	return openai.NewClient(params, cfg.paramPrefix, opts...)
}
