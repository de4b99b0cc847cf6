// Package mainconfig holds the wiring shared by the binaries: AWS SDK setup,
// the language model client, the checkpoint store and the scheduling
// directory, all chosen from configuration.
package mainconfig

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/checkpoint"
	appconfig "github.com/wolfman30/clinic-scheduling-assistant/internal/config"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/demo"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/lus"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so every binary shares the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				if service == bedrockruntime.ServiceID {
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			},
		)
	}

	return awsCfg, nil
}

// BuildLLMClient returns the client for LLM_PROVIDER, wrapped with the
// LLM_FALLBACK_PROVIDER client when one is configured.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (lus.LLMClient, error) {
	primary, err := buildProvider(ctx, cfg, cfg.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("primary llm provider: %w", err)
	}
	if cfg.LLMFallbackProvider == "" || cfg.LLMFallbackProvider == cfg.LLMProvider {
		return primary, nil
	}
	fallback, err := buildProvider(ctx, cfg, cfg.LLMFallbackProvider)
	if err != nil {
		logger.Warn("fallback llm provider unavailable, continuing without it", "provider", cfg.LLMFallbackProvider, "error", err)
		return primary, nil
	}
	return lus.NewFallbackLLMClient(primary, fallback, logger), nil
}

func buildProvider(ctx context.Context, cfg *appconfig.Config, provider string) (lus.LLMClient, error) {
	switch provider {
	case "gemini":
		return lus.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		return lus.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, fmt.Errorf("BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return lus.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// BuildStore opens the checkpoint store named by STORE_BACKEND. The returned
// close function releases the underlying connection.
func BuildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (checkpoint.Store, func(), error) {
	switch cfg.StoreBackend {
	case "", "memory":
		logger.Warn("using in-memory checkpoint store; conversations are lost on restart")
		return checkpoint.NewMemoryStore(), func() {}, nil

	case "redis":
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return checkpoint.NewRedisStore(client, cfg.CheckpointTTL), func() { _ = client.Close() }, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		return checkpoint.NewPGStore(pool), pool.Close, nil

	case "mongo":
		if cfg.MongoURI == "" {
			return nil, nil, fmt.Errorf("MONGODB_URI is required for the mongo store")
		}
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ping mongo: %w", err)
		}
		store := checkpoint.NewMongoStore(client.Database(cfg.MongoDatabase))
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// BuildDirectory returns the remote scheduling client, or the in-memory demo
// directory when USE_DEMO_DIRECTORY is set or no base URL is configured.
func BuildDirectory(cfg *appconfig.Config, logger *logging.Logger) scheduling.Directory {
	if cfg.UseDemoDirectory || cfg.DirectoryBaseURL == "" {
		logger.Info("using demo scheduling directory")
		return demo.NewDirectory()
	}
	return scheduling.NewClient(scheduling.ClientConfig{
		BaseURL:  cfg.DirectoryBaseURL,
		APIToken: cfg.DirectoryAPIToken,
		UnitID:   cfg.DirectoryUnitID,
		Timeout:  cfg.DirectoryTimeout,
	}, logger)
}
