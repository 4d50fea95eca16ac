package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsbedrock "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awskendra "github.com/aws/aws-sdk-go-v2/service/kendra"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"kendra-chatbot/handler"
	"kendra-chatbot/internal/config"
	"kendra-chatbot/internal/integrations/bedrock"
	"kendra-chatbot/internal/integrations/kendra"
	"kendra-chatbot/internal/integrations/localindex"
	"kendra-chatbot/internal/integrations/openai"
	"kendra-chatbot/internal/integrations/paramstore"
	"kendra-chatbot/internal/integrations/s3presign"
	"kendra-chatbot/internal/repository"
	"kendra-chatbot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// ---- AWS SDK config, one per service region ----
	bedrockCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.BedrockRegion))
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	store, err := newSessionStore(ctx, cfg)
	if err != nil {
		fatal("failed to create session store", err)
	}

	bedrockAPI := awsbedrock.NewFromConfig(bedrockCfg)
	retriever, err := newRetriever(ctx, cfg, bedrockAPI)
	if err != nil {
		fatal("failed to create retriever", err)
	}

	generator, err := newGenerator(ctx, cfg, bedrockAPI)
	if err != nil {
		fatal("failed to create generator", err)
	}

	var opts []usecase.Option
	if cfg.PresignSources {
		s3Cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			fatal("failed to load S3 config", err)
		}
		grants, err := usecase.NewGrantService(s3presign.NewFromConfig(s3Cfg))
		if err != nil {
			fatal("failed to create grant service", err)
		}
		opts = append(opts, usecase.WithSourcePresigning(grants, cfg.PresignTTL))
	}

	// ---- Handler ----
	svc, err := usecase.NewConversationService(retriever, generator, store, opts...)
	if err != nil {
		fatal("failed to create conversation service", err)
	}

	h, err := handler.NewHandler(svc)
	if err != nil {
		fatal("failed to create handler", err)
	}

	slog.Info("chat handler ready",
		"retriever", cfg.Retriever,
		"llm_provider", cfg.LLMProvider,
		"session_store", cfg.SessionStore,
		"presign_sources", cfg.PresignSources,
	)
	lambda.Start(h.Handle)
}

func newSessionStore(ctx context.Context, cfg config.Config) (usecase.SessionStore, error) {
	if cfg.SessionStore == config.StoreMemory {
		return repository.NewMemoryStore(), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.SessionTable, cfg.MaxHistoryTurns)
}

func newRetriever(ctx context.Context, cfg config.Config, bedrockAPI *awsbedrock.Client) (usecase.Retriever, error) {
	if cfg.Retriever == config.RetrieverLocal {
		embedder, err := bedrock.NewEmbedder(bedrockAPI, cfg.EmbeddingModelID)
		if err != nil {
			return nil, err
		}
		return localindex.Open(cfg.LocalIndexPath, embedder.Embed, cfg.KendraTopK)
	}
	kendraCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.KendraRegion))
	if err != nil {
		return nil, err
	}
	return kendra.New(awskendra.NewFromConfig(kendraCfg), cfg.KendraIndexID, cfg.KendraTopK)
}

func newGenerator(ctx context.Context, cfg config.Config, bedrockAPI *awsbedrock.Client) (usecase.Generator, error) {
	if cfg.LLMProvider == config.ProviderOpenAI {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		return openai.NewClient(ps, cfg.ParamPrefix, cfg.OpenAIModel)
	}
	return bedrock.New(bedrockAPI, cfg.BedrockModelID)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
