package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"kendra-chatbot/handler"
	"kendra-chatbot/internal/config"
	"kendra-chatbot/internal/integrations/s3presign"
	"kendra-chatbot/internal/usecase"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadPresign(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	grants, err := usecase.NewGrantService(s3presign.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create grant service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewPresignHandler(grants, cfg.PresignTTL)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
