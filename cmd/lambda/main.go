// Package main is the entry point for the survey Lambda function. One
// binary serves every operation, selected by SURVEY_OPERATION or by the
// event's method and path.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/baksh-audit/survey-backend/internal/api"
	"github.com/baksh-audit/survey-backend/internal/app"
	"github.com/baksh-audit/survey-backend/internal/config"
	"github.com/baksh-audit/survey-backend/internal/logging"
	"github.com/baksh-audit/survey-backend/internal/request"
)

func main() {
	cfg, err := config.Load(os.Getenv("SURVEY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if op := cfg.Lambda.Operation; op != "" && !api.ValidOperation(op) {
		fmt.Fprintf(os.Stderr, "Invalid SURVEY_OPERATION %q\n", op)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	services, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize services", zap.Error(err))
	}

	logger.Info("survey function ready",
		zap.String("operation", cfg.Lambda.Operation),
		zap.String("bucket", cfg.Storage.Bucket))

	lambda.Start(handler(services.Handler))
}

func handler(h *api.Handler) func(context.Context, request.Event) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, ev request.Event) (events.APIGatewayProxyResponse, error) {
		return h.Dispatch(ctx, ev).Proxy(), nil
	}
}
