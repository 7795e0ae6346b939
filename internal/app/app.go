// Package app wires configuration, storage and handlers together for the
// service binaries.
package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/baksh-audit/survey-backend/internal/api"
	"github.com/baksh-audit/survey-backend/internal/catalog"
	"github.com/baksh-audit/survey-backend/internal/config"
	"github.com/baksh-audit/survey-backend/internal/storage"
	"github.com/baksh-audit/survey-backend/internal/survey"
)

// Services holds the components shared by every entry point.
type Services struct {
	Store   storage.Store
	Catalog *catalog.Loader
	Surveys *survey.Service
	Handler *api.Handler
}

// OpenStore builds the object store selected by cfg. The S3 client is
// created once and reused across invocations.
func OpenStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		store, err := storage.NewLocalStore(cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		return store, nil
	case config.BackendS3:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Storage.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Storage.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// New opens the configured store and builds the services on top of it.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Services, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, store, logger), nil
}

// NewWithStore builds the services on an existing store.
func NewWithStore(cfg *config.AppConfig, store storage.Store, logger *zap.Logger) *Services {
	loader := catalog.NewLoader(store, logger.Named("catalog"))
	surveys := survey.NewService(store, survey.WithLogger(logger.Named("survey")))

	opts := []api.Option{
		api.WithLogger(logger.Named("api")),
		api.WithVerboseErrors(cfg.VerboseErrors()),
	}
	if cfg.Lambda.Operation != "" {
		opts = append(opts, api.WithOperation(cfg.Lambda.Operation))
	}

	return &Services{
		Store:   store,
		Catalog: loader,
		Surveys: surveys,
		Handler: api.NewHandler(loader, surveys, opts...),
	}
}
