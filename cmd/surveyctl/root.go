// Root command for surveyctl.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/baksh-audit/survey-backend/internal/app"
	"github.com/baksh-audit/survey-backend/internal/config"
	"github.com/baksh-audit/survey-backend/internal/logging"
	"github.com/baksh-audit/survey-backend/internal/storage"
)

// cli holds state shared by every subcommand, set up in PersistentPreRunE.
type cli struct {
	configPath string
	backend    string
	bucket     string
	localDir   string

	cfg    *config.AppConfig
	logger *zap.Logger
	store  storage.Store
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "surveyctl",
		Short: "Operate the survey backend's object store",
		Long: `surveyctl seeds question catalogs and inspects stored survey responses
in the same bucket (or local directory) the service uses.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./survey.yaml)")
	root.PersistentFlags().StringVar(&c.backend, "backend", "", "storage backend: s3 or local (overrides config)")
	root.PersistentFlags().StringVar(&c.bucket, "bucket", "", "S3 bucket (overrides config)")
	root.PersistentFlags().StringVar(&c.localDir, "local-dir", "", "local store directory (overrides config)")

	root.AddCommand(newSeedCmd(c))
	root.AddCommand(newShowCmd(c))
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.backend != "" {
		cfg.Storage.Backend = c.backend
	}
	if c.bucket != "" {
		cfg.Storage.Bucket = c.bucket
	}
	if c.localDir != "" {
		cfg.Storage.LocalDir = c.localDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	c.cfg, c.logger, c.store = cfg, logger, store
	return nil
}
