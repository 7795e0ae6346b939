// Seed command: uploads question catalogs.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/baksh-audit/survey-backend/internal/catalog"
	"github.com/baksh-audit/survey-backend/internal/models"
	"github.com/baksh-audit/survey-backend/internal/storage"
)

const catalogContentType = "text/csv"

type seedOptions struct {
	dataDir string
	dryRun  bool
	force   bool
}

// seedResult describes what happened to one catalog.
type seedResult struct {
	Key       string
	Questions int
	Action    string // uploaded, skipped, dry-run
}

func newSeedCmd(c *cli) *cobra.Command {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upload company and employee question catalogs",
		Long: `Reads company_questions.csv and employee_questions.csv from --data-dir,
checks that each parses to at least one question, and uploads them under
questions/. Existing catalogs are left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := seedCatalogs(cmd.Context(), c.store, opts, c.logger)
			for _, r := range results {
				if r.Action == "" {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (%d questions)\n", r.Action, r.Key, r.Questions)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "data", "directory containing the catalog CSV files")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate and report without uploading")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite catalogs that already exist")
	return cmd
}

// seedCatalogs uploads both catalogs concurrently. The first failure
// cancels the other upload.
func seedCatalogs(ctx context.Context, store storage.Store, opts seedOptions, logger *zap.Logger) ([]seedResult, error) {
	kinds := []models.SubjectKind{models.SubjectCompany, models.SubjectEmployee}
	results := make([]seedResult, len(kinds))

	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			r, err := seedCatalog(ctx, store, kind, opts, logger)
			if err != nil {
				return fmt.Errorf("%s catalog: %w", kind, err)
			}
			results[i] = r
			return nil
		})
	}
	return results, g.Wait()
}

func seedCatalog(ctx context.Context, store storage.Store, kind models.SubjectKind, opts seedOptions, logger *zap.Logger) (seedResult, error) {
	key := catalog.Key(kind)
	path := filepath.Join(opts.dataDir, string(kind)+"_questions.csv")

	data, err := os.ReadFile(path)
	if err != nil {
		return seedResult{}, err
	}
	questions, err := catalog.Parse(bytes.NewReader(data), logger)
	if err != nil {
		return seedResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(questions) == 0 {
		return seedResult{}, fmt.Errorf("%s: %w", path, catalog.ErrEmpty)
	}
	res := seedResult{Key: key, Questions: len(questions)}

	if !opts.force {
		exists, err := store.Exists(ctx, key)
		if err != nil {
			return seedResult{}, fmt.Errorf("check %s: %w", key, err)
		}
		if exists {
			logger.Info("catalog already exists, skipping", zap.String("key", key))
			res.Action = "skipped"
			return res, nil
		}
	}

	if opts.dryRun {
		res.Action = "dry-run"
		return res, nil
	}

	if err := store.Put(ctx, key, data, catalogContentType); err != nil {
		if errors.Is(err, context.Canceled) {
			return seedResult{}, err
		}
		return seedResult{}, fmt.Errorf("upload %s: %w", key, err)
	}
	logger.Info("uploaded catalog", zap.String("key", key), zap.Int("questions", len(questions)))
	res.Action = "uploaded"
	return res, nil
}
