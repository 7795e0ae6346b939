package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/baksh-audit/survey-backend/internal/models"
	"github.com/baksh-audit/survey-backend/internal/storage"
	"github.com/baksh-audit/survey-backend/internal/survey"
	"github.com/baksh-audit/survey-backend/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSeedCatalogs(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	dataDir := filepath.Join("..", "..", "data")

	t.Run("uploads both catalogs", func(t *testing.T) {
		store := testutil.NewMockStore()
		results, err := seedCatalogs(ctx, store, seedOptions{dataDir: dataDir}, logger)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "uploaded", results[0].Action)
		assert.Equal(t, "questions/company_questions.csv", results[0].Key)
		assert.Equal(t, 6, results[0].Questions)
		assert.Equal(t, []string{"questions/company_questions.csv", "questions/employee_questions.csv"}, store.Keys())
		assert.Equal(t, "text/csv", store.Object("questions/employee_questions.csv").ContentType)
	})

	t.Run("skips existing unless forced", func(t *testing.T) {
		store := testutil.NewMockStore()
		store.AddObject("questions/company_questions.csv", []byte("old"), "text/csv")

		results, err := seedCatalogs(ctx, store, seedOptions{dataDir: dataDir}, logger)
		require.NoError(t, err)
		assert.Equal(t, "skipped", results[0].Action)
		assert.Equal(t, "uploaded", results[1].Action)
		assert.Equal(t, "old", string(store.Object("questions/company_questions.csv").Body))

		_, err = seedCatalogs(ctx, store, seedOptions{dataDir: dataDir, force: true}, logger)
		require.NoError(t, err)
		assert.NotEqual(t, "old", string(store.Object("questions/company_questions.csv").Body))
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		store := testutil.NewMockStore()
		results, err := seedCatalogs(ctx, store, seedOptions{dataDir: dataDir, dryRun: true}, logger)
		require.NoError(t, err)
		assert.Equal(t, "dry-run", results[0].Action)
		assert.Empty(t, store.Keys())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := seedCatalogs(ctx, testutil.NewMockStore(), seedOptions{dataDir: t.TempDir()}, logger)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("upload failure", func(t *testing.T) {
		store := testutil.NewMockStore()
		store.FailAllPuts(testutil.ErrInjected)
		_, err := seedCatalogs(ctx, store, seedOptions{dataDir: dataDir}, logger)
		assert.ErrorIs(t, err, testutil.ErrInjected)
	})
}

func TestSeedCatalogs_RejectsEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	header := "id,text,type,section,required,options\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "company_questions.csv"), []byte(header+"c1,Hi,,,,\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "employee_questions.csv"), []byte(header), 0o644))

	store := testutil.NewMockStore()
	_, err := seedCatalogs(context.Background(), store, seedOptions{dataDir: dir}, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.NotContains(t, store.Keys(), "questions/employee_questions.csv")
}

func TestCLI_SeedAndShow(t *testing.T) {
	storeDir := t.TempDir()
	base := []string{"--backend", "local", "--local-dir", storeDir}

	out, err := run(t, append(base, "seed", "--data-dir", filepath.Join("..", "..", "data"))...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "uploaded questions/company_questions.csv (6 questions)")

	local, err := storage.NewLocalStore(storeDir)
	require.NoError(t, err)
	_, err = survey.NewService(local).Save(context.Background(), survey.SaveRequest{
		Key:       survey.Key{Kind: "employee", CompanyID: "acme", EmployeeID: "e1"},
		Responses: map[string]any{"e1": "Engineer"},
	})
	require.NoError(t, err)

	out, err = run(t, append(base, "show", "--type", "employee", "--company-id", "acme", "--employee-id", "e1")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"employee_id": "e1"`)
	assert.Contains(t, out, `"e1": "Engineer"`)

	out, err = run(t, append(base, "show", "--type", "employee", "--company-id", "acme", "--employee-id", "e1", "-o", "yaml")...)
	require.NoError(t, err, out)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "acme", doc["company_id"])
	assert.Equal(t, string(models.SubjectEmployee), doc["type"])

	_, err = run(t, append(base, "show", "--type", "company", "--company-id", "ghost")...)
	assert.ErrorContains(t, err, "no response stored at companies/ghost/form.json")

	_, err = run(t, append(base, "show", "--type", "company", "--company-id", "acme", "-o", "xml")...)
	assert.ErrorContains(t, err, "--output")
}
