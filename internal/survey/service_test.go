package survey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/baksh-audit/survey-backend/internal/models"
	"github.com/baksh-audit/survey-backend/internal/testutil"
)

var t0 = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

func newTestService(t *testing.T) (*Service, *testutil.MockStore) {
	t.Helper()
	store := testutil.NewMockStore()
	svc := NewService(store,
		WithClock(testutil.Clock(t0, time.Minute)),
		WithLogger(zaptest.NewLogger(t)))
	return svc, store
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func storedDoc(t *testing.T, store *testutil.MockStore, key string) models.SurveyDocument {
	t.Helper()
	obj := store.Object(key)
	require.NotNil(t, obj, "no object at %s", key)
	var doc models.SurveyDocument
	require.NoError(t, json.Unmarshal(obj.Body, &doc))
	return doc
}

func TestKeyResolve(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		want    ResolvedKey
		wantErr error
	}{
		{
			name: "company",
			key:  Key{Kind: "company", CompanyID: "acme", EmployeeID: "ignored"},
			want: ResolvedKey{Kind: models.SubjectCompany, CompanyID: "acme", Path: "companies/acme/form.json"},
		},
		{
			name: "employee",
			key:  Key{Kind: "employee", CompanyID: "acme", EmployeeID: "jane_doe-1"},
			want: ResolvedKey{Kind: models.SubjectEmployee, CompanyID: "acme", EmployeeID: "jane_doe-1", Path: "companies/acme/employees/jane_doe-1.json"},
		},
		{
			name: "strips disallowed characters",
			key:  Key{Kind: "employee", CompanyID: "acme corp!", EmployeeID: "john.doe/../x"},
			want: ResolvedKey{Kind: models.SubjectEmployee, CompanyID: "acmecorp", EmployeeID: "johndoex", Path: "companies/acmecorp/employees/johndoex.json"},
		},
		{name: "invalid kind", key: Key{Kind: "Company", CompanyID: "acme"}, wantErr: ErrInvalidSubjectKind},
		{name: "empty kind", key: Key{CompanyID: "acme"}, wantErr: ErrInvalidSubjectKind},
		{name: "missing company", key: Key{Kind: "company"}, wantErr: ErrMissingIdentifier},
		{name: "company sanitizes to empty", key: Key{Kind: "company", CompanyID: "!!! ///"}, wantErr: ErrMissingIdentifier},
		{name: "missing employee", key: Key{Kind: "employee", CompanyID: "acme"}, wantErr: ErrMissingIdentifier},
		{name: "employee sanitizes to empty", key: Key{Kind: "employee", CompanyID: "acme", EmployeeID: "@."}, wantErr: ErrMissingIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.key.Resolve()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report-v1.final.pdf", SanitizeFilename("report-v1.final.pdf"))
	assert.Equal(t, "mycv2024.pdf", SanitizeFilename("my cv (2024).pdf"))
	assert.Equal(t, "..etcpasswd", SanitizeFilename("../etc/passwd"))
	assert.Equal(t, "", SanitizeFilename(".."))
	assert.Equal(t, "", SanitizeFilename("日本語"))
}

func TestService_SaveCompany(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	res, err := svc.Save(ctx, SaveRequest{
		Key:       Key{Kind: "company", CompanyID: "acme"},
		Responses: map[string]any{"c1": "yes", "c2": []any{"a", "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectCompany, res.Kind)
	assert.Equal(t, "acme", res.CompanyID)
	assert.Empty(t, res.EmployeeID)
	assert.Equal(t, "companies/acme/form.json", res.StoragePath)
	assert.Equal(t, "2025-03-14T09:26:53.589793Z", res.SavedAt)
	assert.Zero(t, res.UploadedFiles)

	doc := storedDoc(t, store, "companies/acme/form.json")
	assert.Equal(t, models.SubjectCompany, doc.Type)
	assert.Equal(t, "yes", doc.Responses["c1"])
	assert.Equal(t, []any{"a", "b"}, doc.Responses["c2"])
	assert.Equal(t, res.SavedAt, doc.SubmittedAt)
	assert.Equal(t, res.SavedAt, doc.UpdatedAt)
	assert.Equal(t, "application/json", store.Object("companies/acme/form.json").ContentType)
	assert.Equal(t, 1, store.PutCount("companies/acme/form.json"))
}

func TestService_UpsertPreservesSubmittedAt(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	key := Key{Kind: "employee", CompanyID: "acme", EmployeeID: "e1"}

	first, err := svc.Save(ctx, SaveRequest{Key: key, Responses: map[string]any{"q1": "first"}})
	require.NoError(t, err)
	second, err := svc.Save(ctx, SaveRequest{Key: key, Responses: map[string]any{"q2": "second"}})
	require.NoError(t, err)

	got, err := svc.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, got.Found)

	doc := got.Document
	assert.Equal(t, map[string]any{"q2": "second"}, doc.Responses, "second save replaces answers in full")
	assert.Equal(t, first.SavedAt, doc.SubmittedAt)
	assert.Equal(t, second.SavedAt, doc.UpdatedAt)
	assert.Greater(t, doc.UpdatedAt, doc.SubmittedAt)
}

func TestService_SaveTreatsUnreadablePreviousAsFirst(t *testing.T) {
	ctx := context.Background()

	t.Run("read fault", func(t *testing.T) {
		svc, store := newTestService(t)
		store.FailGet("companies/acme/form.json", nil)

		res, err := svc.Save(ctx, SaveRequest{Key: Key{Kind: "company", CompanyID: "acme"}})
		require.NoError(t, err)

		doc := storedDoc(t, store, "companies/acme/form.json")
		assert.Equal(t, res.SavedAt, doc.SubmittedAt)
		assert.Equal(t, map[string]any{}, doc.Responses)
	})

	t.Run("corrupt document", func(t *testing.T) {
		svc, store := newTestService(t)
		store.AddObject("companies/acme/form.json", []byte("not json"), "application/json")

		res, err := svc.Save(ctx, SaveRequest{Key: Key{Kind: "company", CompanyID: "acme"}})
		require.NoError(t, err)
		assert.Equal(t, res.SavedAt, storedDoc(t, store, "companies/acme/form.json").SubmittedAt)
	})

	t.Run("previous without submitted_at", func(t *testing.T) {
		svc, store := newTestService(t)
		store.AddObject("companies/acme/form.json", []byte(`{"responses":{}}`), "application/json")

		res, err := svc.Save(ctx, SaveRequest{Key: Key{Kind: "company", CompanyID: "acme"}})
		require.NoError(t, err)
		assert.Equal(t, res.SavedAt, storedDoc(t, store, "companies/acme/form.json").SubmittedAt)
	})
}

func TestService_SaveWriteFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.FailPut("companies/acme/form.json", nil)

	res, err := svc.Save(context.Background(), SaveRequest{Key: Key{Kind: "company", CompanyID: "acme"}})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrStorageWrite)
	assert.ErrorIs(t, err, testutil.ErrInjected)
}

func TestService_SaveValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, SaveRequest{Key: Key{Kind: "vendor", CompanyID: "acme"}})
	assert.ErrorIs(t, err, ErrInvalidSubjectKind)

	_, err = svc.Save(ctx, SaveRequest{Key: Key{Kind: "employee", CompanyID: "acme"}})
	assert.ErrorIs(t, err, ErrMissingIdentifier)
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "employee_id", missing.Field)

	assert.Empty(t, store.Keys(), "validation failures never write")
}

func TestService_SanitizationDeterminism(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Save(ctx, SaveRequest{
		Key:       Key{Kind: "company", CompanyID: "acme corp!"},
		Responses: map[string]any{"c1": "yes"},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, Key{Kind: "company", CompanyID: "acme corp!"})
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, "acmecorp", got.Document.CompanyID)
	assert.Equal(t, "yes", got.Document.Responses["c1"])
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	t.Run("never saved is not an error", func(t *testing.T) {
		got, err := svc.Get(ctx, Key{Kind: "company", CompanyID: "ghost"})
		require.NoError(t, err)
		assert.False(t, got.Found)
		assert.Nil(t, got.Document)
		assert.Equal(t, "companies/ghost/form.json", got.Key.Path)
	})

	t.Run("storage fault is an error", func(t *testing.T) {
		store.FailGet("companies/broken/form.json", errors.New("AccessDenied"))
		got, err := svc.Get(ctx, Key{Kind: "company", CompanyID: "broken"})
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrStorageRead)
	})

	t.Run("undecodable document is a read failure", func(t *testing.T) {
		store.AddObject("companies/corrupt/form.json", []byte("{"), "application/json")
		_, err := svc.Get(ctx, Key{Kind: "company", CompanyID: "corrupt"})
		assert.ErrorIs(t, err, ErrStorageRead)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := svc.Get(ctx, Key{Kind: "employee", CompanyID: "acme"})
		assert.ErrorIs(t, err, ErrMissingIdentifier)
	})
}

func TestService_SaveAttachments(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	res, err := svc.Save(ctx, SaveRequest{
		Key:       Key{Kind: "employee", CompanyID: "acme", EmployeeID: "e1"},
		Responses: map[string]any{"q1": "a"},
		Files: []models.FileUpload{
			{Filename: "my cv.pdf", Content: b64("%PDF-1.4"), ContentType: "application/pdf"},
			{Filename: "bad.txt", Content: "!!!not base64!!!"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UploadedFiles)

	blob := store.Object("companies/acme/employees/e1/files/mycv.pdf")
	require.NotNil(t, blob)
	assert.Equal(t, "%PDF-1.4", string(blob.Body))
	assert.Equal(t, "application/pdf", blob.ContentType)

	doc := storedDoc(t, store, "companies/acme/employees/e1.json")
	require.Len(t, doc.Files, 1)
	assert.Equal(t, models.AttachmentRecord{
		StoredName:   "mycv.pdf",
		OriginalName: "my cv.pdf",
		ContentType:  "application/pdf",
		SizeBytes:    8,
		UploadedAt:   res.SavedAt,
	}, doc.Files[0])
	assert.Equal(t, 2, store.PutCount("companies/acme/employees/e1.json"), "document is re-written with file records")
}

func TestService_SaveAttachmentsAllFail(t *testing.T) {
	svc, store := newTestService(t)

	res, err := svc.Save(context.Background(), SaveRequest{
		Key:   Key{Kind: "employee", CompanyID: "acme", EmployeeID: "e1"},
		Files: []models.FileUpload{{Filename: "a.txt", Content: "@@@"}, {Filename: "b.txt"}},
	})
	require.NoError(t, err)
	assert.Zero(t, res.UploadedFiles)
	assert.Equal(t, 1, store.PutCount("companies/acme/employees/e1.json"))
	assert.Empty(t, storedDoc(t, store, "companies/acme/employees/e1.json").Files)
}

func TestService_SaveIgnoresCompanyAttachments(t *testing.T) {
	svc, store := newTestService(t)

	res, err := svc.Save(context.Background(), SaveRequest{
		Key:   Key{Kind: "company", CompanyID: "acme"},
		Files: []models.FileUpload{{Filename: "deck.pdf", Content: b64("x")}},
	})
	require.NoError(t, err)
	assert.Zero(t, res.UploadedFiles)
	assert.Equal(t, []string{"companies/acme/form.json"}, store.Keys())
}

func TestService_SaveAttachmentWriteFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.FailPut("companies/acme/employees/e1/files/a.txt", nil)

	res, err := svc.Save(context.Background(), SaveRequest{
		Key: Key{Kind: "employee", CompanyID: "acme", EmployeeID: "e1"},
		Files: []models.FileUpload{
			{Filename: "a.txt", Content: b64("hello")},
			{Filename: "b.txt", Content: b64("world")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UploadedFiles)

	doc := storedDoc(t, store, "companies/acme/employees/e1.json")
	require.Len(t, doc.Files, 1)
	assert.Equal(t, "b.txt", doc.Files[0].StoredName)
	assert.Equal(t, defaultAttachmentType, doc.Files[0].ContentType)
}

func TestAttachments_Naming(t *testing.T) {
	store := testutil.NewMockStore()
	a := NewAttachments(store, zaptest.NewLogger(t))
	key := ResolvedKey{Kind: models.SubjectEmployee, CompanyID: "acme", EmployeeID: "e1"}

	recs := a.Save(context.Background(), key, []models.FileUpload{
		{Content: b64("anon")},
		{Filename: "...", Content: b64("dots")},
		{Filename: "unpadded.bin", Content: base64.RawStdEncoding.EncodeToString([]byte("ab"))},
	}, "2025-01-01T00:00:00.000000Z")
	require.Len(t, recs, 3)

	assert.Regexp(t, `^upload_[0-9a-f-]{36}$`, recs[0].OriginalName)
	assert.Equal(t, recs[0].OriginalName, recs[0].StoredName)

	assert.Equal(t, "...", recs[1].OriginalName)
	assert.Regexp(t, `^upload_`, recs[1].StoredName)

	assert.Equal(t, "unpadded.bin", recs[2].StoredName)
	assert.Equal(t, int64(2), recs[2].SizeBytes)
	assert.Equal(t, "ab", string(store.Object("companies/acme/employees/e1/files/unpadded.bin").Body))
}
