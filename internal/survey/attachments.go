package survey

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baksh-audit/survey-backend/internal/models"
	"github.com/baksh-audit/survey-backend/internal/storage"
)

const defaultAttachmentType = "application/octet-stream"

// Attachments stores files uploaded alongside employee responses.
type Attachments struct {
	store  storage.Store
	logger *zap.Logger
}

// NewAttachments creates a new Attachments store.
func NewAttachments(store storage.Store, logger *zap.Logger) *Attachments {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Attachments{store: store, logger: logger}
}

// Save stores each file under key's files prefix and returns the records of
// those that succeeded. A file that cannot be decoded or written is logged
// and skipped; it never fails the batch.
func (a *Attachments) Save(ctx context.Context, key ResolvedKey, files []models.FileUpload, uploadedAt string) []models.AttachmentRecord {
	a.logger.Info("processing file uploads",
		zap.String("path", key.Path),
		zap.Int("files", len(files)))

	records := make([]models.AttachmentRecord, 0, len(files))
	for _, f := range files {
		original := f.Filename
		if original == "" {
			original = randomName()
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = defaultAttachmentType
		}
		log := a.logger.With(zap.String("filename", original))

		if f.Content == "" {
			log.Warn("skipping file with empty content")
			continue
		}
		data, err := decodeBase64(f.Content)
		if err != nil {
			log.Warn("skipping file with invalid base64 content", zap.Error(err))
			continue
		}

		stored := SanitizeFilename(original)
		if stored == "" {
			stored = randomName()
		}

		fileKey := key.FilesPrefix() + stored
		if err := a.store.Put(ctx, fileKey, data, contentType); err != nil {
			log.Error("failed to upload file", zap.String("key", fileKey), zap.Error(err))
			continue
		}

		log.Info("uploaded file", zap.String("key", fileKey), zap.Int("size", len(data)))
		records = append(records, models.AttachmentRecord{
			StoredName:   stored,
			OriginalName: original,
			ContentType:  contentType,
			SizeBytes:    int64(len(data)),
			UploadedAt:   uploadedAt,
		})
	}
	return records
}

func randomName() string {
	return "upload_" + uuid.NewString()
}

// decodeBase64 accepts padded and unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
