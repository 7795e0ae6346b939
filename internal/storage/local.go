package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// objectMeta is persisted next to each blob so content types survive restarts.
type objectMeta struct {
	ContentType  string    `msgpack:"content_type"`
	Size         int64     `msgpack:"size"`
	LastModified time.Time `msgpack:"last_modified"`
}

// LocalStore implements Store on the local filesystem. Blobs live under
// <root>/objects and their metadata under <root>/meta.
type LocalStore struct {
	mu   sync.RWMutex
	root string
}

// NewLocalStore creates a new LocalStore rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	for _, sub := range []string{"objects", "meta"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &LocalStore{root: dir}, nil
}

// Get reads the blob stored under key.
func (s *LocalStore) Get(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objPath, metaPath, err := s.paths(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	body, err := os.ReadFile(objPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}

	obj := &Object{
		Key:         key,
		Body:        body,
		Size:        int64(len(body)),
		ContentType: "application/octet-stream",
	}

	raw, err := os.ReadFile(metaPath)
	switch {
	case err == nil:
		var meta objectMeta
		if err := msgpack.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", key, err)
		}
		obj.ContentType = meta.ContentType
		obj.LastModified = meta.LastModified
	case errors.Is(err, fs.ErrNotExist):
		// Blob written without metadata; fall back to the file's mtime.
		if st, statErr := os.Stat(objPath); statErr == nil {
			obj.LastModified = st.ModTime()
		}
	default:
		return nil, fmt.Errorf("reading metadata for %s: %w", key, err)
	}

	return obj, nil
}

// Put writes body under key, replacing any existing object.
func (s *LocalStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objPath, metaPath, err := s.paths(key)
	if err != nil {
		return err
	}

	meta, err := msgpack.Marshal(&objectMeta{
		ContentType:  contentType,
		Size:         int64(len(body)),
		LastModified: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(objPath, body); err != nil {
		return fmt.Errorf("writing object %s: %w", key, err)
	}
	if err := writeFileAtomic(metaPath, meta); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", key, err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	objPath, _, err := s.paths(key)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := os.Stat(objPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking object %s: %w", key, err)
	}
	return !st.IsDir(), nil
}

// paths maps an object key onto the blob and metadata file paths, rejecting
// keys that would escape the store root.
func (s *LocalStore) paths(key string) (string, string, error) {
	clean := path.Clean("/" + key)
	if key == "" || strings.HasSuffix(key, "/") || clean != "/"+key {
		return "", "", fmt.Errorf("invalid object key %q", key)
	}
	rel := filepath.FromSlash(strings.TrimPrefix(clean, "/"))
	return filepath.Join(s.root, "objects", rel),
		filepath.Join(s.root, "meta", rel+".msgpack"),
		nil
}

func writeFileAtomic(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
