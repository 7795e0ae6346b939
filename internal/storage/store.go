// Package storage provides key/value blob stores for survey data.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Object is a stored blob and its metadata.
type Object struct {
	Key          string
	Body         []byte
	ContentType  string
	Size         int64
	LastModified time.Time
}

// Store defines the interface for blob storage.
type Store interface {
	// Get returns ErrNotFound (possibly wrapped) when key is absent.
	Get(ctx context.Context, key string) (*Object, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Outcome classifies the result of a read.
type Outcome int

const (
	Found Outcome = iota
	Absent
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Absent:
		return "absent"
	default:
		return "failed"
	}
}

// Result is the tagged outcome of Fetch. Object is set only for Found and
// Err only for Failed.
type Result struct {
	Outcome Outcome
	Object  *Object
	Err     error
}

// Fetch reads key and separates a missing key from a storage fault.
func Fetch(ctx context.Context, s Store, key string) Result {
	obj, err := s.Get(ctx, key)
	switch {
	case err == nil:
		return Result{Outcome: Found, Object: obj}
	case errors.Is(err, ErrNotFound):
		return Result{Outcome: Absent}
	default:
		return Result{Outcome: Failed, Err: err}
	}
}
