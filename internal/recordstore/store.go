// Package recordstore provides the remote record store that holds one
// split document per PIN and fans out change notifications to watchers.
//
// The store deliberately offers no transactions, locking, or merging:
// Overwrite replaces the whole record and the last accepted write wins.
// Consistency across devices is the sync engine's concern.
package recordstore

import (
	"context"
	"errors"

	"github.com/snaptab/snaptab/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for a PIN.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned by Create when the PIN is already taken.
	ErrConflict = errors.New("record already exists")
)

// Record is the stored envelope for a split document. OriginID and
// OriginSeq identify the writing client and its write sequence so that a
// client can recognize notifications echoing its own writes.
type Record struct {
	PIN       string               `json:"pin"`
	Document  models.SplitDocument `json:"document"`
	OriginID  string               `json:"originId,omitempty"`
	OriginSeq uint64               `json:"originSeq,omitempty"`
}

// Store defines the remote record store operations consumed by the sync
// engine and the session lifecycle manager.
type Store interface {
	// Create stores a new record under pin. ErrConflict if taken.
	Create(ctx context.Context, pin string, rec Record) error

	// Get returns the current record for pin, or ErrNotFound.
	Get(ctx context.Context, pin string) (*Record, error)

	// Overwrite replaces the record for pin wholesale and notifies every
	// watcher, including any subscription held by the writer itself.
	Overwrite(ctx context.Context, pin string, rec Record) error

	// Watch opens a change feed for pin. Every record accepted after the
	// call is delivered until the subscription is closed.
	Watch(ctx context.Context, pin string) (Subscription, error)
}

// Subscription is a live change feed for one PIN.
type Subscription interface {
	// Updates delivers accepted records. The channel closes when the
	// subscription does.
	Updates() <-chan Record

	// Close tears the feed down. Closing more than once is harmless.
	Close() error
}
