// Package localsession persists the device-local session record used to
// resume a live split after a reload.
package localsession

import (
	"context"

	"github.com/snaptab/snaptab/internal/models"
)

// Store defines durable per-device storage for the single active session.
type Store interface {
	// Load returns the persisted session, or nil when none is stored.
	Load(ctx context.Context) (*models.LocalSession, error)

	// Save replaces the persisted session wholesale.
	Save(ctx context.Context, session models.LocalSession) error

	// Clear removes the persisted session. Clearing an empty store is
	// not an error.
	Clear(ctx context.Context) error
}
