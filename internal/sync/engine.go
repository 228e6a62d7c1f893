// Package sync keeps a client's in-memory split document consistent with
// the remote record store under concurrent, uncoordinated writers.
//
// The engine applies local mutations optimistically, pushes the entire
// resulting document to the store, and reconciles inbound notifications.
// Each outbound write is stamped with the engine's client ID and a
// monotonically increasing sequence number; a notification carrying this
// client's ID and an equal-or-older sequence is the echo of its own write
// and is discarded, which prevents a write→notify→reconcile→rewrite loop
// without any fixed-delay heuristics.
//
// Convergence is last-full-document-write-wins: two clients mutating
// different items concurrently can clobber each other's change. At the
// target scale of a handful of phones in one room, the follow-up
// notification restores a consistent view.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/snaptab/snaptab/internal/metrics"
	"github.com/snaptab/snaptab/internal/models"
	"github.com/snaptab/snaptab/internal/recordstore"
)

// ErrSessionEnded is returned by Apply once the document status is ended.
var ErrSessionEnded = errors.New("session has ended")

// Mutator is a pure function from the current document to a new one.
// It receives a clone and may modify it freely.
type Mutator func(models.SplitDocument) models.SplitDocument

// Engine owns the canonical local projection of one split document.
type Engine struct {
	clientID string
	store    recordstore.Store
	metrics  *metrics.Sync

	mu  sync.Mutex
	doc models.SplitDocument
	pin string
	seq uint64
	sub recordstore.Subscription
}

// New creates an engine backed by the given record store. A nil Sync
// creates unregistered counters.
func New(store recordstore.Store, m *metrics.Sync) *Engine {
	if m == nil {
		m = metrics.NewSync(nil)
	}
	return &Engine{
		clientID: uuid.New().String(),
		store:    store,
		metrics:  m,
	}
}

// ClientID identifies this engine's writes in record envelopes.
func (e *Engine) ClientID() string {
	return e.clientID
}

// PIN returns the active PIN, or empty in manual mode.
func (e *Engine) PIN() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pin
}

// Snapshot returns a copy of the current projection for rendering.
func (e *Engine) Snapshot() models.SplitDocument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Attach adopts doc as the local projection and, for a non-empty PIN,
// opens a change subscription. Any previous subscription is torn down
// first, so switching splits never leaves a dangling feed.
func (e *Engine) Attach(ctx context.Context, pin string, doc models.SplitDocument) error {
	e.mu.Lock()
	e.closeSubLocked()
	e.pin = pin
	e.doc = doc.Clone()
	e.mu.Unlock()

	if pin == "" {
		return nil
	}

	sub, err := e.store.Watch(ctx, pin)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.pin != pin {
		// A concurrent Reset or re-Attach won; discard this feed.
		e.mu.Unlock()
		sub.Close()
		return nil
	}
	e.sub = sub
	e.mu.Unlock()

	go e.pump(sub)
	return nil
}

// Reset drops the projection, the active PIN, and any subscription. It is
// safe to call repeatedly.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeSubLocked()
	e.pin = ""
	e.doc = models.SplitDocument{}
}

func (e *Engine) closeSubLocked() {
	if e.sub != nil {
		e.sub.Close()
		e.sub = nil
	}
}

// Apply runs the mutator against a clone of the current document, adopts
// the result as the local projection, and pushes the full document to the
// record store when a PIN is active.
//
// A failed push keeps the optimistic local state and is not retried: the
// next Apply pushes the full document again, carrying the unsynced state
// forward. The failure is logged and counted, never surfaced, since the
// local view stays usable either way.
func (e *Engine) Apply(ctx context.Context, mutate Mutator) error {
	e.mu.Lock()
	if e.doc.Status == models.StatusEnded {
		e.mu.Unlock()
		return ErrSessionEnded
	}

	next := mutate(e.doc.Clone())
	e.doc = next
	pin := e.pin
	if pin == "" {
		e.mu.Unlock()
		return nil
	}

	e.seq++
	rec := recordstore.Record{
		PIN:       pin,
		Document:  next.Clone(),
		OriginID:  e.clientID,
		OriginSeq: e.seq,
	}
	e.mu.Unlock()

	e.metrics.Writes.Inc()
	if err := e.store.Overwrite(ctx, pin, rec); err != nil {
		e.metrics.WriteFailures.Inc()
		slog.Warn("sync push failed, local state retained", "pin", pin, "error", err)
	}
	return nil
}

// pump consumes a subscription until its channel closes.
func (e *Engine) pump(sub recordstore.Subscription) {
	for rec := range sub.Updates() {
		e.reconcile(rec)
	}
}

// reconcile folds one remote notification into the local projection.
//
// The remote document is authoritative for items and status, which are
// replaced wholesale. The user set is merged instead: the remote set plus
// any locally-known participants not yet present remotely. Item and
// status changes are rare and coarse, but user-set races are routine
// while several people join at once, and the merge keeps a just-joined
// local participant visible during the window before their own join
// write is reflected back.
func (e *Engine) reconcile(rec recordstore.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec.OriginID == e.clientID && rec.OriginSeq <= e.seq {
		e.metrics.EchoesSuppressed.Inc()
		slog.Debug("suppressed self-write echo", "pin", rec.PIN, "seq", rec.OriginSeq)
		return
	}

	// A straggler delivered after Reset or a PIN switch.
	if e.pin == "" || rec.PIN != e.pin {
		return
	}

	merged := mergeUsers(rec.Document.Users, e.doc.Users)
	e.doc = rec.Document.Clone()
	e.doc.Users = merged
	e.metrics.NotificationsApplied.Inc()
}

// mergeUsers returns the remote user set extended with local participants
// the remote side does not know yet, each participant exactly once.
func mergeUsers(remote, local []models.Participant) []models.Participant {
	out := make([]models.Participant, 0, len(remote)+len(local))
	seen := make(map[string]bool, len(remote))
	for _, u := range remote {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	for _, u := range local {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	return out
}
