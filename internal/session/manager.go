// Package session manages the lifecycle of a live split: PIN allocation,
// the create/join/rejoin/leave protocols, host-driven status transitions,
// and restoration from the device-local session store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/snaptab/snaptab/internal/localsession"
	"github.com/snaptab/snaptab/internal/models"
	"github.com/snaptab/snaptab/internal/recordstore"
	enginesync "github.com/snaptab/snaptab/internal/sync"
)

const (
	pinLength      = 4
	maxPINAttempts = 10

	// restoreTimeout bounds the authoritative re-fetch during Restore so
	// a dead store cannot hang startup.
	restoreTimeout = 5 * time.Second
)

var (
	// ErrNotFound means no split exists for the PIN.
	ErrNotFound = recordstore.ErrNotFound

	// ErrAlreadyEnded means the split exists but has been ended.
	ErrAlreadyEnded = errors.New("split has already ended")

	// ErrLocked means the split rejects new participants. Devices with a
	// persisted session for the PIN rejoin regardless.
	ErrLocked = errors.New("split is locked to new participants")

	// ErrPinCollision means no unique PIN could be generated within the
	// bounded attempt count.
	ErrPinCollision = errors.New("unable to generate a unique PIN")

	// ErrNotHost means a host-only transition was attempted by a guest.
	ErrNotHost = errors.New("only the host can do this")

	// ErrRestoreFailed means the persisted session could not be restored;
	// it has been purged and the client should start fresh.
	ErrRestoreFailed = errors.New("could not restore previous session")

	// ErrEmptyName rejects blank display names.
	ErrEmptyName = errors.New("display name must not be empty")
)

// Manager drives one client's session lifecycle. It owns the local role
// and identity; the document itself lives in the sync engine.
type Manager struct {
	store  recordstore.Store
	local  localsession.Store
	engine *enginesync.Engine

	participant models.Participant
	isHost      bool

	// newPIN generates candidate PINs; swapped out in tests.
	newPIN func() string
}

// NewManager creates a lifecycle manager over the given collaborators.
func NewManager(store recordstore.Store, local localsession.Store, engine *enginesync.Engine) *Manager {
	return &Manager{
		store:  store,
		local:  local,
		engine: engine,
		newPIN: randomPIN,
	}
}

// Participant returns this client's identity in the active split.
func (m *Manager) Participant() models.Participant {
	return m.participant
}

// IsHost reports whether this client created the active split. The flag
// is client-local; the record store accepts writes from any PIN holder.
func (m *Manager) IsHost() bool {
	return m.isHost
}

// Create allocates a PIN, writes a fresh waiting document with the host
// as sole participant, and persists the session locally. PIN uniqueness
// is settled by the store's create-if-absent semantics; colliding
// candidates are retried up to a bounded attempt count.
func (m *Manager) Create(ctx context.Context, hostName string) (string, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return "", ErrEmptyName
	}

	host := models.NewParticipant(hostName)
	doc := models.SplitDocument{
		Users:  []models.Participant{host},
		HostID: host.ID,
		Status: models.StatusWaiting,
	}

	for attempt := 0; attempt < maxPINAttempts; attempt++ {
		pin := m.newPIN()
		err := m.store.Create(ctx, pin, recordstore.Record{PIN: pin, Document: doc})
		if errors.Is(err, recordstore.ErrConflict) {
			slog.Debug("PIN collision, retrying", "pin", pin, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create split: %w", err)
		}

		m.participant = host
		m.isHost = true
		if err := m.engine.Attach(ctx, pin, doc); err != nil {
			return "", fmt.Errorf("attach to split %s: %w", pin, err)
		}
		m.persist(ctx, pin)
		slog.Info("split created", "pin", pin, "host", hostName)
		return pin, nil
	}
	return "", ErrPinCollision
}

// Validate fetches the document for a candidate PIN, distinguishing "no
// such split" from "split already ended".
func (m *Manager) Validate(ctx context.Context, pin string) (*recordstore.Record, error) {
	rec, err := m.store.Get(ctx, pin)
	if err != nil {
		return nil, err
	}
	if rec.Document.Status == models.StatusEnded {
		return nil, ErrAlreadyEnded
	}
	return rec, nil
}

// Join enters the split identified by pin under the given display name.
//
// A persisted session for this exact PIN is a rejoin: the stored identity
// is reused and the fetched document adopted verbatim, bypassing any
// lock. Otherwise a participant whose name matches case-insensitively
// (trimmed) is adopted, covering session loss without duplicating the
// person. Only when neither applies is a new participant created,
// appended to the user set, and default-assigned to every existing item
// so a newcomer starts in on everything already added.
func (m *Manager) Join(ctx context.Context, pin, name string) error {
	rec, err := m.Validate(ctx, pin)
	if err != nil {
		return err
	}

	stored, err := m.local.Load(ctx)
	if err != nil {
		slog.Warn("local session unreadable, treating as absent", "error", err)
		stored = nil
	}

	if stored != nil && stored.PIN == pin {
		m.participant = models.Participant{
			ID:    stored.ParticipantID,
			Name:  stored.ParticipantName,
			Color: stored.ParticipantColor,
		}
		m.isHost = stored.IsHost
		slog.Info("rejoined split", "pin", pin, "participant", m.participant.ID)
		return m.engine.Attach(ctx, pin, rec.Document)
	}

	if rec.Document.Status.BlocksJoin() {
		return ErrLocked
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	if existing := findByName(rec.Document.Users, name); existing != nil {
		m.participant = *existing
		m.isHost = false
		if err := m.engine.Attach(ctx, pin, rec.Document); err != nil {
			return err
		}
		m.persist(ctx, pin)
		slog.Info("adopted existing participant by name", "pin", pin, "participant", existing.ID)
		return nil
	}

	joined := models.NewParticipant(name)
	m.participant = joined
	m.isHost = false
	if err := m.engine.Attach(ctx, pin, rec.Document); err != nil {
		return err
	}
	if err := m.engine.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Users = append(doc.Users, joined)
		for i := range doc.Items {
			doc.Items[i].AssignedTo = append(doc.Items[i].AssignedTo, joined.ID)
		}
		return doc
	}); err != nil {
		return err
	}
	m.persist(ctx, pin)
	slog.Info("joined split", "pin", pin, "participant", joined.ID)
	return nil
}

// Leave removes this participant from the split, best-effort: the remote
// removal may fail, but the local session is cleared and the engine reset
// regardless, returning the client to the initial screen.
func (m *Manager) Leave(ctx context.Context) error {
	id := m.participant.ID
	if m.engine.PIN() != "" && id != "" {
		err := m.engine.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
			users := doc.Users[:0]
			for _, u := range doc.Users {
				if u.ID != id {
					users = append(users, u)
				}
			}
			doc.Users = users
			for i := range doc.Items {
				doc.Items[i].AssignedTo = removeID(doc.Items[i].AssignedTo, id)
			}
			return doc
		})
		if err != nil {
			slog.Warn("leave write skipped", "participant", id, "error", err)
		}
	}

	m.clearLocal(ctx)
	m.engine.Reset()
	m.participant = models.Participant{}
	m.isHost = false
	return nil
}

// Start moves the split from waiting to active. Host only.
func (m *Manager) Start(ctx context.Context) error {
	return m.transition(ctx, models.StatusActive, true)
}

// Lock blocks new joins. Host only.
func (m *Manager) Lock(ctx context.Context) error {
	return m.transition(ctx, models.StatusLocked, true)
}

// Unlock reopens a locked split. Host only.
func (m *Manager) Unlock(ctx context.Context) error {
	return m.transition(ctx, models.StatusActive, true)
}

// End terminates the split. Host only; see ForceEnd for the escape hatch.
func (m *Manager) End(ctx context.Context) error {
	if err := m.transition(ctx, models.StatusEnded, true); err != nil {
		return err
	}
	m.finish(ctx)
	return nil
}

// ForceEnd terminates the split without host privilege. It exists for
// abandoned rooms whose host is unreachable; the caller's UI must confirm
// before invoking it, since ending is irreversible.
func (m *Manager) ForceEnd(ctx context.Context) error {
	if err := m.transition(ctx, models.StatusEnded, false); err != nil {
		return err
	}
	m.finish(ctx)
	return nil
}

func (m *Manager) finish(ctx context.Context) {
	m.clearLocal(ctx)
	m.engine.Reset()
	m.participant = models.Participant{}
	m.isHost = false
}

func (m *Manager) transition(ctx context.Context, next models.Status, hostOnly bool) error {
	if hostOnly && !m.isHost {
		return ErrNotHost
	}

	current := m.engine.Snapshot().Status
	if current == models.StatusEnded {
		return ErrAlreadyEnded
	}
	if !current.CanTransition(next) {
		return fmt.Errorf("cannot move split from %s to %s", current, next)
	}

	return m.engine.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Status = next
		return doc
	})
}

// Restore resumes the persisted session on process start. It returns
// (nil, nil) when nothing is persisted. An ended split purges the session
// and returns ErrAlreadyEnded so the caller can render a terminal ended
// view; an unreachable or deleted split purges the session and returns
// ErrRestoreFailed so the caller falls back to the initial screen. The
// authoritative fetch is bounded so restore can never hang the client.
func (m *Manager) Restore(ctx context.Context) (*models.LocalSession, error) {
	stored, err := m.local.Load(ctx)
	if err != nil {
		slog.Warn("local session unreadable, purging", "error", err)
		m.clearLocal(ctx)
		return nil, ErrRestoreFailed
	}
	if stored == nil {
		return nil, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	rec, err := m.store.Get(fetchCtx, stored.PIN)
	if err != nil {
		slog.Warn("restore fetch failed, purging session", "pin", stored.PIN, "error", err)
		m.clearLocal(ctx)
		return nil, fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	if rec.Document.Status == models.StatusEnded {
		m.clearLocal(ctx)
		return nil, ErrAlreadyEnded
	}

	m.participant = models.Participant{
		ID:    stored.ParticipantID,
		Name:  stored.ParticipantName,
		Color: stored.ParticipantColor,
	}
	m.isHost = stored.IsHost
	if err := m.engine.Attach(ctx, stored.PIN, rec.Document); err != nil {
		m.clearLocal(ctx)
		return nil, fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	slog.Info("session restored", "pin", stored.PIN, "participant", stored.ParticipantID)
	return stored, nil
}

// ResolveEntryPIN decides which PIN the client should act on at startup.
// A deep-link PIN in the entry URL takes precedence over a persisted
// session for a different PIN; the stale session is discarded so the join
// flow handles the link explicitly. The second return value reports
// whether the PIN came from the deep link.
func (m *Manager) ResolveEntryPIN(ctx context.Context, entryURL string) (string, bool) {
	deepPIN := PINFromURL(entryURL)
	if deepPIN == "" {
		if stored, err := m.local.Load(ctx); err == nil && stored != nil {
			return stored.PIN, false
		}
		return "", false
	}

	if stored, err := m.local.Load(ctx); err == nil && stored != nil && stored.PIN != deepPIN {
		slog.Info("deep link overrides persisted session", "deepLink", deepPIN, "persisted", stored.PIN)
		m.clearLocal(ctx)
	}
	return deepPIN, true
}

// persist saves the local session record, logging failures rather than
// failing the flow: losing resumption is survivable, losing the join is
// not.
func (m *Manager) persist(ctx context.Context, pin string) {
	err := m.local.Save(ctx, models.LocalSession{
		PIN:              pin,
		ParticipantID:    m.participant.ID,
		ParticipantName:  m.participant.Name,
		ParticipantColor: m.participant.Color,
		IsHost:           m.isHost,
	})
	if err != nil {
		slog.Warn("failed to persist local session", "pin", pin, "error", err)
	}
}

func (m *Manager) clearLocal(ctx context.Context) {
	if err := m.local.Clear(ctx); err != nil {
		slog.Warn("failed to clear local session", "error", err)
	}
}

// findByName matches a display name case-insensitively after trimming.
// Two distinct people sharing a display name will be merged into one
// participant by this lookup; the matching has no further disambiguation.
func findByName(users []models.Participant, name string) *models.Participant {
	for i, u := range users {
		if strings.EqualFold(strings.TrimSpace(u.Name), strings.TrimSpace(name)) {
			return &users[i]
		}
	}
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
