package sync

import (
	"context"
	"testing"
	"time"

	"github.com/snaptab/snaptab/internal/models"
	"github.com/snaptab/snaptab/internal/recordstore"
)

func waitingDoc() models.SplitDocument {
	return models.SplitDocument{
		Items:  []models.Item{{ID: "i1", Name: "Pizza", Price: 20, Quantity: 2}},
		Users:  []models.Participant{{ID: "host", Name: "Alice"}},
		HostID: "host",
		Status: models.StatusWaiting,
	}
}

func attachedEngine(t *testing.T, store *recordstore.MemoryStore, pin string) *Engine {
	t.Helper()
	ctx := context.Background()

	doc := waitingDoc()
	if err := store.Create(ctx, pin, recordstore.Record{PIN: pin, Document: doc}); err != nil {
		t.Fatalf("create record: %v", err)
	}

	e := New(store, nil)
	if err := e.Attach(ctx, pin, doc); err != nil {
		t.Fatalf("attach: %v", err)
	}
	t.Cleanup(e.Reset)
	return e
}

// waitUntil polls cond for up to a second.
func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestApplyPushesFullDocument(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := attachedEngine(t, store, "4821")
	ctx := context.Background()

	err := e.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Items = append(doc.Items, models.Item{ID: "i2", Name: "Salad", Price: 10, Quantity: 1})
		return doc
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Optimistic local state.
	if got := len(e.Snapshot().Items); got != 2 {
		t.Errorf("local items = %d, want 2", got)
	}

	// The full document, not a delta, reached the store.
	rec, err := store.Get(ctx, "4821")
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	if len(rec.Document.Items) != 2 {
		t.Errorf("remote items = %d, want 2", len(rec.Document.Items))
	}
	if rec.OriginID != e.ClientID() {
		t.Errorf("origin = %s, want engine client ID", rec.OriginID)
	}
	if rec.OriginSeq != 1 {
		t.Errorf("origin seq = %d, want 1", rec.OriginSeq)
	}
}

func TestManualModeSkipsStore(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := New(store, nil)
	ctx := context.Background()

	if err := e.Attach(ctx, "", waitingDoc()); err != nil {
		t.Fatalf("attach: %v", err)
	}

	err := e.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Status = models.StatusActive
		return doc
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if got := e.Snapshot().Status; got != models.StatusActive {
		t.Errorf("status = %s, want active", got)
	}
	if _, err := store.Get(ctx, ""); err == nil {
		t.Error("manual mode must not write to the record store")
	}
}

func TestSelfEchoSuppressed(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := attachedEngine(t, store, "4821")
	ctx := context.Background()

	err := e.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Items[0].AssignedTo = []string{"host"}
		return doc
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// The memory store echoes the engine's own write back through the
	// subscription. It must not disturb the projection; a remote write
	// from another client must still get through afterwards.
	other := waitingDoc()
	other.Items[0].Name = "Calzone"
	if err := store.Overwrite(ctx, "4821", recordstore.Record{PIN: "4821", Document: other, OriginID: "other-client", OriginSeq: 7}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	waitUntil(t, func() bool {
		return e.Snapshot().Items[0].Name == "Calzone"
	}, "remote write never applied")
}

func TestEchoLeavesProjectionUnchanged(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := attachedEngine(t, store, "4821")
	ctx := context.Background()

	err := e.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Items[0].AssignedTo = []string{"host"}
		return doc
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Hand-deliver the echo: same origin, same sequence, but a stale
	// document body. Suppression must keep the projection as-is.
	stale := waitingDoc()
	e.reconcile(recordstore.Record{PIN: "4821", Document: stale, OriginID: e.ClientID(), OriginSeq: 1})

	got := e.Snapshot()
	if len(got.Items[0].AssignedTo) != 1 || got.Items[0].AssignedTo[0] != "host" {
		t.Errorf("echo altered the projection: %+v", got.Items[0])
	}
}

func TestReconcileReplacesItemsAndStatus(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := attachedEngine(t, store, "4821")

	remote := waitingDoc()
	remote.Status = models.StatusActive
	remote.Items = []models.Item{{ID: "i9", Name: "Ramen", Price: 14, Quantity: 1}}
	e.reconcile(recordstore.Record{PIN: "4821", Document: remote, OriginID: "other", OriginSeq: 1})

	got := e.Snapshot()
	if got.Status != models.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
	if len(got.Items) != 1 || got.Items[0].ID != "i9" {
		t.Errorf("items = %+v, want the remote item set", got.Items)
	}
}

func TestReconcileMergesUsers(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := attachedEngine(t, store, "4821")
	ctx := context.Background()

	// This client has just written its own join; "carol" exists locally
	// but the incoming notification predates the join write.
	err := e.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Users = append(doc.Users, models.Participant{ID: "carol", Name: "Carol"})
		return doc
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	remote := waitingDoc()
	remote.Users = []models.Participant{
		{ID: "host", Name: "Alice"},
		{ID: "bob", Name: "Bob"},
	}
	e.reconcile(recordstore.Record{PIN: "4821", Document: remote, OriginID: "bob-client", OriginSeq: 2})

	got := e.Snapshot()
	counts := map[string]int{}
	for _, u := range got.Users {
		counts[u.ID]++
	}
	for _, id := range []string{"host", "bob", "carol"} {
		if counts[id] != 1 {
			t.Errorf("user %s appears %d times, want exactly once", id, counts[id])
		}
	}
	if len(got.Users) != 3 {
		t.Errorf("user set = %+v, want 3 users", got.Users)
	}
}

func TestEndedRejectsMutation(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := attachedEngine(t, store, "4821")
	ctx := context.Background()

	err := e.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Status = models.StatusEnded
		return doc
	})
	if err != nil {
		t.Fatalf("ending Apply failed: %v", err)
	}

	err = e.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Items[0].AssignedTo = []string{"host"}
		return doc
	})
	if err != ErrSessionEnded {
		t.Errorf("Apply after end = %v, want ErrSessionEnded", err)
	}
}

func TestResetStopsReconciling(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := attachedEngine(t, store, "4821")
	ctx := context.Background()

	e.Reset()
	e.Reset() // idempotent

	remote := waitingDoc()
	remote.Status = models.StatusActive
	if err := store.Overwrite(ctx, "4821", recordstore.Record{PIN: "4821", Document: remote, OriginID: "other", OriginSeq: 1}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := e.Snapshot().Status; got != "" {
		t.Errorf("reset engine reconciled a notification, status = %s", got)
	}
}

func TestFailedPushKeepsLocalState(t *testing.T) {
	store := recordstore.NewMemoryStore()
	e := New(store, nil)
	ctx := context.Background()

	// Attach to a PIN that was never created: every push fails with
	// not-found, but the local projection stays usable.
	doc := waitingDoc()
	if err := e.Attach(ctx, "0000", doc); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer e.Reset()

	err := e.Apply(ctx, func(doc models.SplitDocument) models.SplitDocument {
		doc.Status = models.StatusActive
		return doc
	})
	if err != nil {
		t.Fatalf("Apply surfaced a push failure: %v", err)
	}
	if got := e.Snapshot().Status; got != models.StatusActive {
		t.Errorf("status = %s, want active", got)
	}
}
