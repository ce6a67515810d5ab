package syncq

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnqueueStampsIDAndTimestamp(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Enqueue(Op{Kind: OpCreate, Entity: "funko", Payload: []byte(`{"name":"Thor"}`)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == 0 {
		t.Fatal("id not assigned")
	}

	ops, err := store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("pending = %d, want 1", len(ops))
	}
	if ops[0].CreatedAt.IsZero() {
		t.Error("created_at not stamped")
	}
	if ops[0].Kind != OpCreate || ops[0].Entity != "funko" {
		t.Errorf("op round-trip mismatch: %+v", ops[0])
	}
}

func TestPendingSortsByTimestampNotInsertionOrder(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// enqueue newest first
	if _, err := store.Enqueue(Op{Kind: OpDelete, Entity: "funko", TargetID: "3", CreatedAt: base.Add(2 * time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Enqueue(Op{Kind: OpUpdate, Entity: "funko", TargetID: "2", CreatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Enqueue(Op{Kind: OpCreate, Entity: "funko", CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	ops, err := store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	wantKinds := []OpKind{OpCreate, OpUpdate, OpDelete}
	for i, want := range wantKinds {
		if ops[i].Kind != want {
			t.Errorf("position %d: got %s, want %s", i, ops[i].Kind, want)
		}
	}
}

func TestPendingBreaksTimestampTiesByID(t *testing.T) {
	store := openTestStore(t)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := store.Enqueue(Op{Kind: OpCreate, Entity: "categoria", CreatedAt: ts})
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Enqueue(Op{Kind: OpUpdate, Entity: "categoria", CreatedAt: ts})
	if err != nil {
		t.Fatal(err)
	}

	ops, err := store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if ops[0].ID != first || ops[1].ID != second {
		t.Errorf("tie not broken by id: %d then %d", ops[0].ID, ops[1].ID)
	}
}

func TestDeleteAndCount(t *testing.T) {
	store := openTestStore(t)
	id, err := store.Enqueue(Op{Kind: OpCreate, Entity: "funko"})
	if err != nil {
		t.Fatal(err)
	}

	if n, _ := store.Count(); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := store.Count(); n != 0 {
		t.Fatalf("count = %d after delete", n)
	}
	if err := store.Delete(id); err != nil {
		t.Fatalf("repeated Delete: %v", err)
	}
}

func TestIncrementRetry(t *testing.T) {
	store := openTestStore(t)
	id, err := store.Enqueue(Op{Kind: OpUpdate, Entity: "funko", TargetID: "1"})
	if err != nil {
		t.Fatal(err)
	}

	if err := store.IncrementRetry(id); err != nil {
		t.Fatal(err)
	}
	if err := store.IncrementRetry(id); err != nil {
		t.Fatal(err)
	}

	ops, err := store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if ops[0].Retries != 2 {
		t.Errorf("retries = %d, want 2", ops[0].Retries)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Enqueue(Op{Kind: OpCreate, Entity: "funko", Payload: []byte(`{}`)}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if n, _ := reopened.Count(); n != 1 {
		t.Fatalf("count = %d after reopen, want 1", n)
	}
}
