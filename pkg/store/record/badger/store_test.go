package badger

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/filegate/pkg/store/record"
	recordtesting "github.com/marmos91/filegate/pkg/store/record/testing"
)

func newTestStore(t *testing.T) *BadgerRecordStore {
	t.Helper()

	store, err := NewBadgerRecordStore(context.Background(), BadgerRecordStoreConfig{
		InMemory: true,
	})
	if err != nil {
		t.Fatalf("failed to create badger store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close badger store: %v", err)
		}
	})

	return store
}

func TestBadgerRecordStore_Conformance(t *testing.T) {
	suite := &recordtesting.RepositoryTestSuite{
		NewRepository: func(t *testing.T) record.Repository {
			return newTestStore(t)
		},
	}
	suite.Run(t)
}

func TestBadgerRecordStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := t.TempDir()

	store, err := NewBadgerRecordStore(ctx, BadgerRecordStoreConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	loc := record.FileLocation{
		ID:          "persisted",
		BackendKind: "s3",
		PhysicalURI: "s3://staging/tenant/persisted",
		CreatedBy:   "alice",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := store.Save(ctx, "tenant", loc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen and verify the record survived.
	store, err = NewBadgerRecordStore(ctx, BadgerRecordStoreConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = store.Close() }()

	found, err := store.FindByID(ctx, "tenant", "persisted")
	if err != nil {
		t.Fatalf("find after reopen: %v", err)
	}
	if found == nil || found.PhysicalURI != loc.PhysicalURI {
		t.Errorf("record did not survive reopen: %+v", found)
	}
}

func TestBadgerRecordStore_Ping(t *testing.T) {
	store := newTestStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("ping on open store: %v", err)
	}
}

func TestBadgerRecordStore_CursorRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		loc := record.FileLocation{
			ID:          string(rune('a' + i)),
			BackendKind: "memory",
			PhysicalURI: "mem://staging/t/x",
			CreatedBy:   "alice",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Save(ctx, "t", loc); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	first, err := store.Scan(ctx, record.ListFilter{Partition: "t"}, 2, "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Items) != 2 || first.Cursor == "" {
		t.Fatalf("expected full first page with cursor, got %d items cursor=%q", len(first.Items), first.Cursor)
	}

	second, err := store.Scan(ctx, record.ListFilter{Partition: "t"}, 2, first.Cursor)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Items) != 2 {
		t.Fatalf("expected 2 items on second page, got %d", len(second.Items))
	}
	if second.Items[0].ID == first.Items[1].ID {
		t.Error("second page must start after the first page's last item")
	}

	// A cursor from a different partition's scan is rejected.
	if _, err := store.Scan(ctx, record.ListFilter{Partition: "other"}, 2, first.Cursor); err == nil {
		t.Error("expected cursor scoped to another partition to be rejected")
	}
}
