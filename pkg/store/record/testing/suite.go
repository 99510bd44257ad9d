// Package testing provides a reusable conformance suite for
// record.Repository implementations. It tests the interface contract, not
// implementation details, so both the badger and memory stores run the same
// assertions.
package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/filegate/pkg/store/object"
	"github.com/marmos91/filegate/pkg/store/record"
)

// RepositoryTestSuite exercises the record.Repository contract.
//
// Usage:
//
//	func TestMyRecordStore(t *testing.T) {
//	    suite := &recordtesting.RepositoryTestSuite{
//	        NewRepository: func(t *testing.T) record.Repository {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type RepositoryTestSuite struct {
	// NewRepository creates a fresh repository for each test, ensuring
	// isolation. Implementations needing cleanup should register it with
	// t.Cleanup.
	NewRepository func(t *testing.T) record.Repository
}

// Run executes all tests in the suite.
func (suite *RepositoryTestSuite) Run(t *testing.T) {
	t.Run("SaveAndFind", suite.testSaveAndFind)
	t.Run("SaveDuplicate", suite.testSaveDuplicate)
	t.Run("ConcurrentSave", suite.testConcurrentSave)
	t.Run("FindAbsent", suite.testFindAbsent)
	t.Run("PartitionIsolation", suite.testPartitionIsolation)
	t.Run("ScanPagination", suite.testScanPagination)
	t.Run("ScanFilters", suite.testScanFilters)
	t.Run("ScanBadCursor", suite.testScanBadCursor)
	t.Run("DatasetRecords", suite.testDatasetRecords)
}

func makeLocation(id, createdBy string, createdAt time.Time) record.FileLocation {
	return record.FileLocation{
		ID:          id,
		BackendKind: "memory",
		PhysicalURI: "mem://staging/tenant/" + id,
		CreatedBy:   createdBy,
		CreatedAt:   createdAt,
	}
}

func (suite *RepositoryTestSuite) testSaveAndFind(t *testing.T) {
	repo := suite.NewRepository(t)
	ctx := context.Background()

	loc := makeLocation("loc-1", "alice", time.Now().UTC())
	if err := repo.Save(ctx, "tenant-a", loc); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := repo.FindByID(ctx, "tenant-a", "loc-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil {
		t.Fatal("expected location, got nil")
	}
	if found.ID != loc.ID || found.PhysicalURI != loc.PhysicalURI || found.CreatedBy != loc.CreatedBy {
		t.Errorf("round trip mismatch: saved %+v, found %+v", loc, *found)
	}
}

func (suite *RepositoryTestSuite) testSaveDuplicate(t *testing.T) {
	repo := suite.NewRepository(t)
	ctx := context.Background()

	loc := makeLocation("loc-dup", "alice", time.Now().UTC())
	if err := repo.Save(ctx, "tenant-a", loc); err != nil {
		t.Fatalf("first save: %v", err)
	}

	err := repo.Save(ctx, "tenant-a", loc)
	if err == nil {
		t.Fatal("expected duplicate save to fail")
	}
	if !object.IsCode(err, object.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func (suite *RepositoryTestSuite) testConcurrentSave(t *testing.T) {
	repo := suite.NewRepository(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = repo.Save(ctx, "tenant-a", makeLocation("loc-race", "alice", time.Now().UTC()))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if !object.IsCode(err, object.ErrAlreadyExists) {
			t.Errorf("unexpected error from concurrent save: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one concurrent save to succeed, got %d", successes)
	}
}

func (suite *RepositoryTestSuite) testFindAbsent(t *testing.T) {
	repo := suite.NewRepository(t)

	found, err := repo.FindByID(context.Background(), "tenant-a", "missing")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Errorf("expected nil for absent id, got %+v", *found)
	}
}

func (suite *RepositoryTestSuite) testPartitionIsolation(t *testing.T) {
	repo := suite.NewRepository(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "tenant-a", makeLocation("shared-id", "alice", time.Now().UTC())); err != nil {
		t.Fatalf("save tenant-a: %v", err)
	}
	// Same id in another partition is a distinct record.
	if err := repo.Save(ctx, "tenant-b", makeLocation("shared-id", "bob", time.Now().UTC())); err != nil {
		t.Fatalf("save tenant-b: %v", err)
	}

	found, err := repo.FindByID(ctx, "tenant-b", "shared-id")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.CreatedBy != "bob" {
		t.Errorf("expected tenant-b record, got %+v", found)
	}

	page, err := repo.Scan(ctx, record.ListFilter{Partition: "tenant-a"}, 10, "")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("tenant-a scan should see exactly its own record, got %d", len(page.Items))
	}
}

func (suite *RepositoryTestSuite) testScanPagination(t *testing.T) {
	repo := suite.NewRepository(t)
	ctx := context.Background()

	// 7 items, page size 3 -> 3 pages (3 + 3 + 1), no duplicates, no gaps.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	const total = 7
	for i := 0; i < total; i++ {
		loc := makeLocation(fmt.Sprintf("loc-%02d", i), "alice", base.Add(time.Duration(i)*time.Second))
		if err := repo.Save(ctx, "tenant-a", loc); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	filter := record.ListFilter{Partition: "tenant-a"}
	seen := make(map[string]bool)
	cursor := ""
	pages := 0

	for {
		page, err := repo.Scan(ctx, filter, 3, cursor)
		if err != nil {
			t.Fatalf("scan page %d: %v", pages, err)
		}
		pages++

		if page.TotalReturned != len(page.Items) {
			t.Errorf("TotalReturned %d != len(items) %d", page.TotalReturned, len(page.Items))
		}
		for _, item := range page.Items {
			if seen[item.ID] {
				t.Errorf("duplicate item %s across pages", item.ID)
			}
			seen[item.ID] = true
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor

		if pages > total {
			t.Fatal("scan did not terminate")
		}
	}

	if pages != 3 {
		t.Errorf("expected ceil(7/3) = 3 pages, got %d", pages)
	}
	if len(seen) != total {
		t.Errorf("expected %d distinct items across pages, got %d", total, len(seen))
	}
}

func (suite *RepositoryTestSuite) testScanFilters(t *testing.T) {
	repo := suite.NewRepository(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	saves := []record.FileLocation{
		makeLocation("early", "alice", base),
		makeLocation("mid", "alice", base.Add(time.Hour)),
		makeLocation("mid-bob", "bob", base.Add(time.Hour)),
		makeLocation("late", "alice", base.Add(2*time.Hour)),
	}
	for _, loc := range saves {
		if err := repo.Save(ctx, "tenant-a", loc); err != nil {
			t.Fatalf("save %s: %v", loc.ID, err)
		}
	}

	page, err := repo.Scan(ctx, record.ListFilter{
		Partition: "tenant-a",
		CreatedBy: "alice",
		TimeFrom:  base.Add(30 * time.Minute),
		TimeTo:    base.Add(90 * time.Minute),
	}, 10, "")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(page.Items) != 1 || page.Items[0].ID != "mid" {
		t.Errorf("expected exactly [mid], got %+v", page.Items)
	}
}

func (suite *RepositoryTestSuite) testScanBadCursor(t *testing.T) {
	repo := suite.NewRepository(t)

	_, err := repo.Scan(context.Background(), record.ListFilter{Partition: "tenant-a"}, 10, "!!not-a-token!!")
	if err == nil {
		t.Fatal("expected error for undecodable cursor")
	}
	if !object.IsCode(err, object.ErrPagination) {
		t.Errorf("expected ErrPagination, got %v", err)
	}
}

func (suite *RepositoryTestSuite) testDatasetRecords(t *testing.T) {
	repo := suite.NewRepository(t)
	ctx := context.Background()

	rec := record.DatasetRecord{
		ID:            "ds-1",
		Partition:     "tenant-a",
		PersistentURI: "mem://persistent/tenant-a/ds-1",
		Checksum:      "sha256:abc",
		CreatedBy:     "alice",
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.SaveDataset(ctx, rec); err != nil {
		t.Fatalf("save dataset: %v", err)
	}

	found, err := repo.FindDataset(ctx, "tenant-a", "ds-1")
	if err != nil {
		t.Fatalf("find dataset: %v", err)
	}
	if found == nil || found.PersistentURI != rec.PersistentURI {
		t.Errorf("dataset round trip mismatch: %+v", found)
	}

	// Recommit overwrites (at-least-once semantics).
	rec.Checksum = "sha256:def"
	if err := repo.SaveDataset(ctx, rec); err != nil {
		t.Fatalf("recommit: %v", err)
	}
	found, _ = repo.FindDataset(ctx, "tenant-a", "ds-1")
	if found == nil || found.Checksum != "sha256:def" {
		t.Errorf("expected overwritten checksum, got %+v", found)
	}

	absent, err := repo.FindDataset(ctx, "tenant-a", "missing")
	if err != nil || absent != nil {
		t.Errorf("expected (nil, nil) for absent dataset, got %+v, %v", absent, err)
	}
}
