// Package memory implements the record store in process memory.
//
// Pagination here uses the page-number scheme: the opaque cursor is a
// decimal page number, and anything empty or non-positive means "start from
// the beginning". This mirrors backends whose native listing API is
// page-based rather than cursor-based.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/marmos91/filegate/pkg/store/object"
	"github.com/marmos91/filegate/pkg/store/record"
)

// MemoryRecordStore implements record.Repository with in-process maps.
//
// Thread Safety:
// All operations are protected by a read-write mutex.
type MemoryRecordStore struct {
	mu        sync.RWMutex
	locations map[string]record.FileLocation // keyed by partition + ":" + id
	datasets  map[string]record.DatasetRecord
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		locations: make(map[string]record.FileLocation),
		datasets:  make(map[string]record.DatasetRecord),
	}
}

func recordKey(partition, id string) string {
	return partition + ":" + id
}

// Save inserts a location record, failing with ErrAlreadyExists when the id
// is already bound in the partition. The check and insert happen under one
// lock, so concurrent saves of the same id cannot both succeed.
func (s *MemoryRecordStore) Save(ctx context.Context, partition string, loc record.FileLocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(partition, loc.ID)
	if _, exists := s.locations[key]; exists {
		return &object.StoreError{
			Code:    object.ErrAlreadyExists,
			Message: "location already exists",
			Path:    loc.ID,
		}
	}

	s.locations[key] = loc
	return nil
}

// FindByID returns the location for id, or (nil, nil) when absent.
func (s *MemoryRecordStore) FindByID(ctx context.Context, partition, id string) (*record.FileLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[recordKey(partition, id)]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

// Scan returns one page of locations matching the filter, ordered by
// creation time. The cursor is interpreted as a zero-based page number;
// empty, unparsable-as-negative, or non-positive values start from the
// beginning.
func (s *MemoryRecordStore) Scan(ctx context.Context, filter record.ListFilter, pageSize int, cursor string) (*record.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filter.Partition == "" {
		return nil, &object.StoreError{
			Code:    object.ErrMalformedLocation,
			Message: "scan requires a partition",
		}
	}
	if pageSize <= 0 {
		return nil, &object.StoreError{
			Code:    object.ErrMalformedLocation,
			Message: "invalid page size",
		}
	}

	pageNumber, err := parsePageNumber(cursor)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]record.FileLocation, 0)
	prefix := filter.Partition + ":"
	for key, loc := range s.locations {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if filter.Matches(&loc) {
			matched = append(matched, loc)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	page := &record.Page{PageSize: pageSize}

	start := pageNumber * pageSize
	if start < len(matched) {
		end := start + pageSize
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[start:end]
		if end < len(matched) {
			page.Cursor = strconv.Itoa(pageNumber + 1)
		}
	}

	page.TotalReturned = len(page.Items)
	return page, nil
}

// parsePageNumber decodes the page-number cursor. Page numbers at or below
// zero mean "first page"; garbage fails with ErrPagination.
func parsePageNumber(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(cursor)
	if err != nil {
		return 0, &object.StoreError{
			Code:    object.ErrPagination,
			Message: "invalid continuation token",
		}
	}
	if n <= 0 {
		return 0, nil
	}
	return n, nil
}

// SaveDataset persists a committed-dataset record, overwriting any previous
// record for the same id.
func (s *MemoryRecordStore) SaveDataset(ctx context.Context, rec record.DatasetRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[recordKey(rec.Partition, rec.ID)] = rec
	return nil
}

// FindDataset returns the committed-dataset record for id, or (nil, nil)
// when absent.
func (s *MemoryRecordStore) FindDataset(ctx context.Context, partition, id string) (*record.DatasetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.datasets[recordKey(partition, id)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryRecordStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op for the in-memory store.
func (s *MemoryRecordStore) Close() error {
	return nil
}
