package badger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/filegate/pkg/store/object"
	"github.com/marmos91/filegate/pkg/store/record"
)

// Scan returns one page of locations matching the filter, ordered by
// creation time.
//
// The scan walks the time index (lix: prefix) for the filter's partition.
// The continuation cursor is the base64 encoding of the last index key on
// the previous page; iteration resumes just past it. A cursor that does not
// decode, or that does not belong to the scanned partition, fails with
// ErrPagination.
func (s *BadgerRecordStore) Scan(ctx context.Context, filter record.ListFilter, pageSize int, cursor string) (*record.Page, error) {
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
			Message: fmt.Sprintf("invalid page size %d", pageSize),
		}
	}

	prefix := keyLocationIndexPrefix(filter.Partition)

	start, err := decodeCursor(cursor, prefix)
	if err != nil {
		return nil, err
	}

	page := &record.Page{PageSize: pageSize}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		visited := 0
		var lastKey []byte

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			// Check context periodically on large partitions
			visited++
			if visited%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			key := it.Item().KeyCopy(nil)

			id, ok := indexKeyID(key, prefix)
			if !ok {
				continue
			}

			loc, err := s.readLocation(txn, filter.Partition, id)
			if err != nil {
				return err
			}
			if loc == nil || !filter.Matches(loc) {
				continue
			}

			if len(page.Items) == pageSize {
				// One more match exists beyond this page: hand out a cursor
				// pointing at the last item we returned.
				page.Cursor = base64.StdEncoding.EncodeToString(lastKey)
				return nil
			}

			page.Items = append(page.Items, *loc)
			lastKey = key
		}

		return nil
	})
	if err != nil {
		if _, ok := object.AsStoreError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan locations: %w", err)
	}

	page.TotalReturned = len(page.Items)
	return page, nil
}

// readLocation loads and unmarshals one location record inside txn.
func (s *BadgerRecordStore) readLocation(txn *badger.Txn, partition, id string) (*record.FileLocation, error) {
	item, err := txn.Get(keyLocation(partition, id))
	if err == badger.ErrKeyNotFound {
		// Dangling index entry; skip rather than fail the whole scan.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var loc record.FileLocation
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &loc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal location %s: %w", id, err)
	}
	return &loc, nil
}

// decodeCursor turns an opaque continuation token back into the iterator
// start position (exclusive of the token's own key).
func decodeCursor(cursor string, prefix []byte) ([]byte, error) {
	if cursor == "" {
		return prefix, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil || !bytes.HasPrefix(decoded, prefix) {
		return nil, &object.StoreError{
			Code:    object.ErrPagination,
			Message: "invalid continuation token",
		}
	}

	// Resume strictly after the cursor key.
	return append(decoded, 0), nil
}

// indexKeyID extracts the location id from a time-index key
// ("lix:<partition>:<nano20>:<id>").
func indexKeyID(key, prefix []byte) (string, bool) {
	suffix := string(key[len(prefix):])
	_, id, found := strings.Cut(suffix, ":")
	if !found || id == "" {
		return "", false
	}
	return id, true
}
