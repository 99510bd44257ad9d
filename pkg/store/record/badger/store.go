// Package badger implements the durable record store on BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/filegate/pkg/store/object"
	"github.com/marmos91/filegate/pkg/store/record"
)

// BadgerRecordStoreConfig holds configuration for creating a BadgerRecordStore.
type BadgerRecordStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files. Required
	// unless InMemory is set.
	DBPath string

	// InMemory runs BadgerDB without touching disk. Used by tests.
	InMemory bool

	// BadgerOptions overrides the default options entirely when non-nil.
	BadgerOptions *badger.Options
}

// BadgerRecordStore implements record.Repository using BadgerDB.
//
// The store keeps location records, a creation-time index for paginated
// scans, and committed-dataset records in namespaced key ranges (see
// keys.go for the schema).
//
// Thread Safety:
// BadgerDB transactions provide the required isolation; the store holds no
// additional mutable state. Save relies on a read-check inside the same
// transaction as the write, which BadgerDB's SSI conflict detection turns
// into an atomic insert-if-absent.
type BadgerRecordStore struct {
	db *badger.DB
}

// NewBadgerRecordStore opens (or creates) the BadgerDB database and returns
// the record store.
func NewBadgerRecordStore(ctx context.Context, config BadgerRecordStoreConfig) (*BadgerRecordStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.DBPath == "" && !config.InMemory {
			return nil, fmt.Errorf("badger record store: db_path is required")
		}

		opts = badger.DefaultOptions(config.DBPath)
		opts = opts.WithInMemory(config.InMemory)
		opts = opts.WithLoggingLevel(badger.WARNING)
		// Records are small JSON blobs; compression is not worth the overhead.
		opts = opts.WithCompression(options.None)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerRecordStore{db: db}, nil
}

// Save inserts a location record with insert-if-absent semantics.
//
// The existence check and the two writes (record + time index) happen in
// one transaction, so concurrent saves of the same id conflict and exactly
// one of them succeeds.
func (s *BadgerRecordStore) Save(ctx context.Context, partition string, loc record.FileLocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to marshal location %s: %w", loc.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := keyLocation(partition, loc.ID)

		_, err := txn.Get(key)
		if err == nil {
			return &object.StoreError{
				Code:    object.ErrAlreadyExists,
				Message: "location already exists",
				Path:    loc.ID,
			}
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(keyLocationIndex(partition, loc.CreatedAt, loc.ID), []byte(loc.ID))
	})
	if err != nil {
		if _, ok := object.AsStoreError(err); ok {
			return err
		}
		// A transaction conflict means another create for the same id won
		// the race; surface it the same way as a plain duplicate.
		if err == badger.ErrConflict {
			return &object.StoreError{
				Code:    object.ErrAlreadyExists,
				Message: "location already exists",
				Path:    loc.ID,
			}
		}
		return fmt.Errorf("failed to save location %s: %w", loc.ID, err)
	}

	return nil
}

// FindByID returns the location for id, or (nil, nil) when absent.
func (s *BadgerRecordStore) FindByID(ctx context.Context, partition, id string) (*record.FileLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var loc *record.FileLocation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyLocation(partition, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var decoded record.FileLocation
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("failed to unmarshal location %s: %w", id, err)
			}
			loc = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read location %s: %w", id, err)
	}

	return loc, nil
}

// SaveDataset persists a committed-dataset record, overwriting any previous
// record for the same id.
func (s *BadgerRecordStore) SaveDataset(ctx context.Context, rec record.DatasetRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset record %s: %w", rec.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyDataset(rec.Partition, rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save dataset record %s: %w", rec.ID, err)
	}

	return nil
}

// FindDataset returns the committed-dataset record for id, or (nil, nil)
// when absent.
func (s *BadgerRecordStore) FindDataset(ctx context.Context, partition, id string) (*record.DatasetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *record.DatasetRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyDataset(partition, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var decoded record.DatasetRecord
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("failed to unmarshal dataset record %s: %w", id, err)
			}
			rec = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset record %s: %w", id, err)
	}

	return rec, nil
}

// Ping verifies the database is open and readable.
func (s *BadgerRecordStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger record store is closed")
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// Close closes the underlying database.
func (s *BadgerRecordStore) Close() error {
	return s.db.Close()
}
