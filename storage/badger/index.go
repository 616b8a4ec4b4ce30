package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

// IndexStore implements storage.IndexWriter and storage.IndexReader for BadgerDB.
type IndexStore struct {
	backend *Backend
}

var (
	_ storage.IndexWriter = (*IndexStore)(nil)
	_ storage.IndexReader = (*IndexStore)(nil)
)

// NewIndexStore creates an IndexStore over an open backend.
func NewIndexStore(backend *Backend) *IndexStore {
	return &IndexStore{backend: backend}
}

// WriteIndex writes the vectors, id map and docstore through a write batch
// and the manifest last, in its own transaction. The snapshot is written as
// given; callers validate it first.
func (s *IndexStore) WriteIndex(ctx context.Context, snapshot *storage.Snapshot) error {
	if s.backend.readOnly {
		return ErrReadOnly
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	wb := s.backend.db.NewWriteBatch()
	defer wb.Cancel()

	for pos, id := range snapshot.IDMap {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Set(makeIDMapKey(pos), []byte(id)); err != nil {
			return err
		}
	}
	for pos, v := range snapshot.Vectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Set(makeVectorKey(pos), storage.MarshalVector(v)); err != nil {
			return err
		}
	}
	for id, unit := range snapshot.Docstore {
		if err := wb.Set(makeUnitKey(id), storage.MarshalTextUnit(unit)); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}

	return s.backend.WithTransaction(ctx, func(ctx context.Context, tx *badger.Txn) error {
		return tx.Set([]byte(manifestKey), storage.MarshalManifest(&snapshot.Manifest))
	})
}

// ReadIndex reads and validates the persisted snapshot.
// Returns storage.ErrNotFound if no manifest exists and storage.ErrCorruptIndex
// if any artifact is unreadable or inconsistent.
func (s *IndexStore) ReadIndex(ctx context.Context) (*storage.Snapshot, error) {
	snapshot := &storage.Snapshot{Docstore: make(map[string]*core.TextUnit)}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(manifestKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: no manifest", storage.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			m, err := storage.UnmarshalManifest(val)
			if err != nil {
				return err
			}
			snapshot.Manifest = *m
			return nil
		}); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrCorruptIndex, err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		snapshot.IDMap, err = readPositional(tx, idMapPrefix, func(val []byte) (string, error) {
			return string(val), nil
		})
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		snapshot.Vectors, err = readPositional(tx, vectorPrefix, storage.UnmarshalVector)
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		return readUnits(tx, snapshot.Docstore)
	}, false)
	if err != nil {
		return nil, err
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// readPositional reads a key family written with makePositionKey.
// Positions must be contiguous from zero.
func readPositional[T any](tx *badger.Txn, prefix string, decode func([]byte) (T, error)) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = scanPrefix(prefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var out []T
	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		pos, err := parsePositionKey(prefix, item.Key())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrCorruptIndex, err)
		}
		if pos != len(out) {
			return nil, fmt.Errorf("%w: %s position %d missing", storage.ErrCorruptIndex, prefix, len(out))
		}

		var decoded T
		if err := item.Value(func(val []byte) error {
			var err error
			decoded, err = decode(val)
			return err
		}); err != nil {
			return nil, fmt.Errorf("%w: %s %d: %w", storage.ErrCorruptIndex, prefix, pos, err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

// readUnits loads every docstore entry into docstore.
func readUnits(tx *badger.Txn, docstore map[string]*core.TextUnit) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = scanPrefix(unitPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		var unit *core.TextUnit
		if err := item.Value(func(val []byte) error {
			var err error
			unit, err = storage.UnmarshalTextUnit(val)
			return err
		}); err != nil {
			return fmt.Errorf("%w: %s: %w", storage.ErrCorruptIndex, item.Key(), err)
		}
		if want := string(makeUnitKey(unit.ID)); want != string(item.Key()) {
			return fmt.Errorf("%w: key %s holds unit %q", storage.ErrCorruptIndex, item.Key(), unit.ID)
		}
		docstore[unit.ID] = unit
	}
	return nil
}

// SaveIndex validates snapshot and persists it as the index directory dir.
//
// The index is written to a staging directory beside dir and renamed into
// place only after the transaction has committed and the database is closed.
// An existing index at dir is replaced.
func SaveIndex(ctx context.Context, dir string, snapshot *storage.Snapshot, opts ...BackendOption) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(parent, filepath.Base(dir)+".staging-")
	if err != nil {
		return err
	}

	if err := writeStaging(ctx, staging, snapshot, opts...); err != nil {
		os.RemoveAll(staging)
		return err
	}

	if err := Publish(staging, dir); err != nil {
		os.RemoveAll(staging)
		return err
	}
	return nil
}

func writeStaging(ctx context.Context, staging string, snapshot *storage.Snapshot, opts ...BackendOption) error {
	backend, err := OpenBackend(staging, opts...)
	if err != nil {
		return err
	}
	if err := NewIndexStore(backend).WriteIndex(ctx, snapshot); err != nil {
		backend.Close()
		return err
	}
	return backend.Close()
}

// Publish moves a fully written staging directory to target.
// An existing target is moved aside first and removed once the swap succeeds;
// if the swap fails the previous target is restored.
func Publish(staging, target string) error {
	var previous string
	if _, err := os.Stat(target); err == nil {
		previous = target + ".old-" + strconv.FormatInt(time.Now().UnixNano(), 36)
		if err := os.Rename(target, previous); err != nil {
			return fmt.Errorf("moving previous index aside: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(staging, target); err != nil {
		if previous != "" {
			os.Rename(previous, target)
		}
		return fmt.Errorf("publishing index: %w", err)
	}

	if previous != "" {
		return os.RemoveAll(previous)
	}
	return nil
}

// LoadIndex opens the index directory dir read-only, reads and validates the
// snapshot and closes the database again.
func LoadIndex(ctx context.Context, dir string, opts ...BackendOption) (*storage.Snapshot, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, dir)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", storage.ErrNotFound, dir)
	}

	backend, err := OpenBackend(dir, append(opts, WithReadOnly())...)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", storage.ErrCorruptIndex, dir, err)
	}
	defer backend.Close()

	return NewIndexStore(backend).ReadIndex(ctx)
}
