package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/hybridrag/storage"
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db       *badger.DB
	readOnly bool
	logger   *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

// Badger reports every table and value log it opens at info level.
func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

type backendOptions struct {
	inMemory bool
	readOnly bool
	logger   *slog.Logger
}

// BackendOption configures OpenBackend.
type BackendOption func(*backendOptions)

// WithInMemory opens a database that lives only in memory. The path is ignored.
func WithInMemory() BackendOption {
	return func(o *backendOptions) {
		o.inMemory = true
	}
}

// WithReadOnly opens an existing database without write access.
// The directory must already exist.
func WithReadOnly() BackendOption {
	return func(o *backendOptions) {
		o.readOnly = true
	}
}

// WithBackendLogger sets the logger used by the backend and by badger itself.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// OpenBackend opens a BadgerDB database at the specified path.
// Unless read-only, creates the directory if it doesn't exist.
func OpenBackend(filePath string, opts ...BackendOption) (*Backend, error) {
	cfg := &backendOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	var badgerOpts badger.Options
	if cfg.inMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(filePath, !cfg.readOnly); err != nil {
			return nil, err
		}
		badgerOpts = badger.DefaultOptions(filePath).WithReadOnly(cfg.readOnly)
	}

	badgerOpts.Logger = &badgerLoggerAdapter{logger: cfg.logger.With("component", "badger")}
	badgerOpts.Compression = options.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:       db,
		readOnly: cfg.readOnly,
		logger:   cfg.logger,
	}, nil
}

// ensureDir checks that filePath is a directory, creating it when create is true.
func ensureDir(filePath string, create bool) error {
	info, err := os.Stat(filePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if !create {
			return fmt.Errorf("%w: %s does not exist", storage.ErrNotFound, filePath)
		}
		if err := os.MkdirAll(filePath, 0755); err != nil {
			return err
		}
		if info, err = os.Stat(filePath); err != nil {
			return err
		}
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filePath)
	}
	return nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// WithTransaction executes a function within a read-write transaction and
// commits it when fn succeeds.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *badger.Txn) error) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
