package repositories

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Repository owns the local Badger database holding the session and the
// feed snapshot.
type Repository struct {
	db       *badger.DB
	mutex    sync.Mutex
	dbPath   string
	closed   bool
	sessions *BadgerSessionRepository
	posts    *BadgerPostCache
}

// NewRepository opens the Badger database at path. An empty path opens an
// in-memory database.
func NewRepository(path string) (*Repository, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithNumGoroutines(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Repository{
		db:       db,
		dbPath:   path,
		sessions: NewBadgerSessionRepository(db),
		posts:    NewBadgerPostCache(db),
	}, nil
}

// Sessions returns the session repository backed by this database.
func (r *Repository) Sessions() *BadgerSessionRepository {
	return r.sessions
}

// Posts returns the feed snapshot cache backed by this database.
func (r *Repository) Posts() *BadgerPostCache {
	return r.posts
}

// Path returns the directory of the database, empty when in memory.
func (r *Repository) Path() string {
	return r.dbPath
}

// Backup writes a full backup of the database to w.
func (r *Repository) Backup(w io.Writer) error {
	if _, err := r.db.Backup(w, 0); err != nil {
		return fmt.Errorf("failed to backup database: %w", err)
	}
	return nil
}

// Restore loads a backup written by Backup into the database, replacing its
// contents. The backup is loaded into an in-memory copy first, so a corrupt
// or truncated backup leaves the database untouched.
func (r *Repository) Restore(rd io.Reader) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic occurred during restore: %v", p)
		}
	}()
	data, err := io.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	if err := checkBackup(data); err != nil {
		return fmt.Errorf("invalid backup: %w", err)
	}
	if err := r.db.DropAll(); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}
	if err := r.db.Load(bytes.NewReader(data), 4); err != nil {
		return fmt.Errorf("failed to restore database: %w", err)
	}
	return nil
}

// checkBackup loads data into a throwaway in-memory database.
func checkBackup(data []byte) error {
	staging, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil).
		WithNumGoroutines(1))
	if err != nil {
		return err
	}
	defer staging.Close()
	return staging.Load(bytes.NewReader(data), 4)
}

// Close closes the database. Closing twice is a no-op.
func (r *Repository) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
