package repositories

import (
	"quill/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerSessionRepository implements SessionRepository using BadgerDB.
type BadgerSessionRepository struct {
	db *badger.DB
}

// NewBadgerSessionRepository creates a new BadgerSessionRepository.
func NewBadgerSessionRepository(db *badger.DB) *BadgerSessionRepository {
	return &BadgerSessionRepository{db: db}
}

// Load reads the persisted identity fields.
func (r *BadgerSessionRepository) Load() (models.Session, error) {
	fields := make(map[string]string, len(sessionKeys))

	err := r.db.View(func(txn *badger.Txn) error {
		for _, name := range sessionKeys {
			item, err := txn.Get([]byte(SessionKeyPrefix + name))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			fields[name] = string(val)
		}
		return nil
	})
	if err != nil {
		return models.Session{}, err
	}
	return sessionFromFields(fields), nil
}

// Save writes all identity fields in a single transaction.
func (r *BadgerSessionRepository) Save(session models.Session) error {
	return r.db.Update(func(txn *badger.Txn) error {
		for name, value := range sessionFields(session) {
			if err := txn.Set([]byte(SessionKeyPrefix+name), []byte(value)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes all identity fields.
func (r *BadgerSessionRepository) Clear() error {
	return r.db.Update(func(txn *badger.Txn) error {
		for _, name := range sessionKeys {
			if err := txn.Delete([]byte(SessionKeyPrefix + name)); err != nil {
				return err
			}
		}
		return nil
	})
}
