package repositories

import (
	"fmt"

	"quill/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerPostCache implements PostCache using BadgerDB.
type BadgerPostCache struct {
	db *badger.DB
}

// NewBadgerPostCache creates a new BadgerPostCache.
func NewBadgerPostCache(db *badger.DB) *BadgerPostCache {
	return &BadgerPostCache{db: db}
}

// Replace swaps the cached feed for posts, keeping their order.
func (r *BadgerPostCache) Replace(posts []*models.Post) error {
	return r.db.Update(func(txn *badger.Txn) error {
		// Drop the previous snapshot
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		prefix := []byte(PostKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for i, post := range posts {
			data, err := marshalEntity(post.Summary())
			if err != nil {
				return err
			}
			if err := txn.Set(postKey(i), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the cached feed in its original order.
func (r *BadgerPostCache) List() ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(PostKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var post models.Post
			err := item.Value(func(val []byte) error {
				return unmarshalEntity(val, &post)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal post: %w", err)
			}
			posts = append(posts, &post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}
