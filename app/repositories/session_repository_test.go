package repositories

import (
	"bytes"
	"testing"

	"quill/app/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepository(t *testing.T) *Repository {
	repo, err := NewRepository("")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestBadgerSessionRepository(t *testing.T) {
	repo := setupTestRepository(t)
	sessions := repo.Sessions()

	t.Run("load empty", func(t *testing.T) {
		session, err := sessions.Load()
		assert.NoError(t, err)
		assert.Equal(t, models.Session{}, session)
		assert.False(t, session.SignedIn())
	})

	t.Run("save and load", func(t *testing.T) {
		want := models.Session{Token: "tok", Username: "alice", Email: "alice@example.com"}
		require.NoError(t, sessions.Save(want))

		got, err := sessions.Load()
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("stored under persisted field names", func(t *testing.T) {
		err := repo.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte("session:authToken"))
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			assert.Equal(t, "tok", string(val))
			return err
		})
		assert.NoError(t, err)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, sessions.Clear())

		got, err := sessions.Load()
		assert.NoError(t, err)
		assert.Equal(t, models.Session{}, got)
	})

	t.Run("partial state", func(t *testing.T) {
		err := repo.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte("session:username"), []byte("bob"))
		})
		require.NoError(t, err)

		got, err := sessions.Load()
		assert.NoError(t, err)
		assert.Equal(t, "bob", got.Username)
		assert.Empty(t, got.Token)
	})
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	repo, err := NewRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Sessions().Save(models.Session{Token: "tok", Username: "alice", Email: "a@example.com"}))
	require.NoError(t, repo.Close())
	assert.NoError(t, repo.Close(), "second close is a no-op")

	reopened, err := NewRepository(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Sessions().Load()
	assert.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, dir, reopened.Path())
}

func TestRepositoryBackupRestore(t *testing.T) {
	source := setupTestRepository(t)
	want := models.Session{Token: "tok", Username: "alice", Email: "alice@example.com"}
	require.NoError(t, source.Sessions().Save(want))
	require.NoError(t, source.Posts().Replace([]*models.Post{{ID: "1", Title: "Saved"}}))

	var buf bytes.Buffer
	require.NoError(t, source.Backup(&buf))
	assert.NotZero(t, buf.Len())

	target := setupTestRepository(t)
	require.NoError(t, target.Sessions().Save(models.Session{Token: "other", Username: "bob", Email: "bob@example.com"}))
	require.NoError(t, target.Restore(&buf))

	got, err := target.Sessions().Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	posts, err := target.Posts().List()
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Saved", posts[0].Title)
}

func TestRepositoryRestoreKeepsDataOnBadBackup(t *testing.T) {
	source := setupTestRepository(t)
	require.NoError(t, source.Posts().Replace([]*models.Post{{ID: "1", Title: "Saved"}}))
	var buf bytes.Buffer
	require.NoError(t, source.Backup(&buf))
	require.Greater(t, buf.Len(), 8)

	tests := []struct {
		name   string
		backup []byte
	}{
		{name: "truncated", backup: buf.Bytes()[:buf.Len()-3]},
		{name: "length prefix only", backup: buf.Bytes()[:8]},
		{name: "short header", backup: []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := setupTestRepository(t)
			want := models.Session{Token: "keep", Username: "bob", Email: "bob@example.com"}
			require.NoError(t, target.Sessions().Save(want))

			err := target.Restore(bytes.NewReader(tt.backup))
			assert.Error(t, err)

			got, err := target.Sessions().Load()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
