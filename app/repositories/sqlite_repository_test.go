package repositories

import (
	"path/filepath"
	"testing"

	"quill/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRepositorySessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	t.Run("load empty", func(t *testing.T) {
		got, err := repo.Load()
		assert.NoError(t, err)
		assert.False(t, got.SignedIn())
	})

	t.Run("save overwrites", func(t *testing.T) {
		require.NoError(t, repo.Save(models.Session{Token: "old", Username: "alice", Email: "a@example.com"}))
		require.NoError(t, repo.Save(models.Session{Token: "new", Username: "alice", Email: "a@example.com"}))

		got, err := repo.Load()
		assert.NoError(t, err)
		assert.Equal(t, "new", got.Token)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, repo.Clear())
		got, err := repo.Load()
		assert.NoError(t, err)
		assert.Equal(t, models.Session{}, got)
	})

	t.Run("survives reopen", func(t *testing.T) {
		require.NoError(t, repo.Save(models.Session{Token: "tok", Username: "bob", Email: "b@example.com"}))

		other, err := NewSQLiteRepository(path)
		require.NoError(t, err)
		defer other.Close()

		got, err := other.Load()
		assert.NoError(t, err)
		assert.Equal(t, "bob", got.Username)
	})
}

func TestSQLiteRepositoryPosts(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	t.Run("list empty", func(t *testing.T) {
		posts, err := repo.List()
		assert.NoError(t, err)
		assert.Empty(t, posts)
	})

	t.Run("replace keeps order and drops detail", func(t *testing.T) {
		require.NoError(t, repo.Replace([]*models.Post{
			{ID: "2", Title: "Second", LikeCount: 3, Comments: []*models.Comment{{ID: "c"}}},
			{ID: "1", Title: "First"},
		}))
		posts, err := repo.List()
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "2", posts[0].ID)
		assert.Equal(t, 3, posts[0].LikeCount)
		assert.Nil(t, posts[0].Comments)
		assert.Equal(t, "1", posts[1].ID)
	})

	t.Run("replace with fewer posts", func(t *testing.T) {
		require.NoError(t, repo.Replace([]*models.Post{{ID: "9"}}))
		posts, err := repo.List()
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "9", posts[0].ID)
	})
}
