package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/app/api"
	"quill/app/apitest"
	"quill/app/models"
	"quill/app/repositories/mock"
)

type redirectCounter struct {
	n atomic.Int32
}

func (r *redirectCounter) RedirectToSignIn() { r.n.Add(1) }
func (r *redirectCounter) Count() int        { return int(r.n.Load()) }

func newTestSessionStore(t *testing.T) (*SessionStore, *apitest.Server, *mock.SessionRepository, *redirectCounter) {
	t.Helper()
	server := apitest.NewServer()
	t.Cleanup(server.Close)
	repo := mock.NewSessionRepository()
	redirects := &redirectCounter{}
	store := NewSessionStore(repo, api.NewClient(server.URL), redirects, nil)
	return store, server, repo, redirects
}

func TestSessionStoreHydrate(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   models.Session
	}{
		{
			name:   "nothing persisted",
			fields: map[string]string{},
			want:   models.Session{},
		},
		{
			name:   "full triple",
			fields: map[string]string{"authToken": "tok", "username": "alice", "email": "alice@example.com"},
			want:   models.Session{Token: "tok", Username: "alice", Email: "alice@example.com"},
		},
		{
			name:   "missing email",
			fields: map[string]string{"authToken": "tok", "username": "alice"},
			want:   models.Session{},
		},
		{
			name:   "missing token",
			fields: map[string]string{"username": "alice", "email": "alice@example.com"},
			want:   models.Session{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mock.NewSessionRepository()
			for k, v := range tt.fields {
				repo.Set(k, v)
			}
			store := NewSessionStore(repo, nil, nil, nil)

			require.NoError(t, store.Hydrate())
			assert.Equal(t, tt.want, store.Current())
			assert.Equal(t, tt.want.SignedIn(), store.Current().SignedIn())
		})
	}

	t.Run("load error leaves signed out", func(t *testing.T) {
		repo := mock.NewSessionRepository()
		repo.Err = errors.New("disk gone")
		store := NewSessionStore(repo, nil, nil, nil)

		assert.Error(t, store.Hydrate())
		assert.False(t, store.Current().SignedIn())
	})
}

func TestSessionStoreSignInSignOut(t *testing.T) {
	store, _, repo, redirects := newTestSessionStore(t)

	require.NoError(t, store.SignIn("tok", "alice", "alice@example.com"))
	username, ok := store.Identity()
	assert.True(t, ok)
	assert.Equal(t, "alice", username)
	assert.Equal(t, "tok", store.Token())
	assert.Equal(t, map[string]string{"authToken": "tok", "username": "alice", "email": "alice@example.com"}, repo.Fields())

	require.NoError(t, store.SignOut())
	_, ok = store.Identity()
	assert.False(t, ok)
	assert.Empty(t, store.Token())
	assert.Empty(t, repo.Fields())
	assert.Equal(t, 1, redirects.Count())

	t.Run("save failure keeps previous state", func(t *testing.T) {
		repo.Err = errors.New("read-only")
		defer func() { repo.Err = nil }()

		assert.Error(t, store.SignIn("tok", "alice", "alice@example.com"))
		assert.False(t, store.Current().SignedIn())
	})

	t.Run("clear failure still signs out", func(t *testing.T) {
		require.NoError(t, store.SignIn("tok", "alice", "alice@example.com"))
		repo.Err = errors.New("read-only")
		defer func() { repo.Err = nil }()

		assert.Error(t, store.SignOut())
		assert.False(t, store.Current().SignedIn())
	})
}

func TestSessionStoreVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token keeps session", func(t *testing.T) {
		store, server, _, redirects := newTestSessionStore(t)
		token := server.AddUser("alice", "alice@example.com", "password1")
		require.NoError(t, store.SignIn(token, "alice", "alice@example.com"))

		assert.NoError(t, store.Verify(ctx, token))
		assert.True(t, store.Current().SignedIn())
		assert.Equal(t, 0, redirects.Count())
		assert.Equal(t, 1, server.Calls(http.MethodPost, apitest.RouteVerify))
	})

	t.Run("rejected token signs out", func(t *testing.T) {
		store, _, repo, redirects := newTestSessionStore(t)
		require.NoError(t, store.SignIn("not-a-jwt", "alice", "alice@example.com"))

		err := store.Verify(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrTokenRejected)
		assert.ErrorIs(t, err, api.ErrUnauthorized)
		assert.Equal(t, models.Session{}, store.Current())
		assert.Empty(t, repo.Fields())
		assert.Equal(t, 1, redirects.Count())
	})

	t.Run("transport error signs out", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		repo := mock.NewSessionRepository()
		redirects := &redirectCounter{}
		store := NewSessionStore(repo, api.NewClient(url, api.WithTimeout(time.Second)), redirects, nil)
		require.NoError(t, store.SignIn("tok", "alice", "alice@example.com"))

		err := store.Verify(ctx, "tok")
		assert.ErrorIs(t, err, api.ErrTransport)
		assert.False(t, store.Current().SignedIn())
		assert.Equal(t, 1, redirects.Count())
	})

	t.Run("expired jwt is rejected without a request", func(t *testing.T) {
		store, server, _, redirects := newTestSessionStore(t)
		expired := server.IssueToken("alice", -time.Minute)
		require.NoError(t, store.SignIn(expired, "alice", "alice@example.com"))

		err := store.Verify(ctx, expired)
		assert.ErrorIs(t, err, ErrTokenRejected)
		assert.False(t, store.Current().SignedIn())
		assert.Equal(t, 1, redirects.Count())
		assert.Equal(t, 0, server.TotalCalls())
	})

	t.Run("failure for a replaced token is ignored", func(t *testing.T) {
		store, _, repo, redirects := newTestSessionStore(t)
		require.NoError(t, store.SignIn("newer", "alice", "alice@example.com"))

		err := store.Verify(ctx, "older")
		assert.ErrorIs(t, err, ErrTokenRejected)
		assert.Equal(t, "newer", store.Token())
		assert.Equal(t, "newer", repo.Fields()["authToken"])
		assert.Equal(t, 0, redirects.Count())
	})
}

func TestSessionStoreVerifyCurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("signed out redirects", func(t *testing.T) {
		store, server, _, redirects := newTestSessionStore(t)

		assert.ErrorIs(t, store.VerifyCurrent(ctx), ErrNotSignedIn)
		assert.Equal(t, 1, redirects.Count())
		assert.Equal(t, 0, server.TotalCalls())
	})

	t.Run("signed in verifies held token", func(t *testing.T) {
		store, server, _, redirects := newTestSessionStore(t)
		token := server.AddUser("alice", "alice@example.com", "password1")
		require.NoError(t, store.SignIn(token, "alice", "alice@example.com"))

		assert.NoError(t, store.VerifyCurrent(ctx))
		assert.Equal(t, 0, redirects.Count())
	})
}

func TestSessionStoreAuthenticate(t *testing.T) {
	ctx := context.Background()
	store, server, repo, _ := newTestSessionStore(t)
	server.AddUser("alice", "alice@example.com", "password1")

	t.Run("invalid input makes no request", func(t *testing.T) {
		_, err := store.Authenticate(ctx, models.Credentials{Email: "alice", Password: "password1"})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 0, server.TotalCalls())
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := store.Authenticate(ctx, models.Credentials{Email: "alice@example.com", Password: "nope"})
		assert.ErrorIs(t, err, api.ErrUnauthorized)
		assert.False(t, store.Current().SignedIn())
	})

	t.Run("success persists session", func(t *testing.T) {
		session, err := store.Authenticate(ctx, models.Credentials{Email: " alice@example.com ", Password: "password1"})
		require.NoError(t, err)
		assert.Equal(t, "alice", session.Username)
		assert.Equal(t, session, store.Current())
		assert.Equal(t, session.Token, repo.Fields()["authToken"])
		assert.NoError(t, store.VerifyCurrent(ctx))
	})
}

func TestSessionStoreRegister(t *testing.T) {
	ctx := context.Background()
	store, server, _, _ := newTestSessionStore(t)
	server.AddUser("alice", "alice@example.com", "password1")

	t.Run("short password makes no request", func(t *testing.T) {
		_, err := store.Register(ctx, models.Registration{Username: "bob", Email: "bob@example.com", Password: "short"})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 0, server.TotalCalls())
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := store.Register(ctx, models.Registration{Username: "alice2", Email: "alice@example.com", Password: "password1"})
		var apiErr *api.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.False(t, store.Current().SignedIn())
	})

	t.Run("success signs in", func(t *testing.T) {
		session, err := store.Register(ctx, models.Registration{Username: "bob", Email: "bob@example.com", Password: "password1"})
		require.NoError(t, err)
		username, ok := store.Identity()
		assert.True(t, ok)
		assert.Equal(t, "bob", username)
		assert.Equal(t, session.Token, store.Token())
	})
}
