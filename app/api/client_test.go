package api

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/app/apitest"
)

func TestAPIErrorUnwrap(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, want: ErrForbidden},
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := error(&APIError{StatusCode: tt.status})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	err := error(&APIError{StatusCode: http.StatusInternalServerError, Message: "boom"})
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "backend returned 500: boom", err.Error())
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, WithTimeout(time.Second))
	_, err := c.ListBlogs(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClientUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListBlogs(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClientDecodesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"title too long"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateBlog(context.Background(), "t", "d", "alice")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "title too long", apiErr.Message)
}

func TestClientHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := NewClient(srv.URL+"/", WithTokenSource(func() string { return "tok" }), WithLogger(log.New(&buf, "", 0)))
	assert.Equal(t, srv.URL, c.BaseURL())

	_, err := c.ListBlogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.Contains(t, buf.String(), got.Get("X-Request-ID"))
}

func TestClientAuth(t *testing.T) {
	s := apitest.NewServer()
	defer s.Close()
	token := s.AddUser("alice", "alice@example.com", "password1")
	c := NewClient(s.URL)
	ctx := context.Background()

	t.Run("verify", func(t *testing.T) {
		assert.NoError(t, c.VerifyToken(ctx, token))
		assert.ErrorIs(t, c.VerifyToken(ctx, "garbage"), ErrUnauthorized)
		assert.ErrorIs(t, c.VerifyToken(ctx, ""), ErrUnauthorized)
	})

	t.Run("sign in", func(t *testing.T) {
		session, err := c.SignIn(ctx, creds("alice@example.com", "password1"))
		require.NoError(t, err)
		assert.Equal(t, "alice", session.Username)
		assert.Equal(t, "alice@example.com", session.Email)
		assert.True(t, session.SignedIn())
	})

	t.Run("sign in rejected", func(t *testing.T) {
		_, err := c.SignIn(ctx, creds("alice@example.com", "wrong"))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("sign up", func(t *testing.T) {
		session, err := c.SignUp(ctx, registration("bob", "bob@example.com", "password1"))
		require.NoError(t, err)
		assert.Equal(t, "bob", session.Username)
		assert.NoError(t, c.VerifyToken(ctx, session.Token))
	})

	t.Run("incomplete session", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"token":"t"}`))
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL).SignIn(ctx, creds("a@b.c", "p"))
		assert.Error(t, err)
	})
}
