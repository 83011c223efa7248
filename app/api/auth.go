package api

import (
	"context"
	"errors"
	"net/http"

	"quill/app/models"
)

var errIncompleteSession = errors.New("backend returned an incomplete session")

// VerifyToken asks the backend whether token is still valid. Any 2xx
// response means valid.
func (c *Client) VerifyToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	return c.do(ctx, http.MethodPost, "/verify-token", token, nil, nil)
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, creds models.Credentials) (models.Session, error) {
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	return c.exchange(ctx, "/signin", body)
}

// SignUp registers a new account and returns its session.
func (c *Client) SignUp(ctx context.Context, reg models.Registration) (models.Session, error) {
	body := map[string]string{"username": reg.Username, "email": reg.Email, "password": reg.Password}
	return c.exchange(ctx, "/signup", body)
}

func (c *Client) exchange(ctx context.Context, path string, body interface{}) (models.Session, error) {
	var out sessionDTO
	if err := c.do(ctx, http.MethodPost, path, "", body, &out); err != nil {
		return models.Session{}, err
	}
	session := out.toModel()
	if session.Token == "" || session.Username == "" || session.Email == "" {
		return models.Session{}, errIncompleteSession
	}
	return session, nil
}
