package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quill/app/models"
	"quill/app/repositories"
)

var errTokenExpired = errors.New("token expired")

// AuthClient is the part of the backend the session store talks to.
type AuthClient interface {
	VerifyToken(ctx context.Context, token string) error
	SignIn(ctx context.Context, creds models.Credentials) (models.Session, error)
	SignUp(ctx context.Context, reg models.Registration) (models.Session, error)
}

// SessionStore owns the signed-in identity. It is safe for concurrent use.
type SessionStore struct {
	repo     repositories.SessionRepository
	auth     AuthClient
	redirect Redirector
	logger   *log.Logger
	now      func() time.Time

	mutex   sync.RWMutex
	session models.Session
}

// NewSessionStore creates a signed-out store. Call Hydrate to restore the
// persisted session. redirect and logger may be nil.
func NewSessionStore(repo repositories.SessionRepository, auth AuthClient, redirect Redirector, logger *log.Logger) *SessionStore {
	if redirect == nil {
		redirect = discard{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &SessionStore{
		repo:     repo,
		auth:     auth,
		redirect: redirect,
		logger:   logger,
		now:      time.Now,
	}
}

// Hydrate restores the persisted session. Only a complete token, username
// and email triple signs the user in.
func (s *SessionStore) Hydrate() error {
	stored, err := s.repo.Load()
	if err != nil {
		s.setSession(models.Session{})
		return fmt.Errorf("load session: %w", err)
	}
	if stored.Token == "" || stored.Username == "" || stored.Email == "" {
		stored = models.Session{}
	}
	s.setSession(stored)
	return nil
}

// Verify checks token with the backend. On failure the session is cleared,
// the user is redirected to sign-in and an error wrapping ErrTokenRejected
// is returned. A failure for a token that is no longer held is ignored.
func (s *SessionStore) Verify(ctx context.Context, token string) error {
	var err error
	if s.expired(token) {
		err = errTokenExpired
	} else {
		err = s.auth.VerifyToken(ctx, token)
	}
	if err == nil {
		return nil
	}

	s.mutex.Lock()
	held := s.session.Token
	if held != "" && held != token {
		s.mutex.Unlock()
		s.logger.Printf("Ignoring failed verification of a replaced token: %v", err)
		return fmt.Errorf("%w: %w", ErrTokenRejected, err)
	}
	s.session = models.Session{}
	clearErr := s.repo.Clear()
	s.mutex.Unlock()

	s.logger.Printf("Session verification failed: %v", err)
	if clearErr != nil {
		s.logger.Printf("Failed to clear session: %v", clearErr)
	}
	s.redirect.RedirectToSignIn()
	return fmt.Errorf("%w: %w", ErrTokenRejected, err)
}

// VerifyCurrent guards a route: it verifies the held token, redirecting to
// sign-in when there is none.
func (s *SessionStore) VerifyCurrent(ctx context.Context) error {
	current := s.Current()
	if !current.SignedIn() {
		s.redirect.RedirectToSignIn()
		return ErrNotSignedIn
	}
	return s.Verify(ctx, current.Token)
}

// expired reports whether token is a JWT whose exp claim has passed.
// Anything that is not a JWT is left to the backend.
func (s *SessionStore) expired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now())
}

// SignIn persists and adopts the given identity as is.
func (s *SessionStore) SignIn(token, username, email string) error {
	session := models.Session{Token: token, Username: username, Email: email}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.repo.Save(session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.session = session
	return nil
}

// SignOut forgets the identity and redirects to sign-in. The in-memory
// session is cleared even when the persisted copy cannot be.
func (s *SessionStore) SignOut() error {
	s.mutex.Lock()
	s.session = models.Session{}
	err := s.repo.Clear()
	s.mutex.Unlock()

	s.redirect.RedirectToSignIn()
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Authenticate validates creds, exchanges them for a token and signs in.
func (s *SessionStore) Authenticate(ctx context.Context, creds models.Credentials) (models.Session, error) {
	if err := creds.Validate(); err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	session, err := s.auth.SignIn(ctx, creds)
	if err != nil {
		return models.Session{}, fmt.Errorf("sign in: %w", err)
	}
	if err := s.SignIn(session.Token, session.Username, session.Email); err != nil {
		return models.Session{}, err
	}
	s.logger.Printf("Signed in as %s", session.Username)
	return session, nil
}

// Register validates reg, creates the account and signs in.
func (s *SessionStore) Register(ctx context.Context, reg models.Registration) (models.Session, error) {
	if err := reg.Validate(); err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	session, err := s.auth.SignUp(ctx, reg)
	if err != nil {
		return models.Session{}, fmt.Errorf("sign up: %w", err)
	}
	if err := s.SignIn(session.Token, session.Username, session.Email); err != nil {
		return models.Session{}, err
	}
	s.logger.Printf("Registered %s", session.Username)
	return session, nil
}

// Current returns a snapshot of the session.
func (s *SessionStore) Current() models.Session {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.session
}

// Identity returns the signed-in username.
func (s *SessionStore) Identity() (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.session.Username, s.session.SignedIn()
}

// Token returns the held token, or "" when signed out.
func (s *SessionStore) Token() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.session.Token
}

func (s *SessionStore) setSession(session models.Session) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.session = session
}
