// Package services holds the client-side business logic: the session gate
// and the feed controller that applies optimistic updates.
package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("sign in required")
	ErrNotSignedIn     = errors.New("not signed in")
	ErrTokenRejected   = errors.New("session token rejected")
	ErrBusy            = errors.New("request already in progress")
	ErrNotAuthor       = errors.New("only the author can do that")
	ErrPostNotFound    = errors.New("post not in feed")
	ErrDetailNotOpen   = errors.New("post detail is not open")
	ErrViewChanged     = errors.New("view changed before the response arrived")
)

// NoticeKind classifies a user-facing notice.
type NoticeKind int

const (
	// NoticeEmptyFeed is informational: the feed loaded with zero posts.
	NoticeEmptyFeed NoticeKind = iota
	// NoticeStaleFeed means the feed shown is the last saved snapshot.
	NoticeStaleFeed
	// NoticeUnauthenticated means the action needs a signed-in user.
	NoticeUnauthenticated
	// NoticeError is a transient failure message.
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeEmptyFeed:
		return "empty"
	case NoticeStaleFeed:
		return "stale"
	case NoticeUnauthenticated:
		return "unauthenticated"
	case NoticeError:
		return "error"
	}
	return fmt.Sprintf("NoticeKind(%d)", int(k))
}

// Notice is a message for the user. It never carries state.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Notifier receives notices produced by the services.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Redirector is the surrounding UI's ability to send the user to sign-in.
type Redirector interface {
	RedirectToSignIn()
}

// RedirectorFunc adapts a function to Redirector.
type RedirectorFunc func()

func (f RedirectorFunc) RedirectToSignIn() { f() }

type discard struct{}

func (discard) Notify(Notice)     {}
func (discard) RedirectToSignIn() {}
