package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Session is the locally held identity of the signed-in user.
type Session struct {
	Username string
	Email    string
	Token    string
}

// SignedIn reports whether the session holds a token.
func (s Session) SignedIn() bool {
	return s.Token != ""
}

// Post is a blog post as seen by the client. Likes and Comments are only
// populated once the post's detail has been fetched.
type Post struct {
	ID             string
	Title          string
	Body           string
	AuthorUsername string
	CreatedAt      time.Time
	LikeCount      int
	CommentCount   int
	Likes          []Like
	Comments       []*Comment
}

// Comment is a comment on a blog post.
type Comment struct {
	ID             string
	PostID         string
	AuthorUsername string
	Text           string
	CreatedAt      time.Time
}

// Like relates a user to a post they liked.
type Like struct {
	ID       string
	PostID   string
	Username string
}

// NewPost holds the user input for creating a post.
type NewPost struct {
	Title string `validate:"required"`
	Body  string `validate:"required"`
}

// NewComment holds the user input for commenting on a post.
type NewComment struct {
	Text string `validate:"required"`
}

// Credentials are exchanged for a token on sign-in.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Registration is the sign-up form.
type Registration struct {
	Username string `validate:"required,min=3,max=50"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}
