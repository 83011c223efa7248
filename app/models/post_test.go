package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPostValidation(t *testing.T) {
	tests := []struct {
		name    string
		post    NewPost
		wantErr bool
	}{
		{
			name:    "valid post",
			post:    NewPost{Title: "Valid Title", Body: "Some body text"},
			wantErr: false,
		},
		{
			name:    "empty title",
			post:    NewPost{Title: "", Body: "x"},
			wantErr: true,
		},
		{
			name:    "empty body",
			post:    NewPost{Title: "x", Body: ""},
			wantErr: true,
		},
		{
			name:    "whitespace title",
			post:    NewPost{Title: "   ", Body: "x"},
			wantErr: true,
		},
		{
			name:    "long title",
			post:    NewPost{Title: strings.Repeat("a", 1000), Body: "x"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.post.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewPostValidateTrims(t *testing.T) {
	post := NewPost{Title: "  Hello  ", Body: "\tWorld\n"}
	assert.NoError(t, post.Validate())
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "World", post.Body)
}

func TestPostLikedBy(t *testing.T) {
	post := &Post{
		ID:    "p1",
		Likes: []Like{{ID: "l1", PostID: "p1", Username: "alice"}},
	}

	assert.True(t, post.LikedBy("alice"))
	assert.False(t, post.LikedBy("bob"))
	assert.False(t, post.LikedBy(""))
}

func TestPostCommentManagement(t *testing.T) {
	post := &Post{ID: "p1", Title: "Test Post", Body: "Test Content", CommentCount: 2}

	t.Run("add comment", func(t *testing.T) {
		comment := &Comment{ID: "c1", AuthorUsername: "alice", Text: "hi"}

		err := post.AddComment(comment)
		assert.NoError(t, err)
		assert.Len(t, post.Comments, 1)
		assert.Equal(t, 3, post.CommentCount)
		assert.Equal(t, "p1", comment.PostID)
	})

	t.Run("add nil comment", func(t *testing.T) {
		err := post.AddComment(nil)
		assert.Error(t, err)
		assert.Equal(t, 3, post.CommentCount)
	})
}

func TestPostSummaryAndClone(t *testing.T) {
	post := &Post{
		ID:           "p1",
		Title:        "Title",
		LikeCount:    1,
		CommentCount: 1,
		Likes:        []Like{{ID: "l1", PostID: "p1", Username: "alice"}},
		Comments:     []*Comment{{ID: "c1", PostID: "p1", Text: "hi"}},
	}

	summary := post.Summary()
	assert.Nil(t, summary.Likes)
	assert.Nil(t, summary.Comments)
	assert.Equal(t, 1, summary.LikeCount)
	assert.Equal(t, 1, summary.CommentCount)
	assert.Len(t, post.Comments, 1)

	clone := post.Clone()
	clone.Comments[0].Text = "changed"
	clone.Likes[0].Username = "bob"
	assert.Equal(t, "hi", post.Comments[0].Text)
	assert.Equal(t, "alice", post.Likes[0].Username)
}

func TestSessionSignedIn(t *testing.T) {
	assert.False(t, Session{}.SignedIn())
	assert.False(t, Session{Username: "alice", Email: "a@example.com"}.SignedIn())
	assert.True(t, Session{Username: "alice", Email: "a@example.com", Token: "t"}.SignedIn())
}
