package models

import (
	"errors"
	"strings"
)

// Validate trims the input and checks it meets all validation requirements.
func (p *NewPost) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Body = strings.TrimSpace(p.Body)
	return validate.Struct(p)
}

// LikedBy reports whether username appears in the post's loaded likes.
func (p *Post) LikedBy(username string) bool {
	if username == "" {
		return false
	}
	for _, like := range p.Likes {
		if like.Username == username {
			return true
		}
	}
	return false
}

// AddComment appends a comment to the post and bumps the comment count.
func (p *Post) AddComment(comment *Comment) error {
	if comment == nil {
		return errors.New("comment cannot be nil")
	}

	comment.PostID = p.ID
	p.Comments = append(p.Comments, comment)
	p.CommentCount++
	return nil
}

// Summary returns a copy of the post without its lazily loaded likes and comments.
func (p *Post) Summary() *Post {
	s := *p
	s.Likes = nil
	s.Comments = nil
	return &s
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	c := *p
	if p.Likes != nil {
		c.Likes = append([]Like(nil), p.Likes...)
	}
	if p.Comments != nil {
		c.Comments = make([]*Comment, len(p.Comments))
		for i, comment := range p.Comments {
			cc := *comment
			c.Comments[i] = &cc
		}
	}
	return &c
}
