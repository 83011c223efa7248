package api

import (
	"time"

	"quill/app/models"
)

// Wire shapes of the backend's JSON documents.

type blogDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Desc      string    `json:"desc"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	User      *struct {
		Username string `json:"username"`
	} `json:"user,omitempty"`
	Count *struct {
		Likes    int `json:"likes"`
		Comments int `json:"comments"`
	} `json:"_count,omitempty"`
	Likes    []likeDTO    `json:"likes,omitempty"`
	Comments []commentDTO `json:"comments,omitempty"`
}

type likeDTO struct {
	ID       string `json:"id"`
	BlogID   string `json:"blogId"`
	Username string `json:"username"`
}

type commentDTO struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Text      string    `json:"text,omitempty"`
	Username  string    `json:"username"`
	BlogID    string    `json:"blogId"`
	CreatedAt time.Time `json:"createdAt"`
}

type sessionDTO struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (b blogDTO) toModel() *models.Post {
	post := &models.Post{
		ID:             b.ID,
		Title:          b.Title,
		Body:           b.Desc,
		AuthorUsername: b.Username,
		CreatedAt:      b.CreatedAt,
	}
	if post.AuthorUsername == "" && b.User != nil {
		post.AuthorUsername = b.User.Username
	}
	if b.Count != nil {
		post.LikeCount = b.Count.Likes
		post.CommentCount = b.Count.Comments
	}
	if b.Likes != nil {
		post.Likes = make([]models.Like, 0, len(b.Likes))
		for _, l := range b.Likes {
			post.Likes = append(post.Likes, models.Like{ID: l.ID, PostID: l.BlogID, Username: l.Username})
		}
		if b.Count == nil {
			post.LikeCount = len(post.Likes)
		}
	}
	if b.Comments != nil {
		post.Comments = make([]*models.Comment, 0, len(b.Comments))
		for _, c := range b.Comments {
			post.Comments = append(post.Comments, c.toModel())
		}
		if b.Count == nil {
			post.CommentCount = len(post.Comments)
		}
	}
	return post
}

func (c commentDTO) toModel() *models.Comment {
	text := c.Content
	if text == "" {
		text = c.Text
	}
	return &models.Comment{
		ID:             c.ID,
		PostID:         c.BlogID,
		AuthorUsername: c.Username,
		Text:           text,
		CreatedAt:      c.CreatedAt,
	}
}

func (s sessionDTO) toModel() models.Session {
	return models.Session{Token: s.Token, Username: s.Username, Email: s.Email}
}
