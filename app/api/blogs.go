package api

import (
	"context"
	"net/http"
	"net/url"

	"quill/app/models"
)

func blogPath(id string) string {
	return "/api/blogs/" + url.PathEscape(id)
}

// ListBlogs fetches every post summary in backend order.
func (c *Client) ListBlogs(ctx context.Context) ([]*models.Post, error) {
	var blogs []blogDTO
	if err := c.do(ctx, http.MethodGet, "/api/blogs", "", nil, &blogs); err != nil {
		return nil, err
	}
	posts := make([]*models.Post, 0, len(blogs))
	for _, b := range blogs {
		posts = append(posts, b.toModel())
	}
	return posts, nil
}

// GetBlog fetches the full detail of a post, including likes and comments.
func (c *Client) GetBlog(ctx context.Context, id string) (*models.Post, error) {
	var blog blogDTO
	if err := c.do(ctx, http.MethodGet, blogPath(id), "", nil, &blog); err != nil {
		return nil, err
	}
	post := blog.toModel()
	if post.Likes == nil {
		post.Likes = []models.Like{}
	}
	if post.Comments == nil {
		post.Comments = []*models.Comment{}
	}
	return post, nil
}

// CreateBlog creates a post authored by username.
func (c *Client) CreateBlog(ctx context.Context, title, desc, username string) (*models.Post, error) {
	body := map[string]string{"title": title, "desc": desc, "username": username}
	var blog blogDTO
	if err := c.do(ctx, http.MethodPost, "/api/blogs", "", body, &blog); err != nil {
		return nil, err
	}
	return blog.toModel(), nil
}

// DeleteBlog removes a post.
func (c *Client) DeleteBlog(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, blogPath(id), "", nil, nil)
}

// Like records that username likes the post.
func (c *Client) Like(ctx context.Context, id, username string) error {
	return c.do(ctx, http.MethodPost, blogPath(id)+"/likes", "", map[string]string{"username": username}, nil)
}

// Unlike removes username's like from the post.
func (c *Client) Unlike(ctx context.Context, id, username string) error {
	return c.do(ctx, http.MethodDelete, blogPath(id)+"/likes", "", map[string]string{"username": username}, nil)
}

// AddComment posts a comment and returns it as stored by the backend.
func (c *Client) AddComment(ctx context.Context, id, text, username string) (*models.Comment, error) {
	body := map[string]string{"text": text, "username": username}
	var comment commentDTO
	if err := c.do(ctx, http.MethodPost, blogPath(id)+"/comments", "", body, &comment); err != nil {
		return nil, err
	}
	out := comment.toModel()
	if out.PostID == "" {
		out.PostID = id
	}
	return out, nil
}
