package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"quill/app/api"
	"quill/app/models"
	"quill/app/repositories"
)

// BlogClient is the part of the backend the feed controller talks to.
type BlogClient interface {
	ListBlogs(ctx context.Context) ([]*models.Post, error)
	GetBlog(ctx context.Context, id string) (*models.Post, error)
	CreateBlog(ctx context.Context, title, desc, username string) (*models.Post, error)
	DeleteBlog(ctx context.Context, id string) error
	Like(ctx context.Context, id, username string) error
	Unlike(ctx context.Context, id, username string) error
	AddComment(ctx context.Context, id, text, username string) (*models.Comment, error)
}

// SessionGate is what the feed needs from the session: who is acting, and a
// way to force sign-out when the backend rejects the token.
type SessionGate interface {
	Identity() (username string, ok bool)
	SignOut() error
}

// DetailState is the state of the single post detail view.
type DetailState int

const (
	DetailClosed DetailState = iota
	DetailLoading
	DetailOpen
	// DetailOpenFallback shows the list summary because the detail fetch failed.
	DetailOpenFallback
)

func (s DetailState) String() string {
	switch s {
	case DetailClosed:
		return "closed"
	case DetailLoading:
		return "loading"
	case DetailOpen:
		return "open"
	case DetailOpenFallback:
		return "open (fallback)"
	}
	return fmt.Sprintf("DetailState(%d)", int(s))
}

// Action names a mutating request for the in-flight guard.
type Action string

const (
	ActionCreate  Action = "create"
	ActionDelete  Action = "delete"
	ActionLike    Action = "like"
	ActionComment Action = "comment"
)

type inflightKey struct {
	action Action
	postID string
}

// FeedController keeps the post list and the detail view in step with the
// backend. Network calls run without the lock held; each response is applied
// in one critical section in the order responses arrive.
type FeedController struct {
	client   BlogClient
	session  SessionGate
	cache    repositories.PostCache
	notifier Notifier
	logger   *log.Logger

	mutex      sync.Mutex
	posts      []*models.Post
	likedBy    string
	liked      map[string]bool
	detail     *models.Post
	detailID   string
	state      DetailState
	generation uint64
	inflight   map[inflightKey]bool
}

// NewFeedController creates a controller with an empty feed. cache, notifier
// and logger may be nil.
func NewFeedController(client BlogClient, session SessionGate, cache repositories.PostCache, notifier Notifier, logger *log.Logger) *FeedController {
	if notifier == nil {
		notifier = discard{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &FeedController{
		client:   client,
		session:  session,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		liked:    make(map[string]bool),
		inflight: make(map[inflightKey]bool),
	}
}

// LoadFeed replaces the list with the backend's. If the fetch fails and the
// list is empty, the last saved snapshot is shown instead.
func (c *FeedController) LoadFeed(ctx context.Context) error {
	posts, err := c.client.ListBlogs(ctx)
	if err != nil {
		if c.restoreSnapshot() {
			c.notifier.Notify(Notice{Kind: NoticeStaleFeed, Message: "Showing saved posts; the feed could not be refreshed"})
			return fmt.Errorf("load feed: %w", err)
		}
		return c.fail("load feed", err)
	}

	summaries := make([]*models.Post, len(posts))
	for i, post := range posts {
		summaries[i] = post.Summary()
	}
	c.mutex.Lock()
	c.posts = summaries
	c.mutex.Unlock()

	if c.cache != nil {
		if err := c.cache.Replace(summaries); err != nil {
			c.logger.Printf("Failed to save feed snapshot: %v", err)
		}
	}
	if len(summaries) == 0 {
		c.notifier.Notify(Notice{Kind: NoticeEmptyFeed, Message: "No posts yet"})
	}
	return nil
}

func (c *FeedController) restoreSnapshot() bool {
	if c.cache == nil {
		return false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.posts) > 0 {
		return false
	}
	cached, err := c.cache.List()
	if err != nil {
		c.logger.Printf("Failed to read feed snapshot: %v", err)
		return false
	}
	if len(cached) == 0 {
		return false
	}
	c.posts = cached
	return true
}

// CreatePost publishes a post as the signed-in user and prepends it.
func (c *FeedController) CreatePost(ctx context.Context, title, body string) (*models.Post, error) {
	input := models.NewPost{Title: title, Body: body}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	username, err := c.requireIdentity()
	if err != nil {
		return nil, err
	}
	done, err := c.begin(ActionCreate, "")
	if err != nil {
		return nil, err
	}
	defer done()

	post, err := c.client.CreateBlog(ctx, input.Title, input.Body, username)
	if err != nil {
		return nil, c.fail("create post", err)
	}
	if post.AuthorUsername == "" {
		post.AuthorUsername = username
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}

	c.mutex.Lock()
	c.posts = append([]*models.Post{post.Summary()}, c.posts...)
	c.mutex.Unlock()
	return post.Clone(), nil
}

// DeletePost deletes one of the signed-in user's posts. The post leaves the
// list only once the backend confirms.
func (c *FeedController) DeletePost(ctx context.Context, id string) error {
	username, err := c.requireIdentity()
	if err != nil {
		return err
	}

	c.mutex.Lock()
	post := c.find(id)
	var author string
	if post != nil {
		author = post.AuthorUsername
	}
	c.mutex.Unlock()
	if post == nil {
		return fmt.Errorf("delete post %s: %w", id, ErrPostNotFound)
	}
	// Client-side courtesy check; the backend decides.
	if author != username {
		c.notifier.Notify(Notice{Kind: NoticeError, Message: "Only the author can delete this post"})
		return fmt.Errorf("delete post %s: %w", id, ErrNotAuthor)
	}

	done, err := c.begin(ActionDelete, id)
	if err != nil {
		return err
	}
	defer done()

	if err := c.client.DeleteBlog(ctx, id); err != nil {
		return c.fail("delete post", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	for i, p := range c.posts {
		if p.ID == id {
			c.posts = append(c.posts[:i:i], c.posts[i+1:]...)
			break
		}
	}
	delete(c.liked, id)
	if c.detailID == id {
		c.closeLocked()
	}
	return nil
}

// ToggleLike likes the post if the signed-in user has not, and unlikes it
// otherwise. The cached count moves by one; an open detail view on the post
// is then refetched and its authoritative counts replace the local ones.
func (c *FeedController) ToggleLike(ctx context.Context, id string) error {
	username, err := c.requireIdentity()
	if err != nil {
		return err
	}
	done, err := c.begin(ActionLike, id)
	if err != nil {
		return err
	}
	defer done()

	c.mutex.Lock()
	c.resetLikesLocked(username)
	liked, known := c.liked[id]
	c.mutex.Unlock()

	if !known {
		post, err := c.client.GetBlog(ctx, id)
		if err != nil {
			return c.fail("like post", err)
		}
		liked = post.LikedBy(username)
		c.mutex.Lock()
		c.applyCountsLocked(post)
		c.liked[id] = liked
		c.mutex.Unlock()
	}

	if liked {
		err = c.client.Unlike(ctx, id, username)
	} else {
		err = c.client.Like(ctx, id, username)
	}
	if err != nil {
		return c.fail("like post", err)
	}

	delta := 1
	if liked {
		delta = -1
	}
	c.mutex.Lock()
	if p := c.find(id); p != nil {
		p.LikeCount = max(p.LikeCount+delta, 0)
	}
	c.liked[id] = !liked
	reconcile := c.detailOpenLocked(id)
	if reconcile {
		c.detail.LikeCount = max(c.detail.LikeCount+delta, 0)
	}
	generation := c.generation
	c.mutex.Unlock()

	if !reconcile {
		return nil
	}
	fresh, err := c.client.GetBlog(ctx, id)
	if err != nil {
		c.logger.Printf("Failed to refresh post %s after like: %v", id, err)
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.generation != generation || !c.detailOpenLocked(id) {
		return nil
	}
	c.detail = fresh
	c.state = DetailOpen
	c.liked[id] = fresh.LikedBy(username)
	c.applyCountsLocked(fresh)
	return nil
}

// AddComment comments on the post whose detail view is open. The comment is
// appended to the view and both comment counts go up by one.
func (c *FeedController) AddComment(ctx context.Context, id, text string) (*models.Comment, error) {
	input := models.NewComment{Text: text}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	username, err := c.requireIdentity()
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	open := c.detailOpenLocked(id)
	generation := c.generation
	c.mutex.Unlock()
	if !open {
		return nil, fmt.Errorf("comment on %s: %w", id, ErrDetailNotOpen)
	}

	done, err := c.begin(ActionComment, id)
	if err != nil {
		return nil, err
	}
	defer done()

	comment, err := c.client.AddComment(ctx, id, input.Text, username)
	if err != nil {
		return nil, c.fail("add comment", err)
	}
	if comment.AuthorUsername == "" {
		comment.AuthorUsername = username
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	// The comment exists server-side either way, so the list count follows.
	if p := c.find(id); p != nil {
		p.CommentCount++
	}
	if c.generation != generation || !c.detailOpenLocked(id) {
		return nil, ErrViewChanged
	}
	stored := *comment
	c.detail.AddComment(&stored)
	return comment, nil
}

// OpenDetail shows the full post. If the fetch fails the list summary is
// shown instead, so the view never stays in DetailLoading. A rejected token
// still signs the user out and the error is returned.
func (c *FeedController) OpenDetail(ctx context.Context, id string) error {
	c.mutex.Lock()
	c.generation++
	generation := c.generation
	c.state = DetailLoading
	c.detailID = id
	c.detail = nil
	var summary *models.Post
	if p := c.find(id); p != nil {
		summary = p.Clone()
	}
	c.mutex.Unlock()

	post, err := c.client.GetBlog(ctx, id)

	c.mutex.Lock()
	if c.generation != generation {
		c.mutex.Unlock()
		return ErrViewChanged
	}
	if err != nil {
		if summary == nil {
			c.closeLocked()
			c.mutex.Unlock()
			return c.fail("open post", err)
		}
		c.state = DetailOpenFallback
		c.detail = summary
		c.mutex.Unlock()
		if errors.Is(err, api.ErrUnauthorized) {
			return c.fail("open post", err)
		}
		c.logger.Printf("Showing summary of post %s: %v", id, err)
		c.notifier.Notify(Notice{Kind: NoticeError, Message: "Could not load comments and likes"})
		return nil
	}
	c.state = DetailOpen
	c.detail = post
	c.applyCountsLocked(post)
	if username, ok := c.session.Identity(); ok {
		c.resetLikesLocked(username)
		c.liked[id] = post.LikedBy(username)
	}
	c.mutex.Unlock()
	return nil
}

// CloseDetail closes the detail view. List counts are kept.
func (c *FeedController) CloseDetail() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.closeLocked()
}

// Posts returns a copy of the feed, newest first.
func (c *FeedController) Posts() []*models.Post {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := make([]*models.Post, len(c.posts))
	for i, p := range c.posts {
		out[i] = p.Clone()
	}
	return out
}

// Page returns one page of the feed. page starts at 1; perPage defaults to 10.
func (c *FeedController) Page(page, perPage int) []*models.Post {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	offset := (page - 1) * perPage
	if offset >= len(c.posts) {
		return []*models.Post{}
	}
	end := min(offset+perPage, len(c.posts))
	out := make([]*models.Post, 0, end-offset)
	for _, p := range c.posts[offset:end] {
		out = append(out, p.Clone())
	}
	return out
}

// Detail returns a copy of the post in the detail view and the view state.
func (c *FeedController) Detail() (*models.Post, DetailState) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.detail == nil {
		return nil, c.state
	}
	return c.detail.Clone(), c.state
}

// IsLiked reports whether the signed-in user is known to like the post.
func (c *FeedController) IsLiked(id string) bool {
	username, ok := c.session.Identity()
	if !ok {
		return false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.likedBy == username && c.liked[id]
}

// Busy reports whether action on the post is waiting for the backend.
func (c *FeedController) Busy(action Action, id string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.inflight[inflightKey{action, id}]
}

func (c *FeedController) requireIdentity() (string, error) {
	username, ok := c.session.Identity()
	if !ok {
		c.notifier.Notify(Notice{Kind: NoticeUnauthenticated, Message: "Sign in to continue"})
		return "", ErrUnauthenticated
	}
	return username, nil
}

// begin marks action on id as in flight. The returned func clears it.
func (c *FeedController) begin(action Action, id string) (func(), error) {
	key := inflightKey{action, id}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.inflight[key] {
		return nil, fmt.Errorf("%s %s: %w", action, id, ErrBusy)
	}
	c.inflight[key] = true
	return func() {
		c.mutex.Lock()
		delete(c.inflight, key)
		c.mutex.Unlock()
	}, nil
}

// fail reports err to the user and wraps it. A rejected token signs the
// user out.
func (c *FeedController) fail(op string, err error) error {
	c.logger.Printf("Failed to %s: %v", op, err)
	if errors.Is(err, api.ErrUnauthorized) {
		if signOutErr := c.session.SignOut(); signOutErr != nil {
			c.logger.Printf("Failed to sign out: %v", signOutErr)
		}
		c.notifier.Notify(Notice{Kind: NoticeUnauthenticated, Message: "Your session has expired, sign in again"})
	} else {
		c.notifier.Notify(Notice{Kind: NoticeError, Message: fmt.Sprintf("Could not %s: %v", op, err)})
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *FeedController) find(id string) *models.Post {
	for _, p := range c.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (c *FeedController) detailOpenLocked(id string) bool {
	return c.detailID == id && c.detail != nil &&
		(c.state == DetailOpen || c.state == DetailOpenFallback)
}

func (c *FeedController) closeLocked() {
	c.generation++
	c.state = DetailClosed
	c.detail = nil
	c.detailID = ""
}

// applyCountsLocked copies authoritative counts onto the list summary.
func (c *FeedController) applyCountsLocked(post *models.Post) {
	if p := c.find(post.ID); p != nil {
		p.LikeCount = post.LikeCount
		p.CommentCount = post.CommentCount
	}
}

// resetLikesLocked drops remembered like state when the user changes.
func (c *FeedController) resetLikesLocked(username string) {
	if c.likedBy != username {
		c.likedBy = username
		c.liked = make(map[string]bool)
	}
}
