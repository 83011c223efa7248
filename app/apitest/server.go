// Package apitest provides an in-memory stand-in for the blog backend, used
// by tests that exercise the client against real HTTP round trips.
package apitest

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Route templates, as used by FailNext and Calls.
const (
	RouteVerify   = "/verify-token"
	RouteSignIn   = "/signin"
	RouteSignUp   = "/signup"
	RouteBlogs    = "/api/blogs"
	RouteBlog     = "/api/blogs/{id}"
	RouteLikes    = "/api/blogs/{id}/likes"
	RouteComments = "/api/blogs/{id}/comments"
)

type user struct {
	Username     string
	Email        string
	PasswordHash []byte
}

type blog struct {
	ID        string
	Title     string
	Desc      string
	Username  string
	CreatedAt time.Time
	Likes     []like
	Comments  []comment
}

type like struct {
	ID       string
	Username string
}

type comment struct {
	ID        string
	Content   string
	Username  string
	CreatedAt time.Time
}

// Server is a fake backend listening on a local port.
type Server struct {
	*httptest.Server

	mutex    sync.Mutex
	users    map[string]*user
	blogs    map[string]*blog
	order    []string
	nextID   int
	secret   []byte
	failures map[string][]int
	calls    map[string]int
	hook     func(*http.Request)
	logger   *log.Logger
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		users:    make(map[string]*user),
		blogs:    make(map[string]*blog),
		secret:   []byte("apitest-signing-secret"),
		failures: make(map[string][]int),
		calls:    make(map[string]int),
		logger:   log.New(io.Discard, "", 0),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// SetLogger routes request logs to l.
func (s *Server) SetLogger(l *log.Logger) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.logger = l
}

// SetHook installs fn to run before every matched request is handled. It
// runs outside the server lock, so it may block to hold a response back.
func (s *Server) SetHook(fn func(*http.Request)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.hook = fn
}

// FailNext makes the next request to method+route answer with status.
// Repeated calls queue further failures.
func (s *Server) FailNext(method, route string, status int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := method + " " + route
	s.failures[key] = append(s.failures[key], status)
}

// Calls returns how many requests method+route has received.
func (s *Server) Calls(method, route string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.calls[method+" "+route]
}

// TotalCalls returns the number of requests received on any route.
func (s *Server) TotalCalls() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// LikeCount returns the server-side number of likes on a post.
func (s *Server) LikeCount(id string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if b, ok := s.blogs[id]; ok {
		return len(b.Likes)
	}
	return 0
}

// HasLike reports whether username likes the post on the server.
func (s *Server) HasLike(id, username string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, ok := s.blogs[id]
	return ok && b.likedBy(username)
}

// CommentCount returns the server-side number of comments on a post.
func (s *Server) CommentCount(id string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if b, ok := s.blogs[id]; ok {
		return len(b.Comments)
	}
	return 0
}

// PostIDs returns the ids of all posts, newest first.
func (s *Server) PostIDs() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.orderedIDs()
}

func (s *Server) orderedIDs() []string {
	ids := append([]string(nil), s.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		return s.blogs[ids[i]].CreatedAt.After(s.blogs[ids[j]].CreatedAt)
	})
	return ids
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.requestLogger)
	router.Use(recoverer)
	router.Use(contentTypeJSON)
	router.Use(s.faultInjector)

	router.HandleFunc(RouteVerify, s.verifyToken).Methods(http.MethodPost)
	router.HandleFunc(RouteSignIn, s.signIn).Methods(http.MethodPost)
	router.HandleFunc(RouteSignUp, s.signUp).Methods(http.MethodPost)

	router.HandleFunc(RouteBlogs, s.indexBlogs).Methods(http.MethodGet)
	router.HandleFunc(RouteBlogs, s.createBlog).Methods(http.MethodPost)
	router.HandleFunc(RouteBlog, s.showBlog).Methods(http.MethodGet)
	router.HandleFunc(RouteBlog, s.deleteBlog).Methods(http.MethodDelete)
	router.HandleFunc(RouteLikes, s.like).Methods(http.MethodPost)
	router.HandleFunc(RouteLikes, s.unlike).Methods(http.MethodDelete)
	router.HandleFunc(RouteComments, s.createComment).Methods(http.MethodPost)

	return router
}
