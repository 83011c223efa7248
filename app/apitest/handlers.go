package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = time.Hour

// AddUser registers an account and returns a fresh token for it.
func (s *Server) AddUser(username, email, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mutex.Lock()
	s.users[strings.ToLower(email)] = &user{Username: username, Email: email, PasswordHash: hash}
	s.mutex.Unlock()
	return s.IssueToken(username, tokenTTL)
}

// IssueToken signs a token for username valid for ttl. A negative ttl
// yields an already expired token.
func (s *Server) IssueToken(username string, ttl time.Duration) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// SeedPost stores a post authored by username and returns its id.
func (s *Server) SeedPost(username, title, desc string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.insertBlog(username, title, desc).ID
}

// SeedLike records a like without going through HTTP.
func (s *Server) SeedLike(id, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if b, ok := s.blogs[id]; ok && !b.likedBy(username) {
		b.Likes = append(b.Likes, like{ID: s.newID(), Username: username})
	}
}

func (s *Server) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func (s *Server) insertBlog(username, title, desc string) *blog {
	b := &blog{
		ID:       s.newID(),
		Title:    title,
		Desc:     desc,
		Username: username,
		// Strictly increasing so newest-first ordering is stable
		CreatedAt: time.Now().UTC().Add(time.Duration(s.nextID) * time.Millisecond),
	}
	s.blogs[b.ID] = b
	s.order = append(s.order, b.ID)
	return b
}

func (b *blog) likedBy(username string) bool {
	for _, l := range b.Likes {
		if l.Username == username {
			return true
		}
	}
	return false
}

func (b *blog) summary() map[string]interface{} {
	return map[string]interface{}{
		"id":        b.ID,
		"title":     b.Title,
		"desc":      b.Desc,
		"username":  b.Username,
		"createdAt": b.CreatedAt,
		"user":      map[string]string{"username": b.Username},
		"_count": map[string]int{
			"likes":    len(b.Likes),
			"comments": len(b.Comments),
		},
	}
}

func (b *blog) detail() map[string]interface{} {
	out := b.summary()
	likes := make([]map[string]string, 0, len(b.Likes))
	for _, l := range b.Likes {
		likes = append(likes, map[string]string{"id": l.ID, "blogId": b.ID, "username": l.Username})
	}
	comments := make([]map[string]interface{}, 0, len(b.Comments))
	for _, c := range b.Comments {
		comments = append(comments, c.json(b.ID))
	}
	out["likes"] = likes
	out["comments"] = comments
	return out
}

func (c comment) json(blogID string) map[string]interface{} {
	return map[string]interface{}{
		"id":        c.ID,
		"content":   c.Content,
		"username":  c.Username,
		"blogId":    blogID,
		"createdAt": c.CreatedAt,
	}
}

// bearerUser returns the subject of a valid bearer token on the request.
func (s *Server) bearerUser(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errors.New("authorization header required")
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errors.New("token is not valid")
	}
	return claims.Subject, nil
}

// Auth handlers

func (s *Server) verifyToken(w http.ResponseWriter, r *http.Request) {
	if _, err := s.bearerUser(r); err != nil {
		sendError(w, "Invalid/Expired Authorization Token", http.StatusUnauthorized)
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mutex.Lock()
	u, ok := s.users[strings.ToLower(body.Email)]
	s.mutex.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(body.Password)) != nil {
		sendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{
		"token":    s.IssueToken(u.Username, tokenTTL),
		"username": u.Username,
		"email":    u.Email,
	})
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Username == "" || body.Email == "" || body.Password == "" {
		sendError(w, "username, email and password are required", http.StatusBadRequest)
		return
	}

	s.mutex.Lock()
	_, exists := s.users[strings.ToLower(body.Email)]
	s.mutex.Unlock()
	if exists {
		sendError(w, "User Already Exists", http.StatusConflict)
		return
	}
	token := s.AddUser(body.Username, body.Email, body.Password)
	sendJSON(w, http.StatusCreated, map[string]string{
		"token":    token,
		"username": body.Username,
		"email":    body.Email,
	})
}

// Blog handlers

func (s *Server) indexBlogs(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	out := make([]map[string]interface{}, 0, len(s.order))
	for _, id := range s.orderedIDs() {
		out = append(out, s.blogs[id].summary())
	}
	s.mutex.Unlock()
	sendJSON(w, http.StatusOK, out)
}

func (s *Server) showBlog(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mutex.Lock()
	b, ok := s.blogs[id]
	var out map[string]interface{}
	if ok {
		out = b.detail()
	}
	s.mutex.Unlock()
	if !ok {
		sendError(w, "Blog not found", http.StatusNotFound)
		return
	}
	sendJSON(w, http.StatusOK, out)
}

func (s *Server) createBlog(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title    string `json:"title"`
		Desc     string `json:"desc"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Title == "" || body.Desc == "" || body.Username == "" {
		sendError(w, "title, desc and username are required", http.StatusBadRequest)
		return
	}

	s.mutex.Lock()
	out := s.insertBlog(body.Username, body.Title, body.Desc).summary()
	s.mutex.Unlock()
	sendJSON(w, http.StatusCreated, out)
}

func (s *Server) deleteBlog(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	username, err := s.bearerUser(r)
	if err != nil {
		sendError(w, "Authorization Header Required", http.StatusUnauthorized)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		sendError(w, "Blog not found", http.StatusNotFound)
		return
	}
	if b.Username != username {
		sendError(w, "Only the author can delete this blog", http.StatusForbidden)
		return
	}
	delete(s.blogs, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeUsername(r *http.Request) (string, error) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Username == "" {
		return "", errors.New("username is required")
	}
	return body.Username, nil
}

func (s *Server) like(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	username, err := decodeUsername(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		sendError(w, "Blog not found", http.StatusNotFound)
		return
	}
	if b.likedBy(username) {
		sendError(w, "Already liked", http.StatusConflict)
		return
	}
	l := like{ID: s.newID(), Username: username}
	b.Likes = append(b.Likes, l)
	sendJSON(w, http.StatusCreated, map[string]string{"id": l.ID, "blogId": id, "username": username})
}

func (s *Server) unlike(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	username, err := decodeUsername(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		sendError(w, "Blog not found", http.StatusNotFound)
		return
	}
	for i, l := range b.Likes {
		if l.Username == username {
			b.Likes = append(b.Likes[:i], b.Likes[i+1:]...)
			sendJSON(w, http.StatusOK, map[string]string{"message": "Unliked"})
			return
		}
	}
	sendError(w, "Like not found", http.StatusNotFound)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Text     string `json:"text"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Text) == "" || body.Username == "" {
		sendError(w, "text and username are required", http.StatusBadRequest)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		sendError(w, "Blog not found", http.StatusNotFound)
		return
	}
	c := comment{ID: s.newID(), Content: body.Text, Username: body.Username, CreatedAt: time.Now().UTC()}
	b.Comments = append(b.Comments, c)
	sendJSON(w, http.StatusCreated, c.json(id))
}

// Helper methods for consistent response handling

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, message string, status int) {
	sendJSON(w, status, map[string]string{"message": message})
}
