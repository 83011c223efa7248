package mock

import (
	"sync"

	"quill/app/models"
)

// SessionRepository is an in-memory SessionRepository. Setting Err makes
// every call fail with it.
type SessionRepository struct {
	fields map[string]string
	Err    error
	mutex  sync.RWMutex
}

// PostCache is an in-memory PostCache.
type PostCache struct {
	posts []*models.Post
	Err   error
	mutex sync.RWMutex
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{fields: make(map[string]string)}
}

func NewPostCache() *PostCache {
	return &PostCache{}
}

// Set stores a single raw field, for seeding partial state in tests.
func (m *SessionRepository) Set(key, value string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fields[key] = value
}

// Fields returns a copy of the stored raw fields.
func (m *SessionRepository) Fields() map[string]string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// SessionRepository implementation.
func (m *SessionRepository) Load() (models.Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.Err != nil {
		return models.Session{}, m.Err
	}
	return models.Session{
		Token:    m.fields["authToken"],
		Username: m.fields["username"],
		Email:    m.fields["email"],
	}, nil
}

func (m *SessionRepository) Save(session models.Session) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.fields["authToken"] = session.Token
	m.fields["username"] = session.Username
	m.fields["email"] = session.Email
	return nil
}

func (m *SessionRepository) Clear() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.fields = make(map[string]string)
	return nil
}

// PostCache implementation.
func (m *PostCache) Replace(posts []*models.Post) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.posts = make([]*models.Post, len(posts))
	for i, post := range posts {
		m.posts[i] = post.Summary()
	}
	return nil
}

func (m *PostCache) List() ([]*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*models.Post, len(m.posts))
	for i, post := range m.posts {
		out[i] = post.Clone()
	}
	return out, nil
}
