package repositories

import "quill/app/models"

// SessionRepository persists the signed-in identity between runs.
type SessionRepository interface {
	// Load returns the persisted fields. Missing fields are returned empty.
	Load() (models.Session, error)
	Save(session models.Session) error
	Clear() error
}

// PostCache keeps the last successfully loaded feed.
type PostCache interface {
	Replace(posts []*models.Post) error
	List() ([]*models.Post, error)
}
