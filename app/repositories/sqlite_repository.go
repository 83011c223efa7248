package repositories

import (
	"database/sql"
	"fmt"

	"quill/app/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// SQLiteRepository implements SessionRepository and PostCache on SQLite.
type SQLiteRepository struct {
	conn *sql.DB
}

// NewSQLiteRepository opens the database at path and runs migrations.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	r := &SQLiteRepository{conn: conn}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS client_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feed_snapshot (
			position INTEGER PRIMARY KEY,
			data TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the persisted identity fields.
func (r *SQLiteRepository) Load() (models.Session, error) {
	rows, err := r.conn.Query(
		"SELECT key, value FROM client_state WHERE key IN (?, ?, ?)",
		TokenKey, UsernameKey, EmailKey,
	)
	if err != nil {
		return models.Session{}, err
	}
	defer rows.Close()

	fields := make(map[string]string, len(sessionKeys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Session{}, err
		}
		fields[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.Session{}, err
	}
	return sessionFromFields(fields), nil
}

// Save writes all identity fields in a single transaction.
func (r *SQLiteRepository) Save(session models.Session) error {
	tx, err := r.conn.Begin()
	if err != nil {
		return err
	}
	for key, value := range sessionFields(session) {
		if _, err := tx.Exec(
			"INSERT INTO client_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Clear removes all identity fields.
func (r *SQLiteRepository) Clear() error {
	_, err := r.conn.Exec(
		"DELETE FROM client_state WHERE key IN (?, ?, ?)",
		TokenKey, UsernameKey, EmailKey,
	)
	return err
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.conn.Close()
}

// Replace swaps the saved feed for posts in one transaction.
func (r *SQLiteRepository) Replace(posts []*models.Post) error {
	tx, err := r.conn.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM feed_snapshot"); err != nil {
		tx.Rollback()
		return err
	}
	for i, post := range posts {
		data, err := marshalEntity(post.Summary())
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO feed_snapshot (position, data) VALUES (?, ?)", i, string(data)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// List returns the saved feed in its original order.
func (r *SQLiteRepository) List() ([]*models.Post, error) {
	rows, err := r.conn.Query("SELECT data FROM feed_snapshot ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var post models.Post
		if err := unmarshalEntity([]byte(data), &post); err != nil {
			return nil, err
		}
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}
