package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a saved post does not exist for the caller.
var ErrNotFound = errors.New("not found")

// Fixed-width so that lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// SavedPost is one server-side saved record. PostData is the client's item
// JSON, stored verbatim.
type SavedPost struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	PostID    string          `json:"postId"`
	PostData  json.RawMessage `json:"postData"`
	CreatedAt time.Time       `json:"createdAt"`
}

type SavedPostInput struct {
	UserID   string
	PostID   string
	PostData json.RawMessage
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.db.PingContext(ctx)
}

// CreateSavedPost stores a post for a user. Saving the same post twice
// returns the original record.
func (s *Store) CreateSavedPost(ctx context.Context, in SavedPostInput) (SavedPost, error) {
	if s == nil || s.db == nil {
		return SavedPost{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(in.UserID) == "" {
		return SavedPost{}, errors.New("user_id is required")
	}
	if strings.TrimSpace(in.PostID) == "" {
		return SavedPost{}, errors.New("post_id is required")
	}
	if len(in.PostData) == 0 || !json.Valid(in.PostData) {
		return SavedPost{}, errors.New("post_data must be valid JSON")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_posts (id, user_id, post_id, post_data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, post_id) DO NOTHING
	`,
		uuid.NewString(),
		in.UserID,
		in.PostID,
		string(in.PostData),
		formatTime(s.now()),
	)
	if err != nil {
		return SavedPost{}, fmt.Errorf("insert saved post: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, post_id, post_data, created_at
		FROM saved_posts
		WHERE user_id = ? AND post_id = ?
	`, in.UserID, in.PostID)

	return scanSavedPost(row)
}

// ListSavedPosts returns a user's saved posts, newest first.
func (s *Store) ListSavedPosts(ctx context.Context, userID string) ([]SavedPost, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, post_id, post_data, created_at
		FROM saved_posts
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved posts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	posts := []SavedPost{}
	for rows.Next() {
		post, err := scanSavedPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved posts: %w", err)
	}

	return posts, nil
}

// DeleteSavedPost removes one of the user's records by its record id.
func (s *Store) DeleteSavedPost(ctx context.Context, userID, id string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM saved_posts WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete saved post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete saved post: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSavedPosts returns the number of saved records across all users.
func (s *Store) CountSavedPosts(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM saved_posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count saved posts: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSavedPost(scanner rowScanner) (SavedPost, error) {
	var (
		post      SavedPost
		data      string
		createdAt string
	)
	if err := scanner.Scan(&post.ID, &post.UserID, &post.PostID, &data, &createdAt); err != nil {
		return SavedPost{}, fmt.Errorf("scan saved post: %w", err)
	}
	post.PostData = json.RawMessage(data)

	var err error
	post.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return SavedPost{}, fmt.Errorf("parse created_at: %w", err)
	}
	return post, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
