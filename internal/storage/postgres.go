package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/deusflow/autopost/internal/logger"
	_ "github.com/lib/pq"
)

// PostgresStore keeps the same state as FileStore in PostgreSQL. Pending
// writes are flushed in one transaction by Save.
type PostgresStore struct {
	db  *sql.DB
	cap int

	mu      sync.Mutex
	pending []string
	since   map[string]string
	topics  []Topic
}

// NewPostgresStore connects and initializes the schema.
func NewPostgresStore(ctx context.Context, connectionString string, capacity int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if capacity <= 0 {
		capacity = DefaultCap
	}
	ps := &PostgresStore{db: db, cap: capacity, since: make(map[string]string)}
	if err := ps.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("postgres state store connected")
	return ps, nil
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS posted_ids (
		id TEXT PRIMARY KEY,
		seen_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_posted_ids_seen_at ON posted_ids(seen_at);

	CREATE TABLE IF NOT EXISTS since_ids (
		account TEXT PRIMARY KEY,
		since_id TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS recent_topics (
		id SERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		posted_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_recent_topics_posted_at ON recent_topics(posted_at);
	`
	if _, err := ps.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Seen(id string) bool {
	ps.mu.Lock()
	for _, p := range ps.pending {
		if p == id {
			ps.mu.Unlock()
			return true
		}
	}
	ps.mu.Unlock()

	var exists bool
	err := ps.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM posted_ids WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		logger.Warn("error checking posted id", "id", id, "error", err)
		return false
	}
	return exists
}

func (ps *PostgresStore) MarkSeen(id string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.pending = append(ps.pending, id)
	return nil
}

func (ps *PostgresStore) SinceID(account string) string {
	ps.mu.Lock()
	if v, ok := ps.since[account]; ok {
		ps.mu.Unlock()
		return v
	}
	ps.mu.Unlock()

	var id string
	err := ps.db.QueryRow(`SELECT since_id FROM since_ids WHERE account = $1`, account).Scan(&id)
	if err != nil && err != sql.ErrNoRows {
		logger.Warn("error reading since_id", "account", account, "error", err)
	}
	return id
}

func (ps *PostgresStore) SetSinceID(account, id string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.since[account] = id
	return nil
}

func (ps *PostgresStore) RecentTopics(window time.Duration) []Topic {
	cutoff := time.Now().Add(-window)
	rows, err := ps.db.Query(`SELECT title, posted_at FROM recent_topics WHERE posted_at > $1 ORDER BY posted_at`, cutoff)
	if err != nil {
		logger.Warn("error reading recent topics", "error", err)
		return nil
	}
	defer rows.Close()

	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.Title, &t.At); err != nil {
			logger.Warn("error scanning topic row", "error", err)
			continue
		}
		out = append(out, t)
	}

	ps.mu.Lock()
	out = append(out, ps.topics...)
	ps.mu.Unlock()
	return out
}

func (ps *PostgresStore) AddTopic(title string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.topics = append(ps.topics, Topic{Title: title, At: time.Now()})
	return nil
}

// Save flushes buffered writes and prunes old rows.
func (ps *PostgresStore) Save() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	tx, err := ps.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ps.pending {
		if _, err := tx.Exec(`
			INSERT INTO posted_ids (id, seen_at) VALUES ($1, NOW())
			ON CONFLICT (id) DO UPDATE SET seen_at = NOW()`, id); err != nil {
			return fmt.Errorf("failed to mark as seen: %w", err)
		}
	}
	for account, id := range ps.since {
		if _, err := tx.Exec(`
			INSERT INTO since_ids (account, since_id, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (account) DO UPDATE SET since_id = EXCLUDED.since_id, updated_at = NOW()`, account, id); err != nil {
			return fmt.Errorf("failed to store since_id: %w", err)
		}
	}
	for _, t := range ps.topics {
		if _, err := tx.Exec(`INSERT INTO recent_topics (title, posted_at) VALUES ($1, $2)`, t.Title, t.At); err != nil {
			return fmt.Errorf("failed to store topic: %w", err)
		}
	}

	if _, err := tx.Exec(`
		DELETE FROM posted_ids WHERE id NOT IN (
			SELECT id FROM posted_ids ORDER BY seen_at DESC LIMIT $1
		)`, ps.cap); err != nil {
		return fmt.Errorf("failed to cap posted ids: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM recent_topics WHERE posted_at < $1`, time.Now().Add(-topicRetention)); err != nil {
		return fmt.Errorf("failed to prune topics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	ps.pending, ps.topics = nil, nil
	return nil
}

// Close closes the database connection
func (ps *PostgresStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
