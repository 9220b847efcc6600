package storage

import (
	"time"
)

// DefaultCap is how many posted identifiers are remembered.
const DefaultCap = 1000

// Topic is a recently posted headline, kept for near-duplicate checks.
type Topic struct {
	Title string    `json:"title"`
	At    time.Time `json:"at"`
}

// Store remembers what has been posted across runs.
//
// Writes are buffered until Save so a dry run can simply skip it.
type Store interface {
	Seen(id string) bool
	MarkSeen(id string) error
	SinceID(account string) string
	SetSinceID(account, id string) error
	RecentTopics(window time.Duration) []Topic
	AddTopic(title string) error
	Save() error
	Close() error
}

// topicRetention bounds how long topics are kept at all; the brake window is
// always shorter.
const topicRetention = 24 * time.Hour
