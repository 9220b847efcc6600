package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrQueueEmpty is returned when the queue file has no postable line.
var ErrQueueEmpty = errors.New("queue is empty")

// Queue is a plain text file of prepared posts, one per line.
type Queue struct {
	Path string
	// SentPath receives posted lines; defaults to tweets_sent.txt next to Path.
	SentPath string
}

func NewQueue(path string) Queue {
	return Queue{Path: path, SentPath: filepath.Join(filepath.Dir(path), "tweets_sent.txt")}
}

// Next returns the first non-empty line and the lines after it.
func (q Queue) Next() (string, []string, error) {
	f, err := os.Open(q.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil, fmt.Errorf("queue file %s: %w", q.Path, ErrQueueEmpty)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to open queue: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return "", nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if len(lines) == 0 {
		return "", nil, ErrQueueEmpty
	}
	return lines[0], lines[1:], nil
}

// Commit rewrites the queue with rest and archives sent.
func (q Queue) Commit(rest []string, sent string) error {
	var b strings.Builder
	for _, l := range rest {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(q.Path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite queue: %w", err)
	}

	sentPath := q.SentPath
	if sentPath == "" {
		sentPath = NewQueue(q.Path).SentPath
	}
	af, err := os.OpenFile(sentPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open sent archive: %w", err)
	}
	defer af.Close()
	if _, err := af.WriteString(sent + "\n"); err != nil {
		return fmt.Errorf("failed to archive sent line: %w", err)
	}
	return nil
}
