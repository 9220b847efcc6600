package storage

import (
	"context"
	"os"
	"testing"
	"time"
)

// Runs only against a disposable database named by TEST_DATABASE_URL.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" || testing.Short() {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	ps, err := NewPostgresStore(ctx, dsn, 5)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer ps.Close()

	id := "test-" + time.Now().Format(time.RFC3339Nano)
	_ = ps.MarkSeen(id)
	if !ps.Seen(id) {
		t.Error("pending id should count as seen")
	}
	_ = ps.SetSinceID("test-account", "42")
	_ = ps.AddTopic("test topic")
	if err := ps.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !ps.Seen(id) {
		t.Error("saved id should be seen")
	}
	if got := ps.SinceID("test-account"); got != "42" {
		t.Errorf("SinceID = %q", got)
	}
	if len(ps.RecentTopics(time.Hour)) == 0 {
		t.Error("expected the saved topic")
	}
}
