package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs := NewFileStore(path, 10)
	if err := fs.Load(); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}

	_ = fs.MarkSeen("https://example.com/a")
	_ = fs.SetSinceID("haber", "1800")
	_ = fs.AddTopic("Merkez Bankası faizi sabit tuttu")
	if err := fs.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := OpenFileStore(path, 10)
	if !reloaded.Seen("https://example.com/a") {
		t.Error("seen id lost after reload")
	}
	if reloaded.Seen("https://example.com/b") {
		t.Error("unexpected seen id")
	}
	if got := reloaded.SinceID("haber"); got != "1800" {
		t.Errorf("SinceID = %q", got)
	}
	if got := reloaded.RecentTopics(time.Hour); len(got) != 1 {
		t.Errorf("RecentTopics = %v", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestFileStoreCapDropsOldest(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "state.json"), 3)
	for i := 0; i < 5; i++ {
		_ = fs.MarkSeen(fmt.Sprintf("id-%d", i))
	}
	if fs.Seen("id-0") || fs.Seen("id-1") {
		t.Error("oldest ids should be dropped")
	}
	for i := 2; i < 5; i++ {
		if !fs.Seen(fmt.Sprintf("id-%d", i)) {
			t.Errorf("id-%d should be kept", i)
		}
	}
	if fs.GetStats()["seen"] != 3 {
		t.Errorf("stats = %v", fs.GetStats())
	}
}

func TestFileStoreDuplicateMarkIsIgnored(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "state.json"), 3)
	_ = fs.MarkSeen("a")
	_ = fs.MarkSeen("a")
	if fs.GetStats()["seen"] != 1 {
		t.Errorf("stats = %v", fs.GetStats())
	}
}

func TestFileStoreReadsLegacyFormats(t *testing.T) {
	dir := t.TempDir()

	posted := filepath.Join(dir, "rss_state.json")
	if err := os.WriteFile(posted, []byte(`{"posted": ["x", "y"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := OpenFileStore(posted, 10)
	if !fs.Seen("x") || !fs.Seen("y") {
		t.Error("legacy posted list not loaded")
	}

	accounts := filepath.Join(dir, "state.json")
	if err := os.WriteFile(accounts, []byte(`{"trthaber": "1799", "ntv": "1700"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	fs = OpenFileStore(accounts, 10)
	if fs.SinceID("trthaber") != "1799" || fs.SinceID("ntv") != "1700" {
		t.Error("legacy since_id map not loaded")
	}
}

func TestFileStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := NewFileStore(path, 10)
	if err := fs.Load(); err == nil {
		t.Error("expected parse error")
	}
	fs = OpenFileStore(path, 10)
	if fs.GetStats()["seen"] != 0 {
		t.Error("corrupt state should yield an empty store")
	}
}

func TestFileStorePartlyBrokenFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	data := `{"seen": ["a", "b"], "since_ids": {"ntv": "17"}, "topics": "not a list"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := NewFileStore(path, 10)
	if err := fs.Load(); err == nil {
		t.Fatal("expected topics parse error")
	}
	stats := fs.GetStats()
	if stats["seen"] != 0 || stats["accounts"] != 0 || stats["topics"] != 0 {
		t.Errorf("stats after failed load = %v", stats)
	}
	if fs.Seen("a") || fs.SinceID("ntv") != "" {
		t.Error("failed load left part of the file in memory")
	}

	fs = OpenFileStore(path, 10)
	if fs.GetStats()["seen"] != 0 {
		t.Error("partly broken state should yield an empty store")
	}
}

func TestFileStoreSavePrunesOldTopics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs := NewFileStore(path, 10)
	now := time.Now()
	fs.now = func() time.Time { return now.Add(-48 * time.Hour) }
	_ = fs.AddTopic("eski")
	fs.now = func() time.Time { return now }
	_ = fs.AddTopic("yeni")
	if err := fs.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}
	if len(st.Topics) != 1 || st.Topics[0].Title != "yeni" {
		t.Errorf("topics = %+v", st.Topics)
	}
	if st.Seen == nil {
		t.Error(`"seen" should be written as a list`)
	}
}
