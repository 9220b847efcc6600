package cache

import (
	"errors"
	"testing"
	"time"
)

func TestGetOrLoadMemoizes(t *testing.T) {
	c := New[string](time.Minute)
	loads := 0
	load := func() (string, error) {
		loads++
		return "page", nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", load)
		if err != nil || v != "page" {
			t.Fatalf("GetOrLoad = %q, %v", v, err)
		}
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New[int](time.Minute)
	_, err := c.GetOrLoad("k", func() (int, error) { return 0, errors.New("down") })
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := c.Get("k"); ok {
		t.Error("failed load must not be stored")
	}
}

func TestExpiry(t *testing.T) {
	c := New[int](time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", 1)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := c.Get("a"); ok {
		t.Error("entry should have expired")
	}
	if _, exists := c.items["a"]; exists {
		t.Error("expired entry should be dropped on read")
	}
}
