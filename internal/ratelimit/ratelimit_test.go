package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBudgetCapsUses(t *testing.T) {
	b := NewBudget("posts", 2, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("use %d should be allowed", i)
		}
		if err := b.Use(ctx); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}
	if b.Allow() {
		t.Error("third use should be refused")
	}
	if err := b.Use(ctx); err == nil {
		t.Error("expected error past the limit")
	}
	if b.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", b.Remaining())
	}
	stats := b.GetStats()
	if stats["posts_used"] != 2 || stats["posts_limit"] != 2 {
		t.Errorf("GetStats = %v", stats)
	}
}

func TestBudgetUnlimited(t *testing.T) {
	b := NewBudget("ai", 0, 0)
	for i := 0; i < 10; i++ {
		if err := b.Use(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if b.Remaining() != -1 {
		t.Errorf("Remaining = %d, want -1", b.Remaining())
	}
}

func TestBudgetSpacesUses(t *testing.T) {
	b := NewBudget("posts", 0, time.Second)
	var slept time.Duration
	b.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		return nil
	}
	_ = b.Use(context.Background())
	_ = b.Use(context.Background())
	if slept <= 0 || slept > time.Second {
		t.Errorf("expected a wait of up to 1s before the second use, got %v", slept)
	}
}
