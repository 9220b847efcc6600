package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDryPublisherNumbersPosts(t *testing.T) {
	d := &Dry{Target: "x"}
	ctx := context.Background()

	id1, err := d.Publish(ctx, Post{Text: "Merhaba"})
	if err != nil {
		t.Fatal(err)
	}
	id2, _ := d.Publish(ctx, Post{Text: "Tekrar", ReplyTo: id1})
	if id1 != "dry-1" || id2 != "dry-2" {
		t.Errorf("ids = %q, %q", id1, id2)
	}
	if d.Name() != "dry:x" {
		t.Errorf("Name = %q", d.Name())
	}
}

func TestImageFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doviz.png")
	if err := os.WriteFile(path, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	img, err := ImageFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if img.ContentType != "image/png" || img.Name != "doviz.png" || string(img.Data) != "png" {
		t.Errorf("unexpected image %+v", img)
	}

	if _, err := ImageFromFile(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}
