package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/autopost/internal/publish"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New("TOKEN", "@kanal", srv.Client())
	c.BaseURL = srv.URL
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestSendMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["chat_id"] != "@kanal" || body["text"] != "Merhaba" {
			t.Errorf("body = %v", body)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":12}}`))
	})

	p := &Publisher{Client: c}
	id, err := p.Publish(context.Background(), publish.Post{Text: "Merhaba"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "12" {
		t.Errorf("id = %q", id)
	}
}

func TestSendPhotoUpload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendPhoto" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart: %v", err)
			return
		}
		if r.FormValue("caption") != "Gün sonu" || r.FormValue("chat_id") != "@kanal" {
			t.Errorf("fields = %v", r.MultipartForm.Value)
		}
		f, _, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("photo: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "jpg-bytes" {
			t.Errorf("photo = %q", data)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":3}}`))
	})

	p := &Publisher{Client: c}
	id, err := p.Publish(context.Background(), publish.Post{
		Text:  "Gün sonu",
		Image: &publish.Image{Data: []byte("jpg-bytes"), Name: "doviz.jpg"},
	})
	if err != nil || id != "3" {
		t.Fatalf("Publish = %q, %v", id, err)
	}
}

func TestSendPhotoByURLClampsCaption(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["photo"] != "https://img.example/a.jpg" {
			t.Errorf("photo = %v", body["photo"])
		}
		if n := len([]rune(body["caption"].(string))); n != maxCaption {
			t.Errorf("caption length = %d", n)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":4}}`))
	})
	_, err := c.SendPhoto(context.Background(), &publish.Image{URL: "https://img.example/a.jpg"}, strings.Repeat("ş", 1500))
	if err != nil {
		t.Fatal(err)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	c, slept := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})
	if _, err := c.SendMessage(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d", calls)
	}
	if len(*slept) != 2 || (*slept)[0] != 2*time.Second || (*slept)[1] != 4*time.Second {
		t.Errorf("backoff = %v", *slept)
	}
}

func TestRateLimitIsNotRetried(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Too Many Requests","parameters":{"retry_after":30}}`))
	})
	_, err := c.SendMessage(context.Background(), "x")
	if !errors.Is(err, publish.ErrRateLimited) {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestVerify(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"username":"haber_bot"}}`))
	})
	handle, err := (&Publisher{Client: c}).Verify(context.Background())
	if err != nil || handle != "@haber_bot" {
		t.Errorf("Verify = %q, %v", handle, err)
	}
}
