package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deusflow/autopost/internal/ratelimit"
	"github.com/google/generative-ai-go/genai"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`Gönderi: "Merkez Bankası faizi sabit bıraktı."`, "Merkez Bankası faizi sabit bıraktı."},
		{"“Enflasyon beklentinin altında kaldı.”", "Enflasyon beklentinin altında kaldı."},
		{"Not: Bu metin yapay zeka tarafından üretildi.\nTBMM yeni yasayı kabul etti.", "TBMM yeni yasayı kabul etti."},
		{"Deprem bölgesinde çalışmalar sürüyor (Not: kaynak doğrulanmalı). #deprem #afet", "Deprem bölgesinde çalışmalar sürüyor."},
		{"[Note: machine output] Altın rekor kırdı.", "Altın rekor kırdı."},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(Request{Title: "Başlık", Summary: "Özet\r\n metni", Limit: 200, StyleHint: "Kısa yaz."})
	for _, want := range []string{"BAŞLIK: Başlık", "ÖZET: Özet metni", "En fazla 200 karakter", "- Kısa yaz."} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}

	long := strings.Repeat("Uzun bir cümle burada. ", 400)
	if n := len([]rune(BuildPrompt(Request{Summary: long}))); n > maxPromptChars+500 {
		t.Errorf("prompt not truncated: %d runes", n)
	}
}

type fakeRewriter struct {
	out   string
	err   error
	calls int
}

func (f *fakeRewriter) Rewrite(ctx context.Context, req Request) (string, error) {
	f.calls++
	return f.out, f.err
}

func TestGuardedBudget(t *testing.T) {
	fake := &fakeRewriter{out: `Metin: "Dolar yükselişte."`}
	g := &Guarded{Rewriter: fake, Budget: ratelimit.NewBudget("ai", 1, 0)}

	out, err := g.Rewrite(context.Background(), Request{})
	if err != nil || out != "Dolar yükselişte." {
		t.Fatalf("Rewrite = %q, %v", out, err)
	}
	if _, err := g.Rewrite(context.Background(), Request{}); !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("second call err = %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d", fake.calls)
	}
}

func TestGuardedEmptyAnswer(t *testing.T) {
	g := &Guarded{Rewriter: &fakeRewriter{out: "Not: yanıt yok"}}
	if _, err := g.Rewrite(context.Background(), Request{}); err == nil {
		t.Error("expected error for empty rewrite")
	}
}

func TestOpenAIRewrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) != 1 || !strings.Contains(body.Messages[0].Content, "BAŞLIK: Faiz kararı") {
			t.Errorf("messages = %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Faiz sabit kaldı.  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", srv.URL+"/v1")
	out, err := o.Rewrite(context.Background(), Request{Title: "Faiz kararı"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Faiz sabit kaldı." {
		t.Errorf("out = %q", out)
	}
}

func TestGeminiResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Altın "), genai.Text("yükseldi.")}},
		}},
	}
	got, err := responseText(resp)
	if err != nil || got != "Altın yükseldi." {
		t.Errorf("responseText = %q, %v", got, err)
	}
	if _, err := responseText(&genai.GenerateContentResponse{}); err == nil {
		t.Error("expected error for empty response")
	}
}
