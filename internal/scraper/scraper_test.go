package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/deusflow/autopost/internal/retry"
)

const bundlePage = `<html><head>
<title>Bundle Haber</title>
<meta property="og:title" content="OG Başlık">
<meta property="og:description" content="Açıklama metni &amp; detay">
<meta property="og:image" content="/img/kapak.jpg">
</head><body>
<h1>Dolar rekor kırdı</h1>
<div class="box"><span>Bundle AI özetliyor</span></div>
<ul>
  <li>• Dolar 34 lirayı aştı.</li>
  <li>Euro da yükselişte.</li>
  <li>Euro da yükselişte.</li>
</ul>
<p>Analistler • Faiz kararı bekleniyor</p>
<h3>Diğer haberler</h3>
<ul><li>Alakasız</li></ul>
</body></html>`

func doc(t *testing.T, s string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestExtractTitleOrder(t *testing.T) {
	if got := ExtractTitle(doc(t, bundlePage)); got != "Dolar rekor kırdı" {
		t.Errorf("h1 title = %q", got)
	}
	d := doc(t, `<html><head><title>Sayfa</title><meta property="og:title" content="OG"></head><body></body></html>`)
	if got := ExtractTitle(d); got != "OG" {
		t.Errorf("og title = %q", got)
	}
	d = doc(t, `<html><head><title> Sayfa </title></head><body></body></html>`)
	if got := ExtractTitle(d); got != "Sayfa" {
		t.Errorf("title tag = %q", got)
	}
}

func TestExtractSummaryBlock(t *testing.T) {
	got := ExtractSummaryBlock(doc(t, bundlePage))
	want := []string{"Dolar 34 lirayı aştı.", "Euro da yükselişte.", "Analistler", "Faiz kararı bekleniyor"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractSummaryBlock = %q, want %q", got, want)
	}
}

func TestExtractSummaryBlockClassFallback(t *testing.T) {
	d := doc(t, `<html><body><div class="container"><p>Uzun olmayan</p></div>
<section class="news-summary"><p>Birinci madde</p><p>İkinci madde</p></section></body></html>`)
	got := ExtractSummaryBlock(d)
	want := []string{"Birinci madde", "İkinci madde"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("class fallback = %q, want %q", got, want)
	}
}

func TestFallbackDescription(t *testing.T) {
	if got := FallbackDescription(doc(t, bundlePage)); got != "Açıklama metni & detay" {
		t.Errorf("meta description = %q", got)
	}
	long := strings.Repeat("uzun paragraf ", 10)
	d := doc(t, "<html><body><p>kısa</p><p>"+long+"</p></body></html>")
	if got := FallbackDescription(d); got != strings.TrimSpace(long) {
		t.Errorf("paragraph fallback = %q", got)
	}
}

func TestOGImageResolvesRelative(t *testing.T) {
	got := OGImage(doc(t, bundlePage), "https://bundle.app/haber/1")
	if got != "https://bundle.app/img/kapak.jpg" {
		t.Errorf("OGImage = %q", got)
	}
}

func TestClientPageIsMemoized(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("missing user agent")
		}
		w.Write([]byte(bundlePage))
	}))
	defer srv.Close()

	c := New(srv.Client(), "test-agent", retry.RetryConfig{MaxAttempts: 1})
	for i := 0; i < 2; i++ {
		p, err := c.Page(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Page: %v", err)
		}
		if p.Title != "Dolar rekor kırdı" || len(p.Bullets) == 0 {
			t.Errorf("page = %+v", p)
		}
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}

func TestClientRetriesAndReportsStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.Client(), "", retry.RetryConfig{MaxAttempts: 2, Delay: time.Millisecond})
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page" {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG\r\n\x1a\n"))
	}))
	defer srv.Close()

	c := New(srv.Client(), "", retry.RetryConfig{MaxAttempts: 1})
	data, ct, err := c.Download(context.Background(), srv.URL+"/img.png")
	if err != nil || ct != "image/png" || len(data) != 8 {
		t.Errorf("Download = %d bytes, %q, %v", len(data), ct, err)
	}
	if _, _, err := c.Download(context.Background(), srv.URL+"/page"); err == nil {
		t.Error("html should be rejected")
	}
}
