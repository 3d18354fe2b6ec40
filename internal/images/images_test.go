package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestDataURL(t *testing.T) {
	got, err := DataURL(pngHeader)
	if err != nil {
		t.Fatalf("data url failed: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("unexpected data url %q", got)
	}
}

func TestDataURLRejectsNonImage(t *testing.T) {
	if _, err := DataURL([]byte("<html><body>not found</body></html>")); err == nil {
		t.Error("expected error for non-image payload")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngHeader)
	}))
	defer srv.Close()

	got, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("unexpected data url %q", got)
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestFetchRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>login required</body></html>"))
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error when the download is not an image")
	}
}
