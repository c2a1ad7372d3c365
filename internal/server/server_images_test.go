package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestImageRelayServesFromOrigin(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cover.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer origin.Close()
	env := newTestEnvWithOrigin(t, origin.URL)

	resp := env.do(http.MethodGet, "/api/images/cover.png", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("relay expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("content type %q, want image/png", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Fatalf("cache control %q", got)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("body = %q err=%v", data, err)
	}
}

func TestImageRelayRejectsBadNamesAndMissingImages(t *testing.T) {
	origin := httptest.NewServer(http.NotFoundHandler())
	defer origin.Close()
	env := newTestEnvWithOrigin(t, origin.URL)

	// Traversal and nested paths never reach the origin.
	for _, path := range []string{
		"/api/images/sub/dir.png",
		"/api/images/c..png",
		"/api/images/bad%20name.png",
	} {
		resp := env.do(http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s expected 404, got %d", path, resp.StatusCode)
		}
	}

	// Valid name that the origin does not have.
	resp := env.do(http.MethodGet, "/api/images/missing.png", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing image expected 404, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["error"] != "Image not found" {
		t.Fatalf("error message %q, want %q", body["error"], "Image not found")
	}
}

func TestImageRelayDefaultsContentTypeToPNG(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Suppress both the explicit header and Go's sniffing.
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer origin.Close()
	env := newTestEnvWithOrigin(t, origin.URL)

	resp := env.do(http.MethodGet, "/api/images/cover.png", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("relay expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("content type %q, want image/png", got)
	}
}

func TestImageRelayOriginUnreachable(t *testing.T) {
	env := newTestEnvWithOrigin(t, "http://127.0.0.1:1")

	resp := env.do(http.MethodGet, "/api/images/cover.png", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unreachable origin expected 404, got %d", resp.StatusCode)
	}
}
