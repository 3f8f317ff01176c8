package compress

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCompressReturnsDataAndRatio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compress" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		// Echo back the first half to simulate compression.
		_, _ = w.Write(body[:len(body)/2])
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	input := []byte(strings.Repeat("x", 1000))
	result, err := client.Compress(context.Background(), input)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	if len(result.Data) != 500 {
		t.Fatalf("expected 500 bytes, got %d", len(result.Data))
	}
	if result.Ratio != 0.5 {
		t.Fatalf("expected ratio 0.5, got %v", result.Ratio)
	}
}

func TestCompressRatioAboveOneIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(append(body, body...))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	result, err := client.Compress(context.Background(), []byte(strings.Repeat("x", 100)))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if result.Ratio != 2.0 {
		t.Fatalf("a grown file must report its true ratio, got %v", result.Ratio)
	}
}

func TestCompressSidecarFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ghostscript crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Compress(context.Background(), []byte("%PDF-1.7"))
	if err == nil {
		t.Fatalf("expected an error on sidecar failure")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("error must carry the sidecar status, got %v", err)
	}
}

func TestCompressEmptyResponseRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Compress(context.Background(), []byte("%PDF-1.7"))
	if err == nil {
		t.Fatalf("expected an error on empty sidecar response")
	}
}

func TestCompressUnreachableSidecar(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	_, err := client.Compress(context.Background(), []byte("%PDF-1.7"))
	if err == nil {
		t.Fatalf("expected an error when the sidecar is unreachable")
	}
}

func TestCompressEmptyInputRejected(t *testing.T) {
	client := NewClient("http://localhost:3090", time.Second)
	if _, err := client.Compress(context.Background(), nil); err == nil {
		t.Fatalf("expected an error for empty input")
	}
}
