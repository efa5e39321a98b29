package qrcode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akinokuni/renderbridge/pkg/config"
)

func TestFetch_ReturnsBody(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("data")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	f := NewFetcher(config.QRCodeConfig{Endpoint: srv.URL, TimeoutSeconds: 2})
	got := f.Fetch(context.Background(), "https://example.com/x?a=1")

	if string(got) != "png-bytes" {
		t.Fatalf("Fetch() = %q, want %q", got, "png-bytes")
	}
	if gotQuery != "https://example.com/x?a=1" {
		t.Fatalf("data query = %q, want original target", gotQuery)
	}
}

func TestFetch_NonOKStatusReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(config.QRCodeConfig{Endpoint: srv.URL, TimeoutSeconds: 2})
	if got := f.Fetch(context.Background(), "target"); got != nil {
		t.Fatalf("Fetch() = %q, want nil on non-2xx", got)
	}
}

func TestFetch_UnreachableEndpointReturnsNil(t *testing.T) {
	f := NewFetcher(config.QRCodeConfig{Endpoint: "http://127.0.0.1:1", TimeoutSeconds: 1})
	if got := f.Fetch(context.Background(), "target"); got != nil {
		t.Fatalf("Fetch() = %q, want nil on connection failure", got)
	}
}
