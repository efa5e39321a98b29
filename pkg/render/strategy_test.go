package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/akinokuni/renderbridge/pkg/config"
)

func TestNetworkStrategy_ReturnsServiceURL(t *testing.T) {
	var gotHTML string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		gotHTML = body["html"]
		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example/out.png"})
	}))
	defer srv.Close()

	s := NewNetworkStrategy(config.RenderConfig{APIURL: srv.URL, APITimeoutSeconds: 2})
	artifact, err := s.Render(context.Background(), "<p>doc</p>")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if artifact.URL != "https://cdn.example/out.png" {
		t.Fatalf("artifact URL = %q", artifact.URL)
	}
	if gotHTML != "<p>doc</p>" {
		t.Fatalf("service received html = %q", gotHTML)
	}
}

func TestNetworkStrategy_ErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewNetworkStrategy(config.RenderConfig{APIURL: srv.URL, APITimeoutSeconds: 2})
	if _, err := s.Render(context.Background(), "<p>doc</p>"); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestNetworkStrategy_EmptyURLInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	s := NewNetworkStrategy(config.RenderConfig{APIURL: srv.URL, APITimeoutSeconds: 2})
	if _, err := s.Render(context.Background(), "doc"); err == nil {
		t.Fatal("expected error on empty url")
	}
}

func TestNetworkStrategy_Unconfigured(t *testing.T) {
	s := NewNetworkStrategy(config.RenderConfig{})
	if _, err := s.Render(context.Background(), "doc"); err == nil {
		t.Fatal("expected error when api_url is empty")
	}
}

func TestLocalStrategy_ProducesOutputFile(t *testing.T) {
	// cp stands in for the real renderer: it is invoked the same way,
	// <command> <input.html> <output.png>, and produces the output file.
	s := NewLocalStrategy(config.RenderConfig{
		LocalCommand:        "cp",
		WorkDir:             t.TempDir(),
		LocalTimeoutSeconds: 5,
	})

	artifact, err := s.Render(context.Background(), "<p>doc</p>")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "<p>doc</p>" {
		t.Fatalf("output = %q", data)
	}
	if !strings.HasSuffix(artifact.Path, ".png") {
		t.Fatalf("output path = %q, want .png suffix", artifact.Path)
	}
}

func TestLocalStrategy_CommandFailure(t *testing.T) {
	s := NewLocalStrategy(config.RenderConfig{
		LocalCommand:        "false",
		WorkDir:             t.TempDir(),
		LocalTimeoutSeconds: 5,
	})

	if _, err := s.Render(context.Background(), "doc"); err == nil {
		t.Fatal("expected error when command fails")
	}
}

func TestLocalStrategy_Unconfigured(t *testing.T) {
	s := NewLocalStrategy(config.RenderConfig{WorkDir: t.TempDir()})
	if _, err := s.Render(context.Background(), "doc"); err == nil {
		t.Fatal("expected error when command is empty")
	}
}
