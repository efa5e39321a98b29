package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akinokuni/renderbridge/pkg/platform"
	"github.com/akinokuni/renderbridge/pkg/render"
)

type stubRenderer struct {
	artifact render.Artifact
	strategy string
	err      error
	lastReq  render.Request
}

func (s *stubRenderer) Render(ctx context.Context, req render.Request) (render.Artifact, string, error) {
	s.lastReq = req
	if s.err != nil {
		return render.Artifact{}, "", s.err
	}
	return s.artifact, s.strategy, nil
}

type stubDeliverer struct {
	imageErr  error
	textErr   error
	sentImage bool
	sentText  string
}

func (s *stubDeliverer) Deliver(ctx context.Context, targetType, targetID string, artifact render.Artifact) error {
	if s.imageErr != nil {
		return s.imageErr
	}
	s.sentImage = true
	return nil
}

func (s *stubDeliverer) DeliverText(ctx context.Context, targetType, targetID, text string) error {
	if s.textErr != nil {
		return s.textErr
	}
	s.sentText = text
	return nil
}

func newTestHandlers(t *testing.T, renderer *stubRenderer, deliverer *stubDeliverer) *handlers {
	t.Helper()
	return &handlers{
		token:      "secret",
		store:      testStore(t, "card"),
		renderer:   renderer,
		dispatcher: deliverer,
		version:    "test",
	}
}

func doRender(t *testing.T, h *handlers) *httptest.ResponseRecorder {
	t.Helper()
	req := validRequest(t)
	rec := httptest.NewRecorder()
	h.handleRender(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) renderResponse {
	t.Helper()
	var resp renderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHandleRender_Success(t *testing.T) {
	renderer := &stubRenderer{artifact: render.Artifact{URL: "https://img/1.png"}, strategy: "network"}
	deliverer := &stubDeliverer{}
	h := newTestHandlers(t, renderer, deliverer)

	rec := doRender(t, h)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if resp.Status != "success" {
		t.Fatalf("status field = %q", resp.Status)
	}
	if resp.TemplateUsed != "card" {
		t.Fatalf("template_used = %q", resp.TemplateUsed)
	}
	if resp.Target != "group:123" {
		t.Fatalf("target = %q, want group:123", resp.Target)
	}
	if !strings.Contains(resp.Message, "network") {
		t.Fatalf("message = %q, want strategy mentioned", resp.Message)
	}
	if !deliverer.sentImage {
		t.Fatal("image was not delivered")
	}
	if renderer.lastReq.Fields["content"] != "hello" {
		t.Fatalf("renderer fields = %v", renderer.lastReq.Fields)
	}
}

func TestHandleRender_RenderFailure(t *testing.T) {
	renderer := &stubRenderer{err: errors.New("all render strategies exhausted")}
	h := newTestHandlers(t, renderer, &stubDeliverer{})

	rec := doRender(t, h)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != "error" || !strings.Contains(resp.Message, "Rendering failed") {
		t.Fatalf("response = %+v", resp)
	}
}

func TestHandleRender_TextDowngradeOnDeliveryFailure(t *testing.T) {
	renderer := &stubRenderer{artifact: render.Artifact{Path: "/tmp/x.png"}, strategy: "local"}
	deliverer := &stubDeliverer{imageErr: errors.New("socket closed")}
	h := newTestHandlers(t, renderer, deliverer)

	rec := doRender(t, h)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after text downgrade", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != "success" || !strings.Contains(resp.Message, "text") {
		t.Fatalf("response = %+v", resp)
	}
	if deliverer.sentText == "" {
		t.Fatal("text fallback was not sent")
	}
}

func TestHandleRender_BothDeliveriesFail(t *testing.T) {
	renderer := &stubRenderer{artifact: render.Artifact{Path: "/tmp/x.png"}, strategy: "local"}
	deliverer := &stubDeliverer{
		imageErr: errors.New("socket closed"),
		textErr:  errors.New("still closed"),
	}
	h := newTestHandlers(t, renderer, deliverer)

	rec := doRender(t, h)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Message, "delivery failed") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestHandleRender_NoMatchingClientIs400(t *testing.T) {
	renderer := &stubRenderer{artifact: render.Artifact{URL: "https://img/1.png"}, strategy: "network"}
	deliverer := &stubDeliverer{imageErr: platform.ErrNoMatchingClient}
	h := newTestHandlers(t, renderer, deliverer)

	rec := doRender(t, h)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRender_NoClientAvailableIs500(t *testing.T) {
	renderer := &stubRenderer{artifact: render.Artifact{URL: "https://img/1.png"}, strategy: "network"}
	deliverer := &stubDeliverer{imageErr: platform.ErrNoClientAvailable}
	h := newTestHandlers(t, renderer, deliverer)

	rec := doRender(t, h)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(decodeResponse(t, rec).Message, "text") {
		t.Fatal("no text downgrade should be attempted without a client")
	}
}

func TestHandleHealth_Shape(t *testing.T) {
	h := newTestHandlers(t, &stubRenderer{}, &stubDeliverer{})

	rec := httptest.NewRecorder()
	h.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if resp.Status != "ok" || resp.Plugin != "renderbridge" || resp.Version != "test" {
		t.Fatalf("health = %+v", resp)
	}
	if resp.TemplatesCount != 1 || len(resp.AvailableTemplates) != 1 {
		t.Fatalf("templates in health = %+v", resp)
	}
	if resp.AvailableTemplates[0].Name != "card" {
		t.Fatalf("available_templates = %+v", resp.AvailableTemplates)
	}
	if resp.Timestamp == "" {
		t.Fatal("timestamp missing")
	}
}

func TestHandleReload_RequiresAuth(t *testing.T) {
	h := newTestHandlers(t, &stubRenderer{}, &stubDeliverer{})

	rec := httptest.NewRecorder()
	h.handleReload(rec, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.handleReload(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
