package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akinokuni/renderbridge/pkg/logger"
	"github.com/akinokuni/renderbridge/pkg/platform"
	"github.com/akinokuni/renderbridge/pkg/render"
	"github.com/akinokuni/renderbridge/pkg/template"
)

const pluginName = "renderbridge"

// Renderer turns a validated request into a deliverable artifact.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (render.Artifact, string, error)
}

// Deliverer performs one send attempt per call.
type Deliverer interface {
	Deliver(ctx context.Context, targetType, targetID string, artifact render.Artifact) error
	DeliverText(ctx context.Context, targetType, targetID, text string) error
}

type handlers struct {
	token      string
	store      *template.Store
	renderer   Renderer
	dispatcher Deliverer
	version    string
}

type renderResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	TemplateUsed string `json:"template_used,omitempty"`
	Target       string `json:"target,omitempty"`
}

type healthResponse struct {
	Status             string          `json:"status"`
	Plugin             string          `json:"plugin"`
	Version            string          `json:"version"`
	TemplatesCount     int             `json:"templates_count"`
	AvailableTemplates []template.Meta `json:"available_templates"`
	Timestamp          string          `json:"timestamp"`
}

func (h *handlers) handleRender(w http.ResponseWriter, r *http.Request) {
	v := &validator{token: h.token, store: h.store}
	req, apiErr := v.validate(r)
	if apiErr != nil {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}

	target := req.TargetType + ":" + req.TargetID
	logger.InfoCF("server", "Render request accepted", map[string]interface{}{
		"template": req.Template.Name,
		"target":   target,
	})

	artifact, strategy, err := h.renderer.Render(r.Context(), render.Request{
		Template:   req.Template.Name,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Fields:     req.Fields,
	})
	if err != nil {
		logger.ErrorCF("server", "Render failed", map[string]interface{}{
			"template": req.Template.Name,
			"error":    err.Error(),
		})
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Rendering failed: %v", err))
		return
	}

	if err := h.dispatcher.Deliver(r.Context(), req.TargetType, req.TargetID, artifact); err != nil {
		if errors.Is(err, platform.ErrNoMatchingClient) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, platform.ErrNoClientAvailable) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger.WarnCF("server", "Image delivery failed, attempting text fallback", map[string]interface{}{
			"target": target,
			"error":  err.Error(),
		})
		text := render.FallbackText(req.Fields)
		if textErr := h.dispatcher.DeliverText(r.Context(), req.TargetType, req.TargetID, text); textErr != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Message delivery failed: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, renderResponse{
			Status:       "success",
			Message:      "Image delivery failed, sent as text instead",
			TemplateUsed: req.Template.Name,
			Target:       target,
		})
		return
	}

	writeJSON(w, http.StatusOK, renderResponse{
		Status:       "success",
		Message:      fmt.Sprintf("Notification sent (%s rendering)", strategy),
		TemplateUsed: req.Template.Name,
		Target:       target,
	})
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "ok",
		Plugin:             pluginName,
		Version:            h.version,
		TemplatesCount:     h.store.Count(),
		AvailableTemplates: h.store.List(),
		Timestamp:          time.Now().Format(time.RFC3339),
	})
}

func (h *handlers) handleReload(w http.ResponseWriter, r *http.Request) {
	v := &validator{token: h.token, store: h.store}
	if apiErr := v.checkAuth(r); apiErr != nil {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}

	h.store.Load()

	writeJSON(w, http.StatusOK, renderResponse{
		Status:  "success",
		Message: fmt.Sprintf("Reloaded %d templates", h.store.Count()),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.ErrorC("server", "Failed to encode response: "+err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, renderResponse{Status: "error", Message: message})
}
