package server

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akinokuni/renderbridge/pkg/logger"
	"github.com/akinokuni/renderbridge/pkg/template"
)

const (
	headerTemplate   = "X-Html-Template"
	headerTargetType = "X-Target-Type"
	headerTargetID   = "X-Target-Id"

	maxFileSize = 5 * 1024 * 1024
)

// imageMIME maps accepted upload extensions to the MIME type embedded in
// the data URI handed to the template.
var imageMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// apiError carries the HTTP status and client-facing message for a
// rejected request.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return e.Message
}

func badRequest(format string, args ...interface{}) *apiError {
	return &apiError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// renderRequest is the validated payload of a render call.
type renderRequest struct {
	Template   *template.Template
	TargetType string
	TargetID   string
	Fields     map[string]string
}

// validator runs the request through its acceptance stages in order:
// auth, headers, template resolution, multipart body.
type validator struct {
	token string
	store *template.Store
}

func (v *validator) validate(r *http.Request) (*renderRequest, *apiError) {
	if err := v.checkAuth(r); err != nil {
		return nil, err
	}

	tmpl, targetType, targetID, err := v.checkHeaders(r)
	if err != nil {
		return nil, err
	}

	fields, err := v.parseBody(r)
	if err != nil {
		return nil, err
	}

	return &renderRequest{
		Template:   tmpl,
		TargetType: targetType,
		TargetID:   targetID,
		Fields:     fields,
	}, nil
}

func (v *validator) checkAuth(r *http.Request) *apiError {
	if v.token == "" {
		return nil
	}
	if r.Header.Get("Authorization") != "Bearer "+v.token {
		return &apiError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	return nil
}

func (v *validator) checkHeaders(r *http.Request) (*template.Template, string, string, *apiError) {
	name := r.Header.Get(headerTemplate)
	if name == "" {
		return nil, "", "", badRequest("Header '%s' is missing", headerTemplate)
	}

	tmpl, ok := v.store.Get(name)
	if !ok {
		return nil, "", "", badRequest("Unknown template '%s'. Available templates: %s",
			name, strings.Join(v.store.Names(), ", "))
	}

	targetType := r.Header.Get(headerTargetType)
	if targetType == "" {
		return nil, "", "", badRequest("Header '%s' is missing", headerTargetType)
	}
	if targetType != "group" && targetType != "private" {
		return nil, "", "", badRequest("Header '%s' must be 'group' or 'private', got '%s'", headerTargetType, targetType)
	}

	targetID := r.Header.Get(headerTargetID)
	if targetID == "" {
		return nil, "", "", badRequest("Header '%s' is missing", headerTargetID)
	}

	return tmpl, targetType, targetID, nil
}

// parseBody streams the multipart form, collecting text fields as-is and
// file fields as data URIs. Offending file parts are dropped with a
// warning instead of failing the request.
func (v *validator) parseBody(r *http.Request) (map[string]string, *apiError) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest("Request body must be multipart/form-data")
	}

	fields := make(map[string]string)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, badRequest("Malformed multipart body: %v", err)
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if part.FileName() == "" {
			data, err := io.ReadAll(io.LimitReader(part, maxFileSize+1))
			part.Close()
			if err != nil {
				return nil, badRequest("Failed to read field '%s': %v", name, err)
			}
			fields[name] = string(data)
			continue
		}

		readFilePart(fields, name, part)
		part.Close()
	}

	return fields, nil
}

func readFilePart(fields map[string]string, name string, part *multipart.Part) {
	filename := part.FileName()
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType, ok := imageMIME[ext]
	if !ok {
		logger.WarnCF("server", "Dropping file field with disallowed extension", map[string]interface{}{
			"field":    name,
			"filename": filename,
		})
		return
	}

	data, err := io.ReadAll(io.LimitReader(part, maxFileSize+1))
	if err != nil {
		logger.WarnCF("server", "Dropping unreadable file field", map[string]interface{}{
			"field": name,
			"error": err.Error(),
		})
		return
	}
	if len(data) > maxFileSize {
		logger.WarnCF("server", "Dropping oversized file field", map[string]interface{}{
			"field":    name,
			"filename": filename,
			"limit":    strconv.Itoa(maxFileSize),
		})
		return
	}

	fields[name] = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	fields[name+"_filename"] = filename
	fields[name+"_size"] = strconv.Itoa(len(data))
}
