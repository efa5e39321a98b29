package render

import (
	"context"
	"encoding/base64"
	"fmt"
	htmltemplate "html/template"
	"strings"

	"github.com/akinokuni/renderbridge/pkg/logger"
	"github.com/akinokuni/renderbridge/pkg/template"
)

// ErrTemplateNotFound indicates an internal inconsistency: validation
// resolved a template that has since vanished from the store.
var ErrTemplateNotFound = fmt.Errorf("template not found in store")

// ExpandError wraps a template-expansion failure so the HTTP layer can
// surface the parse error to the caller.
type ExpandError struct {
	Template string
	Err      error
}

func (e *ExpandError) Error() string {
	return fmt.Sprintf("template %q expansion failed: %v", e.Template, e.Err)
}

func (e *ExpandError) Unwrap() error { return e.Err }

// QRFetcher is the slice of the QR code fetcher the pipeline needs.
type QRFetcher interface {
	Fetch(ctx context.Context, target string) []byte
}

// Pipeline resolves a template, expands it against request data, and walks
// an ordered strategy chain until one produces an artifact. The degrade
// order is fixed: network render, local render, then a reduced markdown
// document rendered locally.
type Pipeline struct {
	store      *template.Store
	qr         QRFetcher
	strategies []Strategy
}

func NewPipeline(store *template.Store, qr QRFetcher, strategies ...Strategy) *Pipeline {
	return &Pipeline{
		store:      store,
		qr:         qr,
		strategies: strategies,
	}
}

// Render produces the artifact for req, along with the name of the strategy
// that succeeded.
func (p *Pipeline) Render(ctx context.Context, req Request) (Artifact, string, error) {
	tmpl, ok := p.store.Get(req.Template)
	if !ok {
		return Artifact{}, "", fmt.Errorf("%w: %s", ErrTemplateNotFound, req.Template)
	}

	data := p.buildRenderData(ctx, req.Fields)

	doc, err := tmpl.Expand(data)
	if err != nil {
		return Artifact{}, "", &ExpandError{Template: tmpl.Name, Err: err}
	}

	chain := make([]documentAttempt, 0, len(p.strategies)+1)
	for _, s := range p.strategies {
		chain = append(chain, documentAttempt{strategy: s, doc: doc})
	}
	if last := p.lastStrategy(); last != nil {
		chain = append(chain, documentAttempt{
			strategy: last,
			doc:      FallbackDocument(req.Fields),
			degraded: true,
		})
	}

	var errs []string
	for i, attempt := range chain {
		name := attempt.strategy.Name()
		if attempt.degraded {
			name = "fallback"
		}

		artifact, err := attempt.strategy.Render(ctx, attempt.doc)
		if err == nil {
			logger.InfoCF("render", "Render strategy succeeded", map[string]interface{}{
				"strategy": name,
				"template": tmpl.Name,
			})
			return artifact, name, nil
		}

		errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		if i < len(chain)-1 {
			next := chain[i+1].strategy.Name()
			if chain[i+1].degraded {
				next = "fallback"
			}
			logger.WarnCF("render", "Render strategy failed, falling back", map[string]interface{}{
				"strategy": name,
				"next":     next,
				"error":    err.Error(),
			})
		}
	}

	return Artifact{}, "", fmt.Errorf("all render strategies exhausted: %s", strings.Join(errs, "; "))
}

type documentAttempt struct {
	strategy Strategy
	doc      string
	degraded bool
}

func (p *Pipeline) lastStrategy() Strategy {
	if len(p.strategies) == 0 {
		return nil
	}
	return p.strategies[len(p.strategies)-1]
}

// buildRenderData copies the request fields into template data. Data-URI
// values (uploaded images) and the injected QR code are typed so the HTML
// escaper passes them through verbatim.
func (p *Pipeline) buildRenderData(ctx context.Context, fields map[string]string) map[string]interface{} {
	data := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		if strings.HasPrefix(v, "data:") {
			data[k] = htmltemplate.URL(v)
			continue
		}
		data[k] = v
	}

	if link := fields["link"]; link != "" && p.qr != nil {
		logger.InfoCF("render", "Link field present, fetching QR code", map[string]interface{}{
			"link": link,
		})
		if raw := p.qr.Fetch(ctx, link); len(raw) > 0 {
			data["qr_code_base64"] = htmltemplate.URL(base64.StdEncoding.EncodeToString(raw))
		} else {
			logger.WarnC("render", "QR code unavailable, rendering without it")
		}
	}

	return data
}
