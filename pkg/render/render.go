package render

import "context"

// Request is the normalized outcome of request validation: a template name
// that resolved at validation time, a delivery target, and the flattened
// form fields (uploaded files already folded in as data URIs).
type Request struct {
	Template   string
	TargetType string
	TargetID   string
	Fields     map[string]string
}

// Artifact is a rendered image, addressed either remotely or locally.
// Exactly one of URL and Path is set.
type Artifact struct {
	URL  string
	Path string
}

func (a Artifact) Remote() bool {
	return a.URL != ""
}

// Strategy turns a markup document into an image artifact. Strategies are
// tried in order; a failure means "try the next one", not a request failure.
type Strategy interface {
	Name() string
	Render(ctx context.Context, doc string) (Artifact, error)
}
