package template

import (
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/logger"
)

const fileSuffix = ".html"

// builtinName is installed only when neither the templates directory nor the
// inline config yields a single usable template.
const builtinName = "notification"

const builtinContent = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; width: 600px; padding: 24px;">
  <h1>&#128226; {{.title}}</h1>
  <hr>
  <p>{{.content}}</p>
  <hr>
  <p>&#128338; <b>Time</b>: {{.timestamp}}</p>
</body>
</html>`

// Template is a named, precompiled markup document. Immutable once loaded;
// the store hands out references that callers must not mutate.
type Template struct {
	Name        string
	DisplayName string
	Description string
	File        string
	Width       int
	Quality     int

	tmpl *htmltemplate.Template
}

// Expand renders the template body against per-request field data.
func (t *Template) Expand(data map[string]interface{}) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Meta is the metadata slice of a Template exposed by List and the health
// endpoint.
type Meta struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Description string `json:"description"`
}

// Store owns the template cache. Load replaces the cache wholesale under the
// write lock, so concurrent lookups see either the old or the new set.
type Store struct {
	dir    string
	inline []config.InlineTemplate

	mu    sync.RWMutex
	cache map[string]*Template
}

func NewStore(cfg config.TemplatesConfig) *Store {
	return &Store{
		dir:    cfg.Dir,
		inline: cfg.Inline,
		cache:  make(map[string]*Template),
	}
}

// Load rescans all configured sources and swaps in a fresh cache. A template
// that fails to parse is logged and skipped, never aborting the rest. An
// empty result leaves the store empty; requests then fail with a
// template-not-found response rather than the process dying.
func (s *Store) Load() {
	cache := make(map[string]*Template)

	s.loadFromDir(cache)
	s.loadInline(cache)

	if len(cache) == 0 {
		if builtin := compileBuiltin(); builtin != nil {
			cache[builtin.Name] = builtin
			logger.WarnC("templates", "No templates configured, installed builtin fallback")
		}
	}

	names := make([]string, 0, len(cache))
	for name := range cache {
		names = append(names, name)
	}
	sort.Strings(names)

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()

	if len(names) == 0 {
		logger.WarnC("templates", "No usable templates loaded, store is empty")
		return
	}
	logger.InfoCF("templates", "Templates loaded", map[string]interface{}{
		"count": len(names),
		"names": strings.Join(names, ", "),
	})
}

func (s *Store) loadFromDir(cache map[string]*Template) {
	if s.dir == "" {
		return
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logger.ErrorCF("templates", "Failed to scan templates directory", map[string]interface{}{
			"dir":   s.dir,
			"error": err.Error(),
		})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), fileSuffix)
		path := filepath.Join(s.dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			logger.ErrorCF("templates", "Failed to read template file", map[string]interface{}{
				"file":  entry.Name(),
				"error": err.Error(),
			})
			continue
		}

		tmpl, err := compile(name, string(data))
		if err != nil {
			logger.ErrorCF("templates", "Failed to parse template file", map[string]interface{}{
				"file":  entry.Name(),
				"error": err.Error(),
			})
			continue
		}

		cache[name] = &Template{
			Name:        name,
			DisplayName: titleCase(name),
			Description: "Template loaded from " + entry.Name(),
			File:        entry.Name(),
			tmpl:        tmpl,
		}
		logger.InfoCF("templates", "Loaded template", map[string]interface{}{
			"name": name,
			"file": entry.Name(),
		})
	}
}

// Inline entries win over directory files on a name clash.
func (s *Store) loadInline(cache map[string]*Template) {
	for _, entry := range s.inline {
		name := strings.TrimSuffix(entry.Name, fileSuffix)
		if name == "" {
			logger.WarnC("templates", "Skipping inline template with empty name")
			continue
		}

		tmpl, err := compile(name, entry.Content)
		if err != nil {
			logger.ErrorCF("templates", "Failed to parse inline template", map[string]interface{}{
				"name":  name,
				"error": err.Error(),
			})
			continue
		}

		display := entry.DisplayName
		if display == "" {
			display = titleCase(name)
		}

		cache[name] = &Template{
			Name:        name,
			DisplayName: display,
			Description: entry.Description,
			File:        name + fileSuffix,
			Width:       entry.Width,
			Quality:     entry.Quality,
			tmpl:        tmpl,
		}
		logger.InfoCF("templates", "Loaded inline template", map[string]interface{}{
			"name": name,
		})
	}
}

// Get resolves a template by name, accepting the name with or without the
// .html suffix.
func (s *Store) Get(name string) (*Template, bool) {
	name = strings.TrimSuffix(name, fileSuffix)

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.cache[name]
	return t, ok
}

func (s *Store) List() []Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]Meta, 0, len(s.cache))
	for _, t := range s.cache {
		metas = append(metas, Meta{
			Name:        t.Name,
			File:        t.File,
			Description: t.Description,
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Names returns the sorted template names, used by validation errors to tell
// the caller what is available.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.cache))
	for name := range s.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// missingkey=zero keeps absent fields as empty output instead of failing the
// whole expansion.
func compile(name, content string) (*htmltemplate.Template, error) {
	return htmltemplate.New(name).Option("missingkey=zero").Parse(content)
}

func compileBuiltin() *Template {
	tmpl, err := compile(builtinName, builtinContent)
	if err != nil {
		logger.ErrorCF("templates", "Builtin template failed to parse", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return &Template{
		Name:        builtinName,
		DisplayName: "Notification",
		Description: "Builtin fallback notification template",
		File:        builtinName + fileSuffix,
		tmpl:        tmpl,
	}
}
