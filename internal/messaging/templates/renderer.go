package templates

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

// Renderer renders small text templates for outbound messaging. Parsed templates are cached by name.
type Renderer struct {
	mu    sync.RWMutex
	cache map[string]*template.Template
}

// NewRenderer returns a renderer with an empty cache.
func NewRenderer() *Renderer {
	return &Renderer{cache: make(map[string]*template.Template)}
}

// Render compiles the provided template text with strict missing-key semantics.
func (r *Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("templates: template text required")
	}
	t, err := r.lookup(name, tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) lookup(name, tmpl string) (*template.Template, error) {
	r.mu.RLock()
	t, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("templates: parse %s: %w", name, err)
	}
	r.mu.Lock()
	if r.cache == nil {
		r.cache = make(map[string]*template.Template)
	}
	r.cache[name] = t
	r.mu.Unlock()
	return t, nil
}
