// Package templates renders quill's HTML pages with pongo2.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"
)

//go:embed html/*.html
var htmlFS embed.FS

const extension = ".html"

var registerFilters sync.Once

// Engine renders the embedded page templates. It satisfies fiber.Views.
type Engine struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
}

// New returns an engine over the embedded templates. globals are visible to
// every page.
func New(globals map[string]any) (*Engine, error) {
	sub, err := fs.Sub(htmlFS, "html")
	if err != nil {
		return nil, fmt.Errorf("templates: open embedded html: %w", err)
	}

	var regErr error
	registerFilters.Do(func() {
		for name, fn := range map[string]pongo2.FilterFunction{
			"mul":        filterMul,
			"paragraphs": filterParagraphs,
		} {
			if pongo2.FilterExists(name) {
				continue
			}
			if err := pongo2.RegisterFilter(name, fn); err != nil {
				regErr = fmt.Errorf("templates: register %s: %w", name, err)
				return
			}
		}
	})
	if regErr != nil {
		return nil, regErr
	}

	set := pongo2.NewSet("quill", pongo2.NewFSLoader(sub))
	set.Globals = pongo2.Context{}
	set.Globals.Update(globals)

	return &Engine{
		set:       set,
		templates: make(map[string]*pongo2.Template),
	}, nil
}

// Load parses every template up front so syntax errors surface at startup.
func (e *Engine) Load() error {
	entries, err := fs.ReadDir(htmlFS, "html")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := e.template(entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

// Render executes template name with data. data may be a map or
// pongo2.Context; layouts are not used.
func (e *Engine) Render(w io.Writer, name string, data any, _ ...string) error {
	tmpl, err := e.template(name)
	if err != nil {
		return err
	}

	var ctx pongo2.Context
	switch v := data.(type) {
	case nil:
		ctx = pongo2.Context{}
	case pongo2.Context:
		ctx = v
	case map[string]any:
		ctx = pongo2.Context(v)
	case fiber.Map:
		ctx = pongo2.Context(v)
	default:
		return fmt.Errorf("templates: unsupported data type %T", data)
	}

	if err := tmpl.ExecuteWriter(ctx, w); err != nil {
		return fmt.Errorf("templates: execute %q: %w", name, err)
	}
	return nil
}

// RenderString executes an inline template. Used for small fragments.
func (e *Engine) RenderString(src string, data map[string]any) (string, error) {
	tmpl, err := e.set.FromString(src)
	if err != nil {
		return "", fmt.Errorf("templates: parse inline: %w", err)
	}
	return tmpl.Execute(pongo2.Context(data))
}

func (e *Engine) template(name string) (*pongo2.Template, error) {
	if name == "" {
		return nil, errors.New("templates: empty template name")
	}
	if !strings.HasSuffix(name, extension) {
		name += extension
	}

	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("templates: load %q: %w", name, err)
	}
	e.templates[name] = tmpl
	return tmpl, nil
}
