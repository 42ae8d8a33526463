package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/wolfman30/docbook-web/internal/admin"
	"github.com/wolfman30/docbook-web/internal/lookup"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// page is the data every template receives. Body is handed to the page's
// "content" block.
type page struct {
	Title        string
	Admin        bool
	AdminSubject string
	Notice       string
	Error        string
	Body         any
}

// Renderer renders the embedded HTML pages with strict missing-key semantics.
type Renderer struct {
	pages  map[string]*template.Template
	logger *logging.Logger
}

// NewRenderer parses the layout once and clones it for every page.
func NewRenderer(logger *logging.Logger) (*Renderer, error) {
	if logger == nil {
		logger = logging.Default()
	}
	base, err := template.New("layout").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"formatDate":    lookup.FormatDate,
			"formatTime":    lookup.FormatTime,
			"statusDisplay": lookup.DisplayFor,
			"transitions":   admin.Transitions,
		}).
		ParseFS(templateFS, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("templates: parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("templates: list: %w", err)
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("templates: clone layout: %w", err)
		}
		if _, err := clone.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".html")] = clone
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Render executes the named page into a buffer so a failing template never
// leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data page) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown page template", "page", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
