// Package web serves the browser UI: server rendered pages, the legal pages
// written in Markdown and the static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"actms/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

//go:embed legal/*.md
var legalFS embed.FS

type page struct {
	path     string
	file     string
	title    string
	active   string
	legalDoc string
}

var pages = []page{
	{path: "/", file: "home.html", title: "Home", active: "home"},
	{path: "/dashboard", file: "dashboard.html", title: "Dashboard", active: "dashboard"},
	{path: "/tenders", file: "tenders.html", title: "Tenders", active: "tenders"},
	{path: "/bids", file: "bids.html", title: "Bids", active: "bids"},
	{path: "/ai-analysis", file: "ai_analysis.html", title: "AI Analysis", active: "ai-analysis"},
	{path: "/chat", file: "chat.html", title: "Assistant", active: "chat"},
	{path: "/privacy", file: "legal.html", title: "Privacy Policy", legalDoc: "privacy"},
	{path: "/terms", file: "legal.html", title: "Terms of Service", legalDoc: "terms"},
	{path: "/contact", file: "legal.html", title: "Contact", legalDoc: "contact"},
	{path: "/docs", file: "legal.html", title: "Documentation", legalDoc: "docs"},
}

// pageData is what every template receives.
type pageData struct {
	Title    string
	Active   string
	PageType string
	Body     template.HTML
	Year     int
}

// Site holds the parsed pages.
type Site struct {
	pages map[string]*renderedPage
	log   *zap.Logger
}

type renderedPage struct {
	tmpl *template.Template
	data pageData
}

// New parses every template and renders the Markdown pages once.
func New(log *zap.Logger) (*Site, error) {
	s := &Site{pages: make(map[string]*renderedPage, len(pages)), log: log.Named("web")}
	for _, p := range pages {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+p.file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p.file, err)
		}
		data := pageData{Title: p.title, Active: p.active, PageType: p.legalDoc}
		if p.legalDoc != "" {
			src, err := legalFS.ReadFile("legal/" + p.legalDoc + ".md")
			if err != nil {
				return nil, fmt.Errorf("read %s page: %w", p.legalDoc, err)
			}
			if data.Body, err = render.Markdown(src); err != nil {
				return nil, fmt.Errorf("render %s page: %w", p.legalDoc, err)
			}
		}
		s.pages[p.path] = &renderedPage{tmpl: tmpl, data: data}
	}
	return s, nil
}

// RegisterRoutes mounts the pages and /static/* on r.
func (s *Site) RegisterRoutes(r chi.Router) {
	for path, p := range s.pages {
		r.Get(path, s.serve(p))
	}
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
}

func (s *Site) serve(p *renderedPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := p.data
		data.Year = time.Now().Year()

		var buf bytes.Buffer
		if err := p.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
			s.log.Error("render page failed", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}
