// Package server is a small local viewer over the run journal.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/vgrigoriev/catwall/internal/journal"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New()

// Server serves recent invocation outcomes.
type Server struct {
	db    *journal.DB
	index *template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *journal.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	index, err := template.New("index.html").Funcs(funcMap).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	s := &Server{db: db, index: index, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.Recent(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		Runs  []journal.Run
		Stats *journal.Stats
	}{runs, stats}

	var buf bytes.Buffer
	if err := s.index.Execute(&buf, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// renderMarkdown converts an outcome message to HTML.
func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

// Serve starts the viewer on the given port.
func Serve(db *journal.DB, port int) error {
	s, err := New(db)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("localhost:%d", port)
	log.Printf("Serving run journal at http://%s", addr)
	return http.ListenAndServe(addr, s)
}
