package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/circolari/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Raw HTML in scraped bodies is escaped; goldmark is not in unsafe mode.
var md = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// Store is the read-only view of the notice store the dashboard needs.
type Store interface {
	RecentNotices(ctx context.Context, f database.NoticeFilter) ([]database.Notice, error)
	GetNotice(ctx context.Context, id int64) (*database.Notice, error)
	Categories(ctx context.Context) ([]string, error)
	Statistics(ctx context.Context) (*database.Stats, error)
	RecentRunLogs(ctx context.Context, limit int) ([]database.RunLog, error)
}

// Server is the HTTP server for the notices dashboard.
type Server struct {
	store Store
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(store Store) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"formatDate": database.FormatDateDisplay,
		"filename":   attachmentName,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not clash.
	pageNames := []string{"index.html", "notice.html", "runs.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{store: store, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/notice/", s.handleNotice)
	s.mux.HandleFunc("/runs", s.handleRuns)

	s.mux.HandleFunc("/api/notices", s.handleAPINotices)
	s.mux.HandleFunc("/api/stats", s.handleAPIStats)
	s.mux.HandleFunc("/api/runs", s.handleAPIRuns)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	filter := noticeFilter(r, 50)

	data := map[string]any{
		"Category": filter.Category,
		"Days":     r.URL.Query().Get("days"),
	}

	stats, err := s.store.Statistics(ctx)
	if err != nil {
		log.Printf("Loading statistics: %v", err)
		data["Error"] = "Il database non è raggiungibile."
		s.render(w, "index.html", data)
		return
	}
	notices, err := s.store.RecentNotices(ctx, filter)
	if err != nil {
		log.Printf("Loading notices: %v", err)
		data["Error"] = "Il database non è raggiungibile."
		s.render(w, "index.html", data)
		return
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		log.Printf("Loading categories: %v", err)
	}

	data["Stats"] = stats
	data["Notices"] = notices
	data["Categories"] = categories
	s.render(w, "index.html", data)
}

func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/notice/"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	n, err := s.store.GetNotice(r.Context(), id)
	if err != nil {
		log.Printf("Loading notice %d: %v", id, err)
	}
	if n == nil {
		w.WriteHeader(http.StatusNotFound)
	}

	s.render(w, "notice.html", map[string]any{
		"Notice": n,
		"ID":     id,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	runs, err := s.store.RecentRunLogs(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		log.Printf("Loading run logs: %v", err)
		data["Error"] = "Il database non è raggiungibile."
	}
	data["Runs"] = runs
	s.render(w, "runs.html", data)
}

type noticeJSON struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Body            string   `json:"body"`
	PublicationDate string   `json:"publication_date"`
	AttachmentRefs  []string `json:"attachment_refs"`
	Category        string   `json:"category"`
	Source          string   `json:"source"`
	CreatedAt       *string  `json:"created_at,omitempty"`
}

type statsJSON struct {
	Total       int                      `json:"total"`
	Last7Days   int                      `json:"last_7_days"`
	Last24Hours int                      `json:"last_24_hours"`
	PerCategory []database.CategoryCount `json:"per_category"`
	MostRecent  string                   `json:"most_recent,omitempty"`
	RunLogs     int                      `json:"run_logs"`
}

type runJSON struct {
	ID           int64   `json:"id"`
	Status       string  `json:"status"`
	RecordsFound int     `json:"records_found"`
	RecordsSaved int     `json:"records_saved"`
	ErrorDetail  *string `json:"error_detail"`
	Timestamp    *string `json:"timestamp"`
}

func (s *Server) handleAPINotices(w http.ResponseWriter, r *http.Request) {
	notices, err := s.store.RecentNotices(r.Context(), noticeFilter(r, 50))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]noticeJSON, len(notices))
	for i, n := range notices {
		out[i] = noticeJSON{
			ID:              n.ID,
			Title:           n.Title,
			Body:            n.Body,
			PublicationDate: database.FormatDate(n.PublicationDate),
			AttachmentRefs:  n.AttachmentRefs,
			Category:        n.Category,
			Source:          n.Source,
			CreatedAt:       n.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := statsJSON{
		Total:       stats.Total,
		Last7Days:   stats.Last7Days,
		Last24Hours: stats.Last24Hours,
		PerCategory: stats.PerCategory,
		RunLogs:     stats.RunLogs,
	}
	if out.PerCategory == nil {
		out.PerCategory = []database.CategoryCount{}
	}
	if stats.MostRecent != nil {
		out.MostRecent = database.FormatDate(*stats.MostRecent)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.RecentRunLogs(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]runJSON, len(runs))
	for i, rl := range runs {
		out[i] = runJSON{
			ID:           rl.ID,
			Status:       string(rl.Status),
			RecordsFound: rl.RecordsFound,
			RecordsSaved: rl.RecordsSaved,
			ErrorDetail:  rl.ErrorDetail,
			Timestamp:    rl.Timestamp,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	log.Printf("API error: %v", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
}

// noticeFilter reads ?category=, ?days= and ?limit= from the request.
func noticeFilter(r *http.Request, defaultLimit int) database.NoticeFilter {
	q := r.URL.Query()
	f := database.NoticeFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Limit:    queryInt(r, "limit", defaultLimit),
	}
	if days := queryInt(r, "days", 0); days > 0 {
		f.Since = database.TruncateDay(time.Now()).AddDate(0, 0, -days)
	}
	return f
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	if v > 500 {
		return 500
	}
	return v
}

func attachmentName(ref string) string {
	name := path.Base(strings.SplitN(strings.SplitN(ref, "?", 2)[0], "#", 2)[0])
	if name == "." || name == "/" || name == "" {
		return ref
	}
	return name
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(store Store, port int) error {
	srv, err := New(store)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
