package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"shulscreen/internal/config"
	"shulscreen/internal/ics"
	appLog "shulscreen/internal/log"
	"shulscreen/internal/metrics"
	"shulscreen/internal/model"
	"shulscreen/internal/refresh"
)

// Boards is what the server needs from the refresh controller.
type Boards interface {
	Board() *model.Board
	Status() refresh.Status
	Trigger(ctx context.Context) error
}

// Server serves the board page and its JSON/ICS/PNG views.
type Server struct {
	cfg     *config.Config
	boards  Boards
	metrics *metrics.Manager
	router  *chi.Mux
	page    *template.Template

	// refreshTimeout bounds a manual refresh so a hung upstream does not pin
	// the request.
	refreshTimeout time.Duration
	refreshLimit   int
}

//go:embed all:static
var embeddedStatic embed.FS

//go:embed templates/*.html
var embeddedTemplates embed.FS

// pageReloadSeconds is how often the browser re-requests the board page.
const pageReloadSeconds = 60

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, boards Boards, m *metrics.Manager) *Server {
	s := &Server{
		cfg:            cfg,
		boards:         boards,
		metrics:        m,
		router:         chi.NewRouter(),
		page:           template.Must(template.ParseFS(embeddedTemplates, "templates/board.html")),
		refreshTimeout: 60 * time.Second,
		refreshLimit:   6,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password leaves auth off.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Shul Screen", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleBoardPage)
	r.Handle("/static/*", s.staticFileServer())
	r.Get("/preview.png", s.handlePreview)
	r.Get("/calendar.ics", s.handleCalendar)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/board", s.handleBoard)
		r.Get("/status", s.handleStatus)
		r.With(httprate.LimitByIP(s.refreshLimit, time.Minute)).Post("/refresh", s.handleRefresh)
	})
}

// requestLogger logs one line per request once the response is written.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		appLog.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type pageData struct {
	Board  *model.Board
	Status refresh.Status
	Reload int
}

// handleBoardPage renders the full-screen board. Before the first applied
// cycle it renders the loading state with data-ready="false".
func (s *Server) handleBoardPage(w http.ResponseWriter, _ *http.Request) {
	data := pageData{
		Board:  s.boards.Board(),
		Status: s.boards.Status(),
		Reload: pageReloadSeconds,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.page.Execute(w, data); err != nil {
		appLog.Error("failed to render board page", err)
	}
}

// staticFileServer serves the embedded stylesheet under /static/.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static files not available", http.StatusServiceUnavailable)
		})
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// handlePreview serves the last captured board screenshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// http.ServeFile answers 404 for a missing file.
	http.ServeFile(w, r, s.cfg.PreviewPath())
}

func (s *Server) handleBoard(w http.ResponseWriter, _ *http.Request) {
	b := s.boards.Board()
	if b == nil {
		writeError(w, http.StatusServiceUnavailable, "board not ready")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.boards.Status())
}

// handleRefresh runs a cycle now and answers with the resulting status. A
// failed cycle leaves the previous board in place and answers 502.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.refreshTimeout)
	defer cancel()

	appLog.Info("manual refresh requested", "remote", r.RemoteAddr)
	if err := s.boards.Trigger(ctx); err != nil {
		writeJSON(w, http.StatusBadGateway, s.boards.Status())
		return
	}
	writeJSON(w, http.StatusOK, s.boards.Status())
}

// handleCalendar exports this week's davening times as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	b := s.boards.Board()
	if b == nil {
		writeError(w, http.StatusServiceUnavailable, "board not ready")
		return
	}

	loc, err := s.cfg.Location()
	if err != nil {
		loc = time.Local
	}
	body, err := ics.Export(b, ics.ExportOptions{Location: loc})
	if err != nil {
		appLog.Error("calendar export failed", err, "cycle", b.CycleID)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="davening.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
