package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jaminalder/codex-reversi/internal/app"
)

// DefaultHeartbeat is the SSE keep-alive interval used when none is set.
const DefaultHeartbeat = 15 * time.Second

// Options tunes the HTTP surface.
type Options struct {
	Heartbeat  time.Duration
	// RequestLog enables chi's request logger.
	RequestLog bool
}

// NewServer wires routes and returns an http.Handler.
func NewServer(s *app.Service) http.Handler {
	return NewServerWithOptions(s, Options{})
}

// NewServerWithOptions wires routes with explicit options. It also installs
// the board fragment renderer used for SSE broadcasts.
func NewServerWithOptions(s *app.Service, opts Options) http.Handler {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	h := &handlers{svc: s, tpl: loadTemplates(), heartbeat: opts.Heartbeat}
	s.SetRenderer(func(bs app.BoardState) []byte { return h.renderBoard(bs, 0, "", "") })

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.RequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/", h.index)
	r.Post("/board", h.create)
	r.Route("/board/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Get("/fragment", h.fragment)
		r.Post("/check", h.check)
		r.Get("/events", h.events)
	})
	r.Route("/api/boards", func(r chi.Router) {
		r.Post("/", h.apiCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.apiGet)
			r.Delete("/", h.apiDelete)
			r.Put("/grid", h.apiReplace)
			r.Get("/result", h.apiResult)
			r.Get("/fields", h.apiFields)
			r.Get("/moves", h.apiMoves)
			r.Get("/moves/check", h.apiCheck)
		})
	})
	return r
}
