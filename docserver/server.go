package docserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/vitalvas/pagespec/openapi"
)

var (
	ErrStart    = errors.New("docserver: start")
	ErrShutdown = errors.New("docserver: shutdown")
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSwaggerUIConfig passes extra SwaggerUIBundle options to every page.
func WithSwaggerUIConfig(cfg map[string]any) Option {
	return func(s *Server) {
		s.swaggerConfig = cfg
	}
}

// Server serves every page of a registry under Config.BasePath:
//
//	<base>/                   - JSON index of pages
//	<base>/{page}/            - interactive docs
//	<base>/{page}/schema.json - document as JSON
//	<base>/{page}/schema.yaml - document as YAML
//
// Pages are resolved per request, so pages created after New are served.
type Server struct {
	cfg           Config
	registry      *openapi.Registry
	logger        *slog.Logger
	swaggerConfig map[string]any
	base          string
	router        chi.Router

	mu       sync.Mutex
	handlers map[openapi.PageID]*pageHandlers
	srv      *http.Server
}

type pageHandlers struct {
	docs http.Handler
	json http.Handler
	yaml http.Handler
}

// New returns a Server for reg.
func New(reg *openapi.Registry, cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		registry: reg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		base:     strings.TrimRight(cfg.BasePath, "/"),
		handlers: make(map[openapi.PageID]*pageHandlers),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(RequestID, Recovery(s.logger), AccessLog(s.logger), Gzip(cfg.CompressionMinLength))

	r.Get(s.base+"/", s.serveIndex)
	if s.base != "" {
		r.Get(s.base, s.serveIndex)
	}

	r.Route(s.base+"/{page}", func(r chi.Router) {
		r.Get("/", s.servePage(func(h *pageHandlers) http.Handler { return h.docs }))
		r.With(noCache).Get("/schema.json", s.servePage(func(h *pageHandlers) http.Handler { return h.json }))
		r.With(noCache).Get("/schema.yaml", s.servePage(func(h *pageHandlers) http.Handler { return h.yaml }))
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the underlying router so callers can mount their own
// routes next to the documentation.
func (s *Server) Router() chi.Router {
	return s.router
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) pageURL(id openapi.PageID) string {
	return s.base + "/" + string(id)
}

// lookup returns the handlers of an existing page. Unknown ids are not
// created.
func (s *Server) lookup(id openapi.PageID) (*pageHandlers, bool) {
	if !slices.Contains(s.registry.Pages(), id) {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handlers[id]; ok {
		return h, true
	}

	page := s.registry.Page(id)
	h := &pageHandlers{
		docs: openapi.DocsHandler(page, &openapi.HandleConfig{
			UI:              openapi.ParseDocsUI(s.cfg.UI),
			SwaggerUIConfig: s.swaggerConfig,
		}, s.pageURL(id)+"/schema.json"),
		json: openapi.JSONHandler(page),
		yaml: openapi.YAMLHandler(page),
	}
	s.handlers[id] = h
	return h, true
}

func (s *Server) servePage(pick func(*pageHandlers) http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := openapi.PageID(chi.URLParam(r, "page"))

		h, ok := s.lookup(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		pick(h).ServeHTTP(w, r)
	}
}

// PageSummary describes one page in the index.
type PageSummary struct {
	ID         openapi.PageID `json:"id"`
	Title      string         `json:"title"`
	Version    string         `json:"version"`
	Operations int            `json:"operations"`
	Docs       string         `json:"docs"`
	JSON       string         `json:"json"`
	YAML       string         `json:"yaml"`
}

// Index is the body of <base>/.
type Index struct {
	Pages []PageSummary `json:"pages"`
}

func (s *Server) index() Index {
	ids := s.registry.Pages()
	idx := Index{Pages: make([]PageSummary, 0, len(ids))}

	for _, id := range ids {
		page := s.registry.Page(id)
		info := page.Info()
		url := s.pageURL(id)

		idx.Pages = append(idx.Pages, PageSummary{
			ID:         id,
			Title:      info.Title,
			Version:    info.Version,
			Operations: page.Operations(),
			Docs:       url + "/",
			JSON:       url + "/schema.json",
			YAML:       url + "/schema.yaml",
		})
	}
	return idx
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(s.index())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode page index", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Run listens on Config.Addr until ctx is done, then shuts down within
// Config.ShutdownTimeout. It returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("docs server started", slog.String("addr", s.cfg.Addr), slog.String("base_path", s.base+"/"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Join(ErrStart, err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.Shutdown(context.Background())
}

// Shutdown stops a running server, waiting at most Config.ShutdownTimeout
// for in-flight requests. It is a no-op when Run was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("docs server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Join(ErrShutdown, fmt.Errorf("addr %s: %w", s.cfg.Addr, err))
	}
	return nil
}
