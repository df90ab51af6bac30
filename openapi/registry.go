package openapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PageID identifies a page.
type PageID string

// DefaultPage is the page every descriptor joins unless it sets NoDefault.
const DefaultPage PageID = "everything"

// Registry owns one Page per PageID. Pages are created on first access and
// live as long as the registry. Construct one registry at startup and pass
// it to registration and serving code.
type Registry struct {
	defaultInfo Info
	infos       map[PageID]Info
	logger      *slog.Logger

	mu    sync.Mutex
	pages map[PageID]*Page
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaultInfo sets the info used for pages without their own. An empty
// title is replaced by the page id.
func WithDefaultInfo(info Info) RegistryOption {
	return func(r *Registry) {
		r.defaultInfo = info
	}
}

// WithPage fixes the title and version of page id.
func WithPage(id PageID, info Info) RegistryOption {
	return func(r *Registry) {
		r.infos[id] = info
	}
}

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		infos:  make(map[PageID]Info),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		pages:  make(map[PageID]*Page),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Page returns the page for id, creating it on first use. Repeated calls
// with the same id return the same *Page.
func (r *Registry) Page(id PageID) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pages[id]; ok {
		return p
	}

	p := NewPage(r.infoFor(id))
	r.pages[id] = p
	r.logger.Debug("page created", slog.String("page", string(id)))
	return p
}

// Pages returns the ids of the pages created so far, sorted.
func (r *Registry) Pages() []PageID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.pages))
}

func (r *Registry) infoFor(id PageID) Info {
	if info, ok := r.infos[id]; ok {
		return info
	}
	info := r.defaultInfo
	if info.Title == "" {
		info.Title = string(id)
	}
	return info
}

// Targets returns the pages d is registered with: DefaultPage unless
// excluded, then d.Pages without duplicates.
func Targets(d Descriptor) []PageID {
	var ids []PageID
	if !d.NoDefault {
		ids = append(ids, DefaultPage)
	}
	for _, id := range d.Pages {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Register adds d under prefix to every page it targets. Failures on
// individual pages are joined; the other pages still receive d.
func (r *Registry) Register(prefix string, d Descriptor) error {
	var errs []error
	for _, id := range Targets(d) {
		page := r.Page(id)

		full := JoinPath(prefix, d.Path)
		if page.Lookup(d.Method, full) != nil {
			r.logger.Debug("operation replaced",
				slog.String("page", string(id)),
				slog.String("method", d.Method.String()),
				slog.String("path", full),
				slog.String("ident", d.Ident),
			)
		}

		if err := page.AddHandler(prefix, d); err != nil {
			r.logger.Error("registration failed",
				slog.String("page", string(id)),
				slog.String("ident", d.Ident),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterAll registers descs concurrently, as handlers initialised in
// parallel would. It returns the joined registration errors once every
// descriptor has been processed, or ctx.Err() if ctx ends first.
func (r *Registry) RegisterAll(ctx context.Context, prefix string, descs ...Descriptor) error {
	eg, ctx := errgroup.WithContext(ctx)

	var (
		mu   sync.Mutex
		errs []error
	)

	for _, d := range descs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.Register(prefix, d); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
