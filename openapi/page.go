package openapi

import (
	"runtime/debug"
	"sync"
)

// Page aggregates descriptors into one OpenAPI document.
//
// All state (path table, schema store, cached document) sits behind a
// single mutex. AddHandler holds it across schema generation and the table
// update, so concurrent registrations are serialized and Build observes
// each registration completely or not at all.
type Page struct {
	info Info

	mu         sync.Mutex
	paths      map[string]*PathItem
	store      *SchemaStore
	tagDescs   map[string]string
	cached     *Document
	generation uint64
}

// NewPage returns an empty page with fixed title and version.
func NewPage(info Info) *Page {
	return &Page{
		info:  info,
		paths: make(map[string]*PathItem),
		store: NewSchemaStore(),
	}
}

// Info returns the page title and version.
func (p *Page) Info() Info {
	return p.info
}

// AddHandler generates the operation for d and stores it under the full
// path prefix+d.Path in the slot of d.Method. An operation already stored
// for that path and method is replaced. The cached document is dropped.
//
// A panic raised by a descriptor hook is returned as a *GenerationError
// and leaves the page exactly as it was before the call.
func (p *Page) AddHandler(prefix string, d Descriptor) error {
	if !d.Method.Valid() {
		return &RegistrationError{
			Ident:  d.Ident,
			Method: d.Method,
			Path:   d.Path,
			Err:    &MethodError{Method: string(d.Method)},
		}
	}
	if prefix == "" && d.Path == "" {
		return &RegistrationError{Ident: d.Ident, Method: d.Method, Err: ErrEmptyPath}
	}

	fullPath, pathParams := parsePath(JoinPath(prefix, d.Path))

	p.mu.Lock()
	defer p.mu.Unlock()

	op, err := p.generate(&d, pathParams)
	if err != nil {
		return &RegistrationError{Ident: d.Ident, Method: d.Method, Path: fullPath, Err: err}
	}

	item, ok := p.paths[fullPath]
	if !ok {
		item = &PathItem{}
		p.paths[fullPath] = item
	}
	*item.slot(d.Method) = op

	p.invalidate()
	return nil
}

// MustAddHandler is like AddHandler but panics on error.
func (p *Page) MustAddHandler(prefix string, d Descriptor) {
	if err := p.AddHandler(prefix, d); err != nil {
		panic(err)
	}
}

// generate runs the descriptor hooks with a generator bound to this call.
// Staged schemas are committed only when every hook returns normally.
func (p *Page) generate(d *Descriptor, pathParams []*Parameter) (op *Operation, err error) {
	g := newGenerator(p.store)

	defer func() {
		if rv := recover(); rv != nil {
			g.close()
			op = nil
			err = &GenerationError{Value: rv, Stack: debug.Stack()}
		}
	}()

	op = buildOperation(g, d, pathParams)
	g.commit()
	return op, nil
}

// DescribeTag sets the description emitted for tag in the document tags.
func (p *Page) DescribeTag(tag, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tagDescs == nil {
		p.tagDescs = make(map[string]string)
	}
	p.tagDescs[tag] = description
	p.invalidate()
}

// Build returns the current document. The same *Document is returned
// until the page changes. Callers must treat it as read-only.
func (p *Page) Build() *Document {
	doc, _ := p.Snapshot()
	return doc
}

// Snapshot is Build plus the generation the document was built from.
func (p *Page) Snapshot() (*Document, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached == nil {
		p.cached = assemble(p.info, p.paths, p.store, p.tagDescs)
	}
	return p.cached, p.generation
}

// Lookup returns the operation stored for method under the full path
// template, or nil. Macros in path are stripped as in AddHandler.
func (p *Page) Lookup(method Method, path string) *Operation {
	if !method.Valid() {
		return nil
	}
	fullPath, _ := parsePath(JoinPath("", path))

	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok := p.paths[fullPath]
	if !ok {
		return nil
	}
	return item.Operation(method)
}

// Generation counts the changes applied to the page.
func (p *Page) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Operations returns the number of populated operation slots.
func (p *Page) Operations() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, item := range p.paths {
		n += len(item.operations())
	}
	return n
}

func (p *Page) invalidate() {
	p.cached = nil
	p.generation++
}
