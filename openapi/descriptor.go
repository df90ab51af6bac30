package openapi

import (
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Descriptor is the static metadata one handler contributes to the pages
// it belongs to. Descriptors are plain values built once at program start.
//
// See: https://spec.openapis.org/oas/v3.1.0#operation-object
type Descriptor struct {
	Method     Method
	Path       string
	Deprecated bool
	Doc        []string
	Ident      string
	Tags       []string

	// Responses is evaluated lazily, once per page the descriptor is
	// registered with.
	Responses ResponsesFunc

	// Arguments holds one entry per handler parameter. A nil entry is a
	// parameter that contributes nothing, e.g. injected state.
	Arguments []*Argument

	// Pages lists the pages the handler belongs to in addition to
	// DefaultPage. NoDefault removes it from DefaultPage.
	Pages     []PageID
	NoDefault bool

	// Handler is the runnable binding used by the chiroute package.
	Handler http.Handler
}

// ResponsesFunc produces the responses of an operation.
type ResponsesFunc func(g *Generator) Responses

// Argument is the contribution of one handler parameter. Either hook may
// be nil.
type Argument struct {
	Parameters  func(g *Generator, pathVars []string) []*Parameter
	RequestBody func(g *Generator) *RequestBody
}

// Responses maps a status key ("200", "default", ...) to a response.
//
// See: https://spec.openapis.org/oas/v3.1.0#responses-object
type Responses map[string]*Response

// NewResponses returns an empty Responses.
func NewResponses() Responses {
	return make(Responses)
}

// Add registers an application/json response for status. A nil schema
// produces a response without content.
func (r Responses) Add(status int, schema *Schema) Responses {
	return r.Content(strconv.Itoa(status), "application/json", schema)
}

// Default registers an application/json response under "default".
func (r Responses) Default(schema *Schema) Responses {
	return r.Content("default", "application/json", schema)
}

// Content registers a response for key with the given content type.
//
// See: https://spec.openapis.org/oas/v3.1.0#response-object
// See: https://spec.openapis.org/oas/v3.1.0#media-type-object
func (r Responses) Content(key, contentType string, schema *Schema) Responses {
	resp, ok := r[key]
	if !ok {
		resp = &Response{Description: responseDescription(key)}
		r[key] = resp
	}
	if schema == nil {
		return r
	}
	if resp.Content == nil {
		resp.Content = make(map[string]*MediaType)
	}
	resp.Content[contentType] = &MediaType{Schema: schema}
	return r
}

// ResponseOf returns a ResponsesFunc answering status with the schema of T.
func ResponseOf[T any](status int) ResponsesFunc {
	return func(g *Generator) Responses {
		return NewResponses().Add(status, SchemaFor[T](g))
	}
}

// NoContent returns a ResponsesFunc answering status without a body.
//
// See: https://spec.openapis.org/oas/v3.1.0#response-object
func NoContent(status int) ResponsesFunc {
	return func(*Generator) Responses {
		return NewResponses().Add(status, nil)
	}
}

// BodyOf returns an Argument contributing a required application/json
// request body of type T.
//
// See: https://spec.openapis.org/oas/v3.1.0#request-body-object
func BodyOf[T any]() *Argument {
	return &Argument{
		RequestBody: func(g *Generator) *RequestBody {
			return &RequestBody{
				Required: true,
				Content: map[string]*MediaType{
					"application/json": {Schema: SchemaFor[T](g)},
				},
			}
		},
	}
}

// paramTags are the struct tags that bind parameters, in "in" order.
var paramTags = []string{"path", "query", "header", "cookie"}

// ParamsOf returns an Argument contributing one parameter per field of the
// struct T tagged with path, query, header or cookie. A `doc` tag sets the
// description and required:"true" marks the parameter required; path
// parameters are always required.
//
// See: https://spec.openapis.org/oas/v3.1.0#parameter-object
func ParamsOf[T any]() *Argument {
	return &Argument{
		Parameters: func(g *Generator, _ []string) []*Parameter {
			return extractParameters(g, reflect.TypeFor[T]())
		},
	}
}

func extractParameters(g *Generator, t reflect.Type) []*Parameter {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var params []*Parameter
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		for _, in := range paramTags {
			name := f.Tag.Get(in)
			if name == "" {
				continue
			}

			p := &Parameter{
				Name:        name,
				In:          in,
				Description: f.Tag.Get("doc"),
				Required:    in == "path" || f.Tag.Get("required") == "true",
				Schema:      g.generateType(f.Type),
			}
			if p.Schema != nil {
				applyOpenAPITag(p.Schema, f.Tag.Get("openapi"))
			}
			params = append(params, p)
		}
	}

	return params
}

// buildOperation evaluates the descriptor hooks against g.
func buildOperation(g *Generator, d *Descriptor, pathParams []*Parameter) *Operation {
	summary, description := splitDoc(d.Doc)

	op := &Operation{
		Tags:        normalizeTags(d.Tags),
		Summary:     summary,
		Description: description,
		OperationID: d.Ident,
		Deprecated:  d.Deprecated,
	}

	vars := pathVarNames(pathParams)
	var custom []*Parameter
	for _, arg := range d.Arguments {
		if arg == nil {
			continue
		}
		if arg.Parameters != nil {
			custom = append(custom, arg.Parameters(g, vars)...)
		}
		if arg.RequestBody != nil {
			if body := arg.RequestBody(g); body != nil {
				op.RequestBody = body
			}
		}
	}
	op.Parameters = mergeParameters(pathParams, custom)

	if d.Responses != nil {
		op.Responses = d.Responses(g)
	}
	if len(op.Responses) == 0 {
		op.Responses = Responses{"default": {Description: responseDescription("default")}}
	}

	return op
}

// splitDoc derives summary and description from documentation lines: the
// first non-blank line is the summary, the rest is the description.
func splitDoc(doc []string) (string, string) {
	for i, line := range doc {
		if summary := strings.TrimSpace(line); summary != "" {
			rest := make([]string, 0, len(doc)-i-1)
			for _, l := range doc[i+1:] {
				rest = append(rest, strings.TrimSpace(l))
			}
			return summary, strings.TrimSpace(strings.Join(rest, "\n"))
		}
	}
	return "", ""
}

// normalizeTags returns the distinct tags in sorted order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := slices.Clone(tags)
	slices.Sort(out)
	return slices.Compact(out)
}
