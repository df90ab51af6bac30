package openapi

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Document is the assembled OpenAPI v3.1.0 document of one page.
// Documents returned by Page.Build are shared snapshots and must not be
// modified by the caller.
//
// See: https://spec.openapis.org/oas/v3.1.0#openapi-object
type Document struct {
	OpenAPI    string               `json:"openapi"`
	Info       Info                 `json:"info"`
	Paths      map[string]*PathItem `json:"paths,omitempty"`
	Components *Components          `json:"components,omitempty"`
	Tags       []Tag                `json:"tags,omitempty"`
}

// Info carries the page title and version. The remaining Info Object
// fields are never populated by the aggregator.
//
// See: https://spec.openapis.org/oas/v3.1.0#info-object
type Info struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// PathItem holds one operation slot per HTTP method.
//
// See: https://spec.openapis.org/oas/v3.1.0#path-item-object
type PathItem struct {
	Get     *Operation `json:"get,omitempty"`
	Put     *Operation `json:"put,omitempty"`
	Post    *Operation `json:"post,omitempty"`
	Delete  *Operation `json:"delete,omitempty"`
	Options *Operation `json:"options,omitempty"`
	Head    *Operation `json:"head,omitempty"`
	Patch   *Operation `json:"patch,omitempty"`
	Trace   *Operation `json:"trace,omitempty"`
}

// Operation returns the operation stored in the slot for method, or nil.
func (p *PathItem) Operation(method Method) *Operation {
	if slot := p.slot(method); slot != nil {
		return *slot
	}
	return nil
}

// slot returns the address of the field backing method.
func (p *PathItem) slot(method Method) **Operation {
	switch method {
	case MethodGet:
		return &p.Get
	case MethodPost:
		return &p.Post
	case MethodPut:
		return &p.Put
	case MethodDelete:
		return &p.Delete
	case MethodHead:
		return &p.Head
	case MethodOptions:
		return &p.Options
	case MethodPatch:
		return &p.Patch
	case MethodTrace:
		return &p.Trace
	}
	return nil
}

// operations returns the populated slots in a fixed method order.
func (p *PathItem) operations() []*Operation {
	ops := make([]*Operation, 0, len(methods))
	for _, m := range methods {
		if op := p.Operation(m); op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

// Operation describes a single API operation on a path.
//
// See: https://spec.openapis.org/oas/v3.1.0#operation-object
type Operation struct {
	Tags        []string             `json:"tags,omitempty"`
	Summary     string               `json:"summary,omitempty"`
	Description string               `json:"description,omitempty"`
	OperationID string               `json:"operationId,omitempty"`
	Parameters  []*Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody         `json:"requestBody,omitempty"`
	Responses   map[string]*Response `json:"responses,omitempty"`
	Deprecated  bool                 `json:"deprecated,omitempty"`
}

// Parameter describes a single operation parameter.
// The "in" field is one of "query", "header", "path" or "cookie".
//
// See: https://spec.openapis.org/oas/v3.1.0#parameter-object
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"`
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Deprecated  bool    `json:"deprecated,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
	Example     any     `json:"example,omitempty"`
}

// RequestBody describes a single request body.
//
// See: https://spec.openapis.org/oas/v3.1.0#request-body-object
type RequestBody struct {
	Description string                `json:"description,omitempty"`
	Required    bool                  `json:"required,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty"`
}

// Response describes a single response. Description is required by OpenAPI.
//
// See: https://spec.openapis.org/oas/v3.1.0#response-object
type Response struct {
	Description string                `json:"description"`
	Headers     map[string]*Header    `json:"headers,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty"`
}

// MediaType pairs a schema with an optional example.
//
// See: https://spec.openapis.org/oas/v3.1.0#media-type-object
type MediaType struct {
	Schema  *Schema `json:"schema,omitempty"`
	Example any     `json:"example,omitempty"`
}

// Header describes a response header.
//
// See: https://spec.openapis.org/oas/v3.1.0#header-object
type Header struct {
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Deprecated  bool    `json:"deprecated,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// Components holds the reusable schemas of a page.
//
// See: https://spec.openapis.org/oas/v3.1.0#components-object
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Tag adds metadata to a tag used by operations.
//
// See: https://spec.openapis.org/oas/v3.1.0#tag-object
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SchemaType is a JSON Schema type: a single string or an array of
// strings (Draft 2020-12, section 6.1.1).
type SchemaType struct {
	value []string
}

// TypeString creates a SchemaType with a single type.
func TypeString(t string) SchemaType {
	return SchemaType{value: []string{t}}
}

// TypeArray creates a SchemaType with multiple types, e.g. ["string", "null"].
func TypeArray(types ...string) SchemaType {
	return SchemaType{value: types}
}

// Values returns the underlying type values.
func (st SchemaType) Values() []string {
	return st.value
}

// IsZero lets omitempty and omitzero drop an unset type.
func (st SchemaType) IsZero() bool {
	return len(st.value) == 0
}

// MarshalJSON encodes a single type as a string and several as an array.
func (st SchemaType) MarshalJSON() ([]byte, error) {
	if len(st.value) == 1 {
		return json.Marshal(st.value[0])
	}
	return json.Marshal(st.value)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (st *SchemaType) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		st.value = []string{single}
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	st.value = arr
	return nil
}

// MarshalYAML mirrors MarshalJSON for YAML output.
func (st SchemaType) MarshalYAML() (any, error) {
	switch len(st.value) {
	case 0:
		return nil, nil
	case 1:
		return st.value[0], nil
	default:
		return st.value, nil
	}
}

// UnmarshalYAML accepts either a scalar or a sequence node.
func (st *SchemaType) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		st.value = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var arr []string
		if err := node.Decode(&arr); err != nil {
			return err
		}
		st.value = arr
		return nil
	default:
		return fmt.Errorf("unsupported YAML node kind %d for SchemaType", node.Kind)
	}
}

// clone returns a deep copy of s. Values held as any (Default, Example,
// Enum entries, Const) are shared.
func (s *Schema) clone() *Schema {
	if s == nil {
		return nil
	}

	c := *s
	c.Type = SchemaType{value: slices.Clone(s.Type.value)}

	c.MultipleOf = clonePtr(s.MultipleOf)
	c.Minimum = clonePtr(s.Minimum)
	c.Maximum = clonePtr(s.Maximum)
	c.ExclusiveMinimum = clonePtr(s.ExclusiveMinimum)
	c.ExclusiveMaximum = clonePtr(s.ExclusiveMaximum)
	c.MinLength = clonePtr(s.MinLength)
	c.MaxLength = clonePtr(s.MaxLength)
	c.MinItems = clonePtr(s.MinItems)
	c.MaxItems = clonePtr(s.MaxItems)
	c.MinProperties = clonePtr(s.MinProperties)
	c.MaxProperties = clonePtr(s.MaxProperties)

	c.Items = s.Items.clone()
	c.AdditionalProperties = s.AdditionalProperties.clone()
	c.Not = s.Not.clone()

	if s.Properties != nil {
		c.Properties = make(map[string]*Schema, len(s.Properties))
		for name, prop := range s.Properties {
			c.Properties[name] = prop.clone()
		}
	}
	c.Required = slices.Clone(s.Required)
	c.Enum = slices.Clone(s.Enum)
	c.AllOf = cloneSchemas(s.AllOf)
	c.OneOf = cloneSchemas(s.OneOf)
	c.AnyOf = cloneSchemas(s.AnyOf)

	return &c
}

func cloneSchemas(list []*Schema) []*Schema {
	if list == nil {
		return nil
	}
	out := make([]*Schema, len(list))
	for i, s := range list {
		out[i] = s.clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Schema is the subset of JSON Schema Draft 2020-12 produced by the
// generator and accepted from hand-written descriptors.
//
// See: https://spec.openapis.org/oas/v3.1.0#schema-object
type Schema struct {
	Ref string `json:"$ref,omitempty"`

	Type   SchemaType `json:"type,omitzero" yaml:"type,omitempty"`
	Format string     `json:"format,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Example     any    `json:"example,omitempty"`
	Deprecated  bool   `json:"deprecated,omitempty"`
	ReadOnly    bool   `json:"readOnly,omitempty"`
	WriteOnly   bool   `json:"writeOnly,omitempty"`

	MultipleOf       *float64 `json:"multipleOf,omitempty"`
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`

	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	Items       *Schema `json:"items,omitempty"`
	MinItems    *int    `json:"minItems,omitempty"`
	MaxItems    *int    `json:"maxItems,omitempty"`
	UniqueItems bool    `json:"uniqueItems,omitempty"`

	Properties           map[string]*Schema `json:"properties,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	MinProperties        *int               `json:"minProperties,omitempty"`
	MaxProperties        *int               `json:"maxProperties,omitempty"`

	Enum  []any `json:"enum,omitempty"`
	Const any   `json:"const,omitzero"`

	AllOf []*Schema `json:"allOf,omitempty"`
	OneOf []*Schema `json:"oneOf,omitempty"`
	AnyOf []*Schema `json:"anyOf,omitempty"`
	Not   *Schema   `json:"not,omitempty"`
}
