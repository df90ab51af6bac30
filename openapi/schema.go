package openapi

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// componentsPrefix is the $ref prefix of schemas stored in components.
const componentsPrefix = "#/components/schemas/"

// Exampler can be implemented by types to provide an example value for
// their component schema.
//
//	func (u User) OpenAPIExample() any {
//	    return User{ID: "550e8400-e29b-41d4-a716-446655440000", Name: "Alice"}
//	}
//
// See: https://json-schema.org/draft/2020-12/json-schema-validation#section-9.5
type Exampler interface {
	OpenAPIExample() any
}

var timeType = reflect.TypeOf(time.Time{})

// Generator converts Go types to JSON Schema while a descriptor is being
// registered. It reads the schemas already committed to the page's store
// and stages the ones it discovers; staged schemas reach the store only
// when the registration succeeds.
//
// A Generator is only valid during the hook call it was passed to.
//
// See: https://spec.openapis.org/oas/v3.1.0#schema-object
// See: https://spec.openapis.org/oas/v3.1.0#components-object (schemas)
type Generator struct {
	store *SchemaStore

	pending   map[string]*Schema
	typeNames map[reflect.Type]string
	nameTypes map[string]reflect.Type
	visited   map[reflect.Type]bool

	closed bool
}

func newGenerator(store *SchemaStore) *Generator {
	return &Generator{
		store:     store,
		pending:   make(map[string]*Schema),
		typeNames: make(map[reflect.Type]string),
		nameTypes: make(map[string]reflect.Type),
		visited:   make(map[reflect.Type]bool),
	}
}

func (g *Generator) check() {
	if g.closed {
		panic(ErrGeneratorClosed)
	}
}

// Generate produces a schema for v. A *Schema is returned unchanged, nil
// yields nil, and any other value is reflected: named struct types are
// stored as components and referenced with $ref.
//
// See: https://spec.openapis.org/oas/v3.1.0#schema-object
// See: https://json-schema.org/draft/2020-12/json-schema-core#section-8.2.3 ($ref)
func (g *Generator) Generate(v any) *Schema {
	g.check()
	if v == nil {
		return nil
	}
	if s, ok := v.(*Schema); ok {
		return s
	}
	return g.generateType(reflect.TypeOf(v))
}

// SchemaFor produces the schema for type T.
//
// See: https://spec.openapis.org/oas/v3.1.0#schema-object
func SchemaFor[T any](g *Generator) *Schema {
	g.check()
	return g.generateType(reflect.TypeFor[T]())
}

// Define stores s under name, replacing any schema of that name, and
// returns a reference to it.
//
// See: https://spec.openapis.org/oas/v3.1.0#components-object (schemas)
func (g *Generator) Define(name string, s *Schema) *Schema {
	g.check()
	g.pending[name] = s
	return Ref(name)
}

// Lookup returns the schema stored under name, staged or committed. A
// committed schema is copied into the staging area first, so changes made
// through the result reach the page only if the registration succeeds and
// never alter documents that were already built.
func (g *Generator) Lookup(name string) (*Schema, bool) {
	g.check()
	if s, ok := g.pending[name]; ok {
		return s, true
	}
	committed, ok := g.store.Get(name)
	if !ok {
		return nil, false
	}
	s := committed.clone()
	g.pending[name] = s
	return s, true
}

// Ref returns a $ref schema pointing at the named component.
//
// See: https://json-schema.org/draft/2020-12/json-schema-core#section-8.2.3 ($ref)
func Ref(name string) *Schema {
	return &Schema{Ref: componentsPrefix + name}
}

// commit moves the staged schemas into the store and closes g.
func (g *Generator) commit() {
	g.store.merge(g.pending, g.typeNames)
	g.close()
}

func (g *Generator) close() {
	g.closed = true
	g.pending = nil
	g.typeNames = nil
	g.nameTypes = nil
	g.visited = nil
}

// generateType uses $ref for named struct types and inline schemas for
// everything else.
func (g *Generator) generateType(t reflect.Type) *Schema {
	nullable := false
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	if t.Kind() == reflect.Struct && t != timeType {
		if name := g.schemaName(t); name != "" {
			if !g.store.hasType(t) && !g.visited[t] {
				g.visited[t] = true
				schema := g.generateStructSchema(t)

				if ex, ok := reflect.New(t).Interface().(Exampler); ok {
					schema.Example = ex.OpenAPIExample()
				}

				g.pending[name] = schema
			}

			ref := Ref(name)
			if nullable {
				return &Schema{AnyOf: []*Schema{ref, {Type: TypeString("null")}}}
			}
			return ref
		}
	}

	schema := g.generateInlineType(t)
	if nullable && schema != nil {
		applyNullable(schema)
	}
	return schema
}

// generateInlineType maps Go primitive and composite types to JSON Schema.
//
// See: https://spec.openapis.org/oas/v3.1.0#data-types
// See: https://json-schema.org/draft/2020-12/json-schema-validation#section-6.1.1
func (g *Generator) generateInlineType(t reflect.Type) *Schema {
	if t == timeType {
		return &Schema{Type: TypeString("string"), Format: "date-time"}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Schema{Type: TypeString("boolean")}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: TypeString("integer")}

	case reflect.Float32, reflect.Float64:
		return &Schema{Type: TypeString("number")}

	case reflect.String:
		return &Schema{Type: TypeString("string")}

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: TypeString("string"), Format: "byte"}
		}
		return &Schema{Type: TypeString("array"), Items: g.generateType(t.Elem())}

	case reflect.Array:
		return &Schema{Type: TypeString("array"), Items: g.generateType(t.Elem())}

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return &Schema{Type: TypeString("object")}
		}
		return &Schema{Type: TypeString("object"), AdditionalProperties: g.generateType(t.Elem())}

	case reflect.Struct:
		return g.generateStructSchema(t)

	case reflect.Interface:
		return &Schema{}
	}

	return nil
}

func (g *Generator) generateStructSchema(t reflect.Type) *Schema {
	schema := &Schema{
		Type:       TypeString("object"),
		Properties: make(map[string]*Schema),
	}

	g.collectFields(t, schema, false)

	if len(schema.Properties) == 0 {
		schema.Properties = nil
	}

	return schema
}

// collectFields adds the exported fields of t to schema. Fields inlined
// from a pointer-embedded struct are all optional because the pointer may
// be nil.
//
// See: https://json-schema.org/draft/2020-12/json-schema-core#section-10.3.2.1 (properties)
// See: https://json-schema.org/draft/2020-12/json-schema-validation#section-6.5.3 (required)
func (g *Generator) collectFields(t reflect.Type, schema *Schema, allOptional bool) {
	for i := range t.NumField() {
		field := t.Field(i)

		// encoding/json inlines anonymous struct fields without a tag name,
		// including unexported ones unless they are pointers.
		if field.Anonymous {
			if jsonName, _ := parseJSONTag(field.Tag.Get("json")); jsonName == "" {
				ft := field.Type
				isPtr := ft.Kind() == reflect.Pointer
				if isPtr {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct && (field.IsExported() || !isPtr) {
					g.collectFields(ft, schema, allOptional || isPtr)
					continue
				}
			}
		}

		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name, opts := parseJSONTag(jsonTag)
		if name == "" {
			name = field.Name
		}

		fieldSchema := g.generateType(field.Type)
		if fieldSchema == nil {
			continue
		}

		applyOpenAPITag(fieldSchema, field.Tag.Get("openapi"))

		if opts.stringEncode && fieldSchema.Ref == "" && len(fieldSchema.AnyOf) == 0 {
			applyStringEncoding(fieldSchema)
		}

		schema.Properties[name] = fieldSchema

		if !opts.omitempty && !allOptional {
			schema.Required = append(schema.Required, name)
		}
	}
}

type jsonTagOpts struct {
	omitempty    bool
	stringEncode bool
}

func parseJSONTag(tag string) (string, jsonTagOpts) {
	if tag == "" {
		return "", jsonTagOpts{}
	}
	name, rest, _ := strings.Cut(tag, ",")
	return name, jsonTagOpts{
		omitempty:    strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero"),
		stringEncode: strings.Contains(rest, "string"),
	}
}

// applyOpenAPITag applies the comma-separated key=value pairs of the
// `openapi` struct tag to schema.
//
// See: https://json-schema.org/draft/2020-12/json-schema-validation
func applyOpenAPITag(schema *Schema, tag string) {
	if tag == "" {
		return
	}

	for part := range strings.SplitSeq(tag, ",") {
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "description":
			schema.Description = value
		case "example":
			schema.Example = parseExampleValue(schema, value)
		case "format":
			schema.Format = value
		case "title":
			schema.Title = value
		case "pattern":
			schema.Pattern = value
		case "enum":
			values := strings.Split(value, "|")
			schema.Enum = make([]any, len(values))
			for i, v := range values {
				schema.Enum[i] = v
			}
		case "const":
			schema.Const = parseExampleValue(schema, value)
		case "deprecated":
			schema.Deprecated = true
		case "readOnly":
			schema.ReadOnly = true
		case "writeOnly":
			schema.WriteOnly = true
		case "uniqueItems":
			schema.UniqueItems = true
		case "minimum":
			schema.Minimum = parseFloat(value)
		case "maximum":
			schema.Maximum = parseFloat(value)
		case "exclusiveMinimum":
			schema.ExclusiveMinimum = parseFloat(value)
		case "exclusiveMaximum":
			schema.ExclusiveMaximum = parseFloat(value)
		case "multipleOf":
			schema.MultipleOf = parseFloat(value)
		case "minLength":
			schema.MinLength = parseInt(value)
		case "maxLength":
			schema.MaxLength = parseInt(value)
		case "minItems":
			schema.MinItems = parseInt(value)
		case "maxItems":
			schema.MaxItems = parseInt(value)
		case "minProperties":
			schema.MinProperties = parseInt(value)
		case "maxProperties":
			schema.MaxProperties = parseInt(value)
		}
	}
}

func parseFloat(value string) *float64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(value string) *int {
	v, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &v
}

// parseExampleValue converts a tag value according to the schema type.
func parseExampleValue(schema *Schema, value string) any {
	types := schema.Type.Values()
	if len(types) == 0 {
		return value
	}

	switch types[0] {
	case "integer":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case "number":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case "boolean":
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return value
}

// schemaName returns the component name of t, claiming one on first use.
// Types already committed keep their name. A simple name that is taken by
// another type, or by an explicitly defined schema, is qualified with the
// package prefix and then, if needed, a numeric suffix.
func (g *Generator) schemaName(t reflect.Type) string {
	simple := sanitizeSchemaName(t.Name())
	if simple == "" || t.PkgPath() == "" {
		return ""
	}

	if name, ok := g.store.typeName(t); ok {
		return name
	}
	if name, ok := g.typeNames[t]; ok {
		return name
	}

	name := simple
	if g.nameTaken(name) {
		name = pkgPrefix(t.PkgPath()) + simple
		if g.nameTaken(name) {
			base := name
			for i := 2; ; i++ {
				candidate := base + strconv.Itoa(i)
				if !g.nameTaken(candidate) {
					name = candidate
					break
				}
			}
		}
	}

	g.typeNames[t] = name
	g.nameTypes[name] = t
	return name
}

func (g *Generator) nameTaken(name string) bool {
	if _, ok := g.nameTypes[name]; ok {
		return true
	}
	if _, ok := g.pending[name]; ok {
		return true
	}
	_, ok := g.store.Get(name)
	return ok
}

// pkgPrefix turns the last segment of a package path into a schema name
// prefix, e.g. "example.com/models" -> "Models".
func pkgPrefix(pkgPath string) string {
	if idx := strings.LastIndexByte(pkgPath, '/'); idx >= 0 {
		pkgPath = pkgPath[idx+1:]
	}
	pkgPath = strings.NewReplacer("-", "_", ".", "_").Replace(pkgPath)

	// A Caser is stateful and must not be shared between goroutines.
	caser := cases.Title(language.Und, cases.NoLower)
	return caser.String(pkgPath)
}

// sanitizeSchemaName turns generic instantiation names into valid keys:
// "Page[pkg.User]" -> "PageUser", "Page[[]pkg.User]" -> "PageUserList".
func sanitizeSchemaName(name string) string {
	idx := strings.IndexByte(name, '[')
	if idx < 0 {
		return name
	}

	base := name[:idx]
	inner := name[idx+1 : len(name)-1]

	isList := strings.HasPrefix(inner, "[]")
	inner = strings.TrimPrefix(inner, "[]")

	if dot := strings.LastIndexByte(inner, '.'); dot >= 0 {
		inner = inner[dot+1:]
	}

	result := base + inner
	if isList {
		result += "List"
	}
	return result
}

// applyNullable adds "null" to the schema type, the Draft 2020-12 way of
// expressing nullability.
func applyNullable(schema *Schema) {
	if schema.Ref != "" {
		return
	}
	if types := schema.Type.Values(); len(types) > 0 {
		schema.Type = TypeArray(append(types, "null")...)
	}
}

// applyStringEncoding matches the encoding/json ",string" option.
func applyStringEncoding(schema *Schema) {
	types := schema.Type.Values()
	if len(types) == 0 {
		return
	}
	for _, t := range types {
		if t == "null" {
			schema.Type = TypeArray("string", "null")
			return
		}
	}
	schema.Type = TypeString("string")
}
