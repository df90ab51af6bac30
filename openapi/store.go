package openapi

import (
	"maps"
	"reflect"
	"slices"
)

// SchemaStore maps component names to schemas for one page. It also
// remembers which Go type claimed each reflected name, so a type reached by
// several handlers is generated once and never aliased with another type
// of the same simple name.
//
// A SchemaStore is not safe for concurrent use; a Page guards its store
// with the page lock. Committed schemas are never modified.
//
// See: https://spec.openapis.org/oas/v3.1.0#components-object (schemas)
type SchemaStore struct {
	schemas   map[string]*Schema
	typeNames map[reflect.Type]string
}

// NewSchemaStore returns an empty store.
func NewSchemaStore() *SchemaStore {
	return &SchemaStore{
		schemas:   make(map[string]*Schema),
		typeNames: make(map[reflect.Type]string),
	}
}

// Get returns the schema stored under name.
func (s *SchemaStore) Get(name string) (*Schema, bool) {
	schema, ok := s.schemas[name]
	return schema, ok
}

// Len returns the number of stored schemas.
func (s *SchemaStore) Len() int {
	return len(s.schemas)
}

// Names returns the stored names in sorted order.
func (s *SchemaStore) Names() []string {
	return slices.Sorted(maps.Keys(s.schemas))
}

// snapshot returns a copy of the name table for a document.
func (s *SchemaStore) snapshot() map[string]*Schema {
	if len(s.schemas) == 0 {
		return nil
	}
	return maps.Clone(s.schemas)
}

func (s *SchemaStore) typeName(t reflect.Type) (string, bool) {
	name, ok := s.typeNames[t]
	return name, ok
}

func (s *SchemaStore) hasType(t reflect.Type) bool {
	_, ok := s.typeNames[t]
	return ok
}

// merge commits staged schemas. A staged name replaces a stored one.
func (s *SchemaStore) merge(schemas map[string]*Schema, typeNames map[reflect.Type]string) {
	maps.Copy(s.schemas, schemas)
	maps.Copy(s.typeNames, typeNames)
}
