package openapi

import (
	"maps"
	"slices"
)

// openAPIVersion is the version written to every assembled document.
const openAPIVersion = "3.1.0"

// assemble renders a page's tables into a new Document. Inputs are not
// modified and nothing mutable is shared with them: path items are copied
// by value, and stored operations and schemas are never modified after
// they are committed.
//
// Map keys are emitted in sorted order by encoding/json and yaml.v3, so
// equal tables give byte-identical output.
func assemble(info Info, paths map[string]*PathItem, store *SchemaStore, tagDescs map[string]string) *Document {
	doc := &Document{
		OpenAPI: openAPIVersion,
		Info:    info,
		Paths:   make(map[string]*PathItem, len(paths)),
	}

	for path, item := range paths {
		copied := *item
		doc.Paths[path] = &copied
	}

	if schemas := store.snapshot(); schemas != nil {
		doc.Components = &Components{Schemas: schemas}
	}

	doc.Tags = collectTags(doc.Paths, tagDescs)

	return doc
}

// collectTags lists every tag used by an operation, sorted by name, with
// the registered descriptions. Described tags no operation uses are
// included too.
func collectTags(paths map[string]*PathItem, descs map[string]string) []Tag {
	seen := make(map[string]struct{})
	for _, item := range paths {
		for _, op := range item.operations() {
			for _, name := range op.Tags {
				seen[name] = struct{}{}
			}
		}
	}
	for name := range descs {
		seen[name] = struct{}{}
	}

	if len(seen) == 0 {
		return nil
	}

	tags := make([]Tag, 0, len(seen))
	for _, name := range slices.Sorted(maps.Keys(seen)) {
		tags = append(tags, Tag{Name: name, Description: descs[name]})
	}
	return tags
}
