package openapi

import (
	"errors"
	"slices"
)

// groupDefaults holds the metadata a Group applies to every descriptor
// registered through it.
type groupDefaults struct {
	tags       []string
	pages      []PageID
	deprecated bool
}

// Group is the containing route group of a set of descriptors. It supplies
// the container prefix and shared metadata, then forwards descriptors to
// its registry.
type Group struct {
	registry *Registry
	prefix   string
	defaults groupDefaults
}

// Group returns a group rooted at prefix.
func (r *Registry) Group(prefix string) *Group {
	return &Group{registry: r, prefix: prefix}
}

// Prefix returns the container prefix of the group.
func (g *Group) Prefix() string {
	return g.prefix
}

// Tags appends tags to the group defaults. Descriptors keep their own tags
// and gain these.
func (g *Group) Tags(tags ...string) *Group {
	g.defaults.tags = append(g.defaults.tags, tags...)
	return g
}

// Pages adds pages every descriptor in the group joins.
func (g *Group) Pages(ids ...PageID) *Group {
	g.defaults.pages = append(g.defaults.pages, ids...)
	return g
}

// Deprecated marks all operations in this group as deprecated. This is a
// one-way latch: individual descriptors cannot undo group deprecation.
func (g *Group) Deprecated() *Group {
	g.defaults.deprecated = true
	return g
}

// Group returns a nested group under prefix. The nested group starts with a
// copy of the current defaults; later changes to either group do not
// affect the other.
func (g *Group) Group(prefix string) *Group {
	return &Group{
		registry: g.registry,
		prefix:   JoinPath(g.prefix, prefix),
		defaults: groupDefaults{
			tags:       slices.Clone(g.defaults.tags),
			pages:      slices.Clone(g.defaults.pages),
			deprecated: g.defaults.deprecated,
		},
	}
}

// Register applies the group defaults to each descriptor and registers it
// under the group prefix. All descriptors are attempted; errors are joined.
func (g *Group) Register(descs ...Descriptor) error {
	var errs []error
	for _, d := range descs {
		if err := g.registry.Register(g.prefix, g.apply(d)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Group) apply(d Descriptor) Descriptor {
	if len(g.defaults.tags) > 0 {
		d.Tags = append(slices.Clone(g.defaults.tags), d.Tags...)
	}
	if len(g.defaults.pages) > 0 {
		d.Pages = append(slices.Clone(d.Pages), g.defaults.pages...)
	}
	if g.defaults.deprecated {
		d.Deprecated = true
	}
	return d
}
