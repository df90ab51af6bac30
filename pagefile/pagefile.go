// Package pagefile reads page definitions from HCL:
//
//	default_version = "1.0.0"
//
//	page "public" {
//	  title   = "Public API"
//	  version = "2.1.0"
//
//	  tags = {
//	    widgets = "Widget catalogue"
//	  }
//	}
//
// Pages without a title use their id; pages without a version use
// default_version. Environment variables are available as env.NAME, e.g.
// version = env.API_VERSION.
package pagefile

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vitalvas/pagespec/openapi"
)

// ErrDuplicatePage is returned when a file defines the same page twice.
var ErrDuplicatePage = errors.New("pagefile: duplicate page")

// Definition is one page block.
type Definition struct {
	ID   openapi.PageID
	Info openapi.Info

	// Tags maps tag names to descriptions.
	Tags map[string]string
}

// File is a decoded page file.
type File struct {
	DefaultVersion string
	Pages          []Definition
}

type hclFile struct {
	DefaultVersion string     `hcl:"default_version,optional"`
	Pages          []*hclPage `hcl:"page,block"`
}

type hclPage struct {
	ID      string            `hcl:"id,label"`
	Title   string            `hcl:"title,optional"`
	Version string            `hcl:"version,optional"`
	Tags    map[string]string `hcl:"tags,optional"`
}

// Load parses the HCL file at path.
func Load(path string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse page file %s: %w", path, diags)
	}
	return decode(f, path)
}

// Parse parses src; filename is used in diagnostics only.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse page file %s: %w", filename, diags)
	}
	return decode(f, filename)
}

func decode(f *hcl.File, filename string) (*File, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, evalContext(), &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode page file %s: %w", filename, diags)
	}

	out := &File{
		DefaultVersion: parsed.DefaultVersion,
		Pages:          make([]Definition, 0, len(parsed.Pages)),
	}

	seen := make(map[string]struct{}, len(parsed.Pages))
	for _, p := range parsed.Pages {
		if _, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("%w %q in %s", ErrDuplicatePage, p.ID, filename)
		}
		seen[p.ID] = struct{}{}

		def := Definition{
			ID:   openapi.PageID(p.ID),
			Info: openapi.Info{Title: p.Title, Version: p.Version},
			Tags: p.Tags,
		}
		if def.Info.Title == "" {
			def.Info.Title = p.ID
		}
		if def.Info.Version == "" {
			def.Info.Version = parsed.DefaultVersion
		}
		out.Pages = append(out.Pages, def)
	}

	return out, nil
}

// evalContext exposes the process environment as the env object.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !hclsyntax.ValidIdentifier(name) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

// Options returns the registry options describing the pages in f.
func (f *File) Options() []openapi.RegistryOption {
	opts := make([]openapi.RegistryOption, 0, len(f.Pages)+1)
	opts = append(opts, openapi.WithDefaultInfo(openapi.Info{Version: f.DefaultVersion}))
	for _, def := range f.Pages {
		opts = append(opts, openapi.WithPage(def.ID, def.Info))
	}
	return opts
}

// Apply creates every page of f in reg and sets its tag descriptions.
// Pages are created even if no handler is registered with them yet.
func (f *File) Apply(reg *openapi.Registry) {
	for _, def := range f.Pages {
		page := reg.Page(def.ID)
		for _, tag := range slices.Sorted(maps.Keys(def.Tags)) {
			page.DescribeTag(tag, def.Tags[tag])
		}
	}
}

// NewRegistry returns a registry configured from f, followed by opts, with
// the pages of f already created.
func (f *File) NewRegistry(opts ...openapi.RegistryOption) *openapi.Registry {
	reg := openapi.NewRegistry(append(f.Options(), opts...)...)
	f.Apply(reg)
	return reg
}
