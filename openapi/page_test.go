package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage() *Page {
	return NewPage(Info{Title: "Test API", Version: "1.0.0"})
}

func healthDescriptor() Descriptor {
	return Descriptor{
		Method:    MethodGet,
		Path:      "/health",
		Ident:     "health",
		Doc:       []string{"Liveness probe"},
		Responses: NoContent(http.StatusOK),
	}
}

func widgetDescriptor(method Method, path, ident string) Descriptor {
	return Descriptor{
		Method:    method,
		Path:      path,
		Ident:     ident,
		Tags:      []string{"widgets"},
		Responses: ResponseOf[Widget](http.StatusOK),
	}
}

func TestPageBuild(t *testing.T) {
	t.Run("empty page", func(t *testing.T) {
		doc := newTestPage().Build()

		assert.Equal(t, "3.1.0", doc.OpenAPI)
		assert.Equal(t, Info{Title: "Test API", Version: "1.0.0"}, doc.Info)
		assert.Empty(t, doc.Paths)
		assert.Nil(t, doc.Components)
		assert.Nil(t, doc.Tags)
	})

	t.Run("health end to end", func(t *testing.T) {
		page := newTestPage()
		require.NoError(t, page.AddHandler("", healthDescriptor()))

		doc := page.Build()
		require.Contains(t, doc.Paths, "/health")

		op := doc.Paths["/health"].Get
		require.NotNil(t, op)
		assert.Equal(t, "Liveness probe", op.Summary)
		assert.Empty(t, op.Description)
		assert.Equal(t, "health", op.OperationID)
		assert.False(t, op.Deprecated)
		require.Contains(t, op.Responses, "200")
		assert.Equal(t, "OK", op.Responses["200"].Description)

		assert.Nil(t, doc.Components, "no schemas were generated")

		data, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"openapi": "3.1.0",
			"info": {"title": "Test API", "version": "1.0.0"},
			"paths": {
				"/health": {
					"get": {
						"summary": "Liveness probe",
						"operationId": "health",
						"responses": {"200": {"description": "OK"}}
					}
				}
			}
		}`, string(data))
	})

	t.Run("build is idempotent", func(t *testing.T) {
		page := newTestPage()
		page.MustAddHandler("/api", widgetDescriptor(MethodGet, "/widgets", "listWidgets"))

		first := page.Build()
		second := page.Build()
		assert.Same(t, first, second)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("registration invalidates the cache", func(t *testing.T) {
		page := newTestPage()
		page.MustAddHandler("", healthDescriptor())

		before := page.Build()
		page.MustAddHandler("/api", widgetDescriptor(MethodGet, "/widgets", "listWidgets"))
		after := page.Build()

		assert.NotSame(t, before, after)
		assert.Contains(t, after.Paths, "/api/widgets")
		assert.NotContains(t, before.Paths, "/api/widgets", "earlier snapshot is unchanged")
		assert.Nil(t, before.Components)
		require.NotNil(t, after.Components)
	})

	t.Run("snapshot carries the generation", func(t *testing.T) {
		page := newTestPage()
		_, gen := page.Snapshot()
		assert.Zero(t, gen)

		page.MustAddHandler("", healthDescriptor())
		doc, gen := page.Snapshot()
		assert.Equal(t, uint64(1), gen)
		assert.Equal(t, gen, page.Generation())
		assert.Same(t, doc, page.Build())
	})
}

func TestPageAddHandler(t *testing.T) {
	t.Run("disjoint registrations commute", func(t *testing.T) {
		descs := []Descriptor{
			healthDescriptor(),
			widgetDescriptor(MethodGet, "/widgets", "listWidgets"),
			widgetDescriptor(MethodPost, "/widgets", "createWidget"),
			widgetDescriptor(MethodGet, "/widgets/{id}", "getWidget"),
		}

		forward := newTestPage()
		for _, d := range descs {
			forward.MustAddHandler("/api", d)
		}

		backward := newTestPage()
		for i := len(descs) - 1; i >= 0; i-- {
			backward.MustAddHandler("/api", descs[i])
		}

		a, err := json.Marshal(forward.Build())
		require.NoError(t, err)
		b, err := json.Marshal(backward.Build())
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	})

	t.Run("collision overwrites", func(t *testing.T) {
		page := newTestPage()
		page.MustAddHandler("", widgetDescriptor(MethodGet, "/widgets", "first"))
		page.MustAddHandler("", widgetDescriptor(MethodGet, "/widgets", "second"))

		assert.Equal(t, 1, page.Operations())
		assert.Equal(t, "second", page.Build().Paths["/widgets"].Get.OperationID)
		assert.Equal(t, "second", page.Lookup(MethodGet, "/widgets").OperationID)
	})

	t.Run("methods share a path item", func(t *testing.T) {
		page := newTestPage()
		page.MustAddHandler("", widgetDescriptor(MethodGet, "/widgets", "list"))
		page.MustAddHandler("", widgetDescriptor(MethodPost, "/widgets", "create"))
		page.MustAddHandler("", widgetDescriptor(MethodDelete, "/widgets", "purge"))

		item := page.Build().Paths["/widgets"]
		require.NotNil(t, item)
		assert.Equal(t, "list", item.Get.OperationID)
		assert.Equal(t, "create", item.Post.OperationID)
		assert.Equal(t, "purge", item.Delete.OperationID)
		assert.Nil(t, item.Put)
		assert.Equal(t, 3, page.Operations())
	})

	t.Run("shared schema is stored once", func(t *testing.T) {
		page := newTestPage()
		page.MustAddHandler("", widgetDescriptor(MethodGet, "/widgets", "listWidgets"))
		page.MustAddHandler("", widgetDescriptor(MethodGet, "/widgets/{id}", "getWidget"))

		doc := page.Build()
		require.NotNil(t, doc.Components)
		assert.Len(t, doc.Components.Schemas, 1)
		assert.Contains(t, doc.Components.Schemas, "Widget")

		ref := "#/components/schemas/Widget"
		assert.Equal(t, ref, doc.Paths["/widgets"].Get.Responses["200"].Content["application/json"].Schema.Ref)
		assert.Equal(t, ref, doc.Paths["/widgets/{id}"].Get.Responses["200"].Content["application/json"].Schema.Ref)
	})

	t.Run("path macros", func(t *testing.T) {
		page := newTestPage()
		page.MustAddHandler("/api/", widgetDescriptor(MethodGet, "/widgets/{id:uuid}", "getWidget"))

		doc := page.Build()
		require.Contains(t, doc.Paths, "/api/widgets/{id}")

		params := doc.Paths["/api/widgets/{id}"].Get.Parameters
		require.Len(t, params, 1)
		assert.Equal(t, "id", params[0].Name)
		assert.Equal(t, "uuid", params[0].Schema.Format)

		assert.NotNil(t, page.Lookup(MethodGet, "/api/widgets/{id:uuid}"))
		assert.NotNil(t, page.Lookup(MethodGet, "/api/widgets/{id}"))
		assert.Nil(t, page.Lookup(MethodPost, "/api/widgets/{id}"))
		assert.Nil(t, page.Lookup(Method("CONNECT"), "/api/widgets/{id}"))
	})

	t.Run("concurrent registrations", func(t *testing.T) {
		const n = 64
		page := newTestPage()

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				path := fmt.Sprintf("/widgets/%d", i)
				errs <- page.AddHandler("", widgetDescriptor(MethodGet, path, fmt.Sprintf("getWidget%d", i)))
			}()
		}

		// Builds racing with registrations must see whole operations only.
		for range 8 {
			doc := page.Build()
			for _, item := range doc.Paths {
				require.NotNil(t, item.Get)
				require.Contains(t, item.Get.Responses, "200")
			}
		}

		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		assert.Equal(t, n, page.Operations())
		assert.Equal(t, uint64(n), page.Generation())

		doc := page.Build()
		assert.Len(t, doc.Paths, n)
		assert.Len(t, doc.Components.Schemas, 1)
	})

	t.Run("invalid method", func(t *testing.T) {
		page := newTestPage()
		err := page.AddHandler("", Descriptor{Method: "CONNECT", Path: "/x", Ident: "x"})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidMethod)

		var regErr *RegistrationError
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, "x", regErr.Ident)
		assert.Zero(t, page.Generation())
	})

	t.Run("empty path", func(t *testing.T) {
		page := newTestPage()
		err := page.AddHandler("", Descriptor{Method: MethodGet})
		assert.ErrorIs(t, err, ErrEmptyPath)

		require.NoError(t, page.AddHandler("/api", Descriptor{Method: MethodGet}))
		assert.Contains(t, page.Build().Paths, "/api")
	})

	t.Run("must add handler panics", func(t *testing.T) {
		page := newTestPage()
		assert.Panics(t, func() {
			page.MustAddHandler("", Descriptor{Method: "BREW", Path: "/coffee"})
		})
	})
}

func TestPageGenerationFault(t *testing.T) {
	faulty := func(value any) Descriptor {
		return Descriptor{
			Method: MethodGet,
			Path:   "/faulty",
			Ident:  "faulty",
			Responses: func(g *Generator) Responses {
				SchemaFor[Gadget](g)
				panic(value)
			},
		}
	}

	t.Run("state is unchanged", func(t *testing.T) {
		page := newTestPage()
		page.MustAddHandler("", healthDescriptor())
		before, gen := page.Snapshot()

		err := page.AddHandler("", faulty("boom"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrGeneration)

		var genErr *GenerationError
		require.True(t, errors.As(err, &genErr))
		assert.Equal(t, "boom", genErr.Value)
		assert.NotEmpty(t, genErr.Stack)

		after, afterGen := page.Snapshot()
		assert.Same(t, before, after)
		assert.Equal(t, gen, afterGen)
		assert.Nil(t, after.Components, "staged schemas are discarded")
		assert.Nil(t, page.Lookup(MethodGet, "/faulty"))
	})

	t.Run("error values are unwrapped", func(t *testing.T) {
		cause := errors.New("hook failed")
		err := newTestPage().AddHandler("", faulty(cause))

		assert.ErrorIs(t, err, ErrGeneration)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("page stays usable", func(t *testing.T) {
		page := newTestPage()
		require.Error(t, page.AddHandler("", faulty("boom")))

		require.NoError(t, page.AddHandler("", widgetDescriptor(MethodGet, "/widgets", "listWidgets")))
		doc := page.Build()
		assert.Contains(t, doc.Paths, "/widgets")
		assert.Equal(t, []string{"Widget"}, page.store.Names())
	})

	t.Run("generator used after registration", func(t *testing.T) {
		page := newTestPage()

		var escaped *Generator
		page.MustAddHandler("", Descriptor{
			Method: MethodGet,
			Path:   "/escape",
			Responses: func(g *Generator) Responses {
				escaped = g
				return nil
			},
		})

		require.NotNil(t, escaped)
		assert.PanicsWithValue(t, ErrGeneratorClosed, func() { SchemaFor[Widget](escaped) })
		assert.Nil(t, page.Build().Components)
	})

	t.Run("committed schema edited before the fault", func(t *testing.T) {
		page := newTestPage()
		page.MustAddHandler("", widgetDescriptor(MethodGet, "/widgets", "listWidgets"))
		before := page.Build()

		err := page.AddHandler("", Descriptor{
			Method: MethodGet,
			Path:   "/faulty",
			Responses: func(g *Generator) Responses {
				s, ok := g.Lookup("Widget")
				require.True(t, ok)
				s.Description = "mutated"
				s.Properties["id"].Format = "mutated"
				panic("boom")
			},
		})
		require.ErrorIs(t, err, ErrGeneration)

		widget := before.Components.Schemas["Widget"]
		assert.Empty(t, widget.Description)
		assert.Equal(t, "uuid", widget.Properties["id"].Format)

		after := page.Build()
		assert.Same(t, before, after)
		stored, _ := page.store.Get("Widget")
		assert.Empty(t, stored.Description)
	})
}

func TestPageLookupEditsCommitOnSuccess(t *testing.T) {
	page := newTestPage()
	page.MustAddHandler("", widgetDescriptor(MethodGet, "/widgets", "listWidgets"))
	before := page.Build()

	page.MustAddHandler("", Descriptor{
		Method: MethodGet,
		Path:   "/describe",
		Responses: func(g *Generator) Responses {
			s, ok := g.Lookup("Widget")
			require.True(t, ok)
			s.Description = "A catalogue item"
			return NewResponses().Add(200, Ref("Widget"))
		},
	})

	after := page.Build()
	assert.NotSame(t, before, after)
	assert.Empty(t, before.Components.Schemas["Widget"].Description)
	assert.Equal(t, "A catalogue item", after.Components.Schemas["Widget"].Description)
	assert.Equal(t, "uuid", after.Components.Schemas["Widget"].Properties["id"].Format)
}

func TestPageTags(t *testing.T) {
	page := newTestPage()
	page.MustAddHandler("", widgetDescriptor(MethodGet, "/widgets", "listWidgets"))
	page.MustAddHandler("", Descriptor{Method: MethodGet, Path: "/admin", Tags: []string{"admin"}})
	page.DescribeTag("widgets", "Widget catalogue")
	page.DescribeTag("unused", "Described only")

	doc := page.Build()
	assert.Equal(t, []Tag{
		{Name: "admin"},
		{Name: "unused", Description: "Described only"},
		{Name: "widgets", Description: "Widget catalogue"},
	}, doc.Tags)
}
