// Package openapi aggregates statically described HTTP handlers into
// OpenAPI v3.1.0 documents, one per page.
//
// The package targets the OpenAPI Specification v3.1.0 and uses JSON Schema
// Draft 2020-12 for schema generation.
//
// See: https://spec.openapis.org/oas/v3.1.0
// See: https://json-schema.org/draft/2020-12/json-schema-core
//
// # Descriptors
//
// Every handler contributes a Descriptor: method, path, doc lines, tags and
// hooks that produce parameters, request body and responses. Hooks receive
// a *Generator which reflects Go types into schemas and stores named struct
// types as components:
//
//	health := openapi.Descriptor{
//	    Method:    openapi.MethodGet,
//	    Path:      "/health",
//	    Ident:     "health",
//	    Doc:       []string{"Liveness probe"},
//	    Responses: openapi.NoContent(http.StatusOK),
//	}
//
//	getWidget := openapi.Descriptor{
//	    Method:    openapi.MethodGet,
//	    Path:      "/widgets/{id:uuid}",
//	    Ident:     "getWidget",
//	    Tags:      []string{"widgets"},
//	    Responses: openapi.ResponseOf[Widget](http.StatusOK),
//	}
//
// # Pages
//
// A Page owns a path table, a schema store and a cached document. AddHandler
// may be called from any goroutine; Build returns the same *Document until
// the next change:
//
//	page := openapi.NewPage(openapi.Info{Title: "Widgets", Version: "1.0.0"})
//	page.MustAddHandler("/api", getWidget)
//	doc := page.Build()
//
// Two operations with the same path and method overwrite each other; the
// last registration wins.
//
// A descriptor hook that panics does not corrupt the page: AddHandler
// returns a *GenerationError and the page keeps its previous state.
//
// # Registry and groups
//
// A Registry maps page ids to pages. Register adds a descriptor to
// DefaultPage (unless NoDefault is set) and to every page in Pages:
//
//	reg := openapi.NewRegistry(openapi.WithDefaultInfo(openapi.Info{Version: "1.0.0"}))
//	api := reg.Group("/api").Tags("widgets").Pages("public")
//	if err := api.Register(getWidget); err != nil {
//	    return err
//	}
//
// # Serving
//
// Handle mounts the JSON, YAML and HTML docs endpoints of a page on a chi
// router:
//
//	r := chi.NewRouter()
//	openapi.Handle(r, "/docs", reg.Page(openapi.DefaultPage), nil)
//	// /docs/             -> Swagger UI
//	// /docs/schema.json  -> JSON document
//	// /docs/schema.yaml  -> YAML document
package openapi
