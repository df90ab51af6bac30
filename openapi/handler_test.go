package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func setupTestRouter(cfg *HandleConfig) (chi.Router, *Page) {
	page := newTestPage()
	page.MustAddHandler("", widgetDescriptor(MethodGet, "/items", "listItems"))
	page.MustAddHandler("", widgetDescriptor(MethodGet, "/items/{id:uuid}", "getItem"))

	r := chi.NewRouter()
	Handle(r, "/swagger", page, cfg)
	return r, page
}

func serveRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHandle(t *testing.T) {
	t.Run("JSON document", func(t *testing.T) {
		r, _ := setupTestRouter(nil)
		w := serveRequest(r, http.MethodGet, "/swagger/schema.json")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var doc Document
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, "3.1.0", doc.OpenAPI)
		assert.Equal(t, "Test API", doc.Info.Title)
		assert.Contains(t, doc.Paths, "/items")
		assert.Contains(t, doc.Paths, "/items/{id}")
		assert.Contains(t, doc.Components.Schemas, "Widget")
	})

	t.Run("YAML document", func(t *testing.T) {
		r, _ := setupTestRouter(nil)
		w := serveRequest(r, http.MethodGet, "/swagger/schema.yaml")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))

		body := w.Body.String()
		assert.True(t, strings.HasPrefix(body, "openapi: 3.1.0\n"), body)
		assert.Contains(t, body, "operationId: listItems")
		assert.Contains(t, body, "$ref: '#/components/schemas/Widget'")

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &decoded))
		paths, ok := decoded["paths"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, paths, "/items/{id}")

		responses := paths["/items"].(map[string]any)["get"].(map[string]any)["responses"].(map[string]any)
		assert.Contains(t, responses, "200", "status keys stay strings")
	})

	t.Run("docs UI with and without trailing slash", func(t *testing.T) {
		r, _ := setupTestRouter(nil)

		for _, path := range []string{"/swagger", "/swagger/"} {
			w := serveRequest(r, http.MethodGet, path)
			assert.Equal(t, http.StatusOK, w.Code, path)
			assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), "swagger-ui")
			assert.Contains(t, w.Body.String(), `"/swagger/schema.json"`)
		}
	})

	t.Run("trailing slash in base path is normalized", func(t *testing.T) {
		page := newTestPage()
		r := chi.NewRouter()
		Handle(r, "/docs/", page, nil)

		assert.Equal(t, http.StatusOK, serveRequest(r, http.MethodGet, "/docs/schema.json").Code)
	})

	t.Run("root base path", func(t *testing.T) {
		page := newTestPage()
		r := chi.NewRouter()
		Handle(r, "", page, nil)

		assert.Equal(t, http.StatusOK, serveRequest(r, http.MethodGet, "/").Code)
		assert.Equal(t, http.StatusOK, serveRequest(r, http.MethodGet, "/schema.json").Code)
	})

	t.Run("custom filenames", func(t *testing.T) {
		r, _ := setupTestRouter(&HandleConfig{
			JSONFilename: "/api/v1/openapi.json",
			YAMLFilename: "data/openapi.yaml",
		})

		assert.Equal(t, http.StatusOK, serveRequest(r, http.MethodGet, "/api/v1/openapi.json").Code)
		assert.Equal(t, http.StatusOK, serveRequest(r, http.MethodGet, "/swagger/data/openapi.yaml").Code)
		assert.Equal(t, http.StatusNotFound, serveRequest(r, http.MethodGet, "/swagger/schema.json").Code)

		w := serveRequest(r, http.MethodGet, "/swagger/")
		assert.Contains(t, w.Body.String(), `"/api/v1/openapi.json"`)
	})

	t.Run("disabled endpoints", func(t *testing.T) {
		r, _ := setupTestRouter(&HandleConfig{YAMLFilename: "-", DisableDocs: true})

		assert.Equal(t, http.StatusOK, serveRequest(r, http.MethodGet, "/swagger/schema.json").Code)
		assert.Equal(t, http.StatusNotFound, serveRequest(r, http.MethodGet, "/swagger/schema.yaml").Code)
		assert.Equal(t, http.StatusNotFound, serveRequest(r, http.MethodGet, "/swagger/").Code)
	})

	t.Run("docs fall back to YAML", func(t *testing.T) {
		r, _ := setupTestRouter(&HandleConfig{JSONFilename: "-"})

		w := serveRequest(r, http.MethodGet, "/swagger/")
		assert.Contains(t, w.Body.String(), `"/swagger/schema.yaml"`)
	})

	t.Run("no docs without any document endpoint", func(t *testing.T) {
		r, _ := setupTestRouter(&HandleConfig{JSONFilename: "-", YAMLFilename: "-"})
		assert.Equal(t, http.StatusNotFound, serveRequest(r, http.MethodGet, "/swagger/").Code)
	})
}

func TestHandleDocsUI(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *HandleConfig
		expect string
	}{
		{"swagger UI default", nil, "SwaggerUIBundle"},
		{"rapidoc", &HandleConfig{UI: DocsRapiDoc}, "<rapi-doc"},
		{"redoc", &HandleConfig{UI: DocsRedoc}, "<redoc"},
		{"custom title", &HandleConfig{Title: "Widgets <Docs>"}, "<title>Widgets &lt;Docs&gt;</title>"},
		{"page title", nil, "<title>Test API</title>"},
		{"swagger config", &HandleConfig{SwaggerUIConfig: map[string]any{"docExpansion": "none", "deepLinking": true}}, `, deepLinking: true, docExpansion: "none"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := setupTestRouter(tt.cfg)
			w := serveRequest(r, http.MethodGet, "/swagger/")
			assert.Contains(t, w.Body.String(), tt.expect)
		})
	}
}

func TestParseDocsUI(t *testing.T) {
	assert.Equal(t, DocsRapiDoc, ParseDocsUI("RapiDoc"))
	assert.Equal(t, DocsRedoc, ParseDocsUI(" redoc "))
	assert.Equal(t, DocsSwaggerUI, ParseDocsUI("swagger"))
	assert.Equal(t, DocsSwaggerUI, ParseDocsUI(""))
}

func TestHandleCaching(t *testing.T) {
	t.Run("bytes are reused until the page changes", func(t *testing.T) {
		page := newTestPage()
		cache := &encodedDocument{encode: encodeJSON}

		first, firstTag, err := cache.get(page)
		require.NoError(t, err)
		second, secondTag, err := cache.get(page)
		require.NoError(t, err)
		assert.Same(t, &first[0], &second[0])
		assert.Equal(t, firstTag, secondTag)

		page.MustAddHandler("", healthDescriptor())
		third, thirdTag, err := cache.get(page)
		require.NoError(t, err)
		assert.Contains(t, string(third), "/health")
		assert.NotEqual(t, firstTag, thirdTag)
	})

	t.Run("registration after handle is served", func(t *testing.T) {
		r, page := setupTestRouter(nil)

		w := serveRequest(r, http.MethodGet, "/swagger/schema.json")
		assert.NotContains(t, w.Body.String(), "/health")

		page.MustAddHandler("", healthDescriptor())

		w = serveRequest(r, http.MethodGet, "/swagger/schema.json")
		assert.Contains(t, w.Body.String(), "/health")

		w = serveRequest(r, http.MethodGet, "/swagger/schema.yaml")
		assert.Contains(t, w.Body.String(), "/health:")
	})
}

func TestHandleConditional(t *testing.T) {
	r, page := setupTestRouter(nil)

	w := serveRequest(r, http.MethodGet, "/swagger/schema.json")
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.True(t, strings.HasPrefix(etag, `"`))

	req := httptest.NewRequest(http.MethodGet, "/swagger/schema.json", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	page.MustAddHandler("", healthDescriptor())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, etag, w.Header().Get("ETag"))
}

func TestETagMatch(t *testing.T) {
	const etag = `"0123456789abcdef"`

	tests := []struct {
		name    string
		headers []string
		want    bool
	}{
		{"no header", nil, false},
		{"exact", []string{`"0123456789abcdef"`}, true},
		{"weak", []string{`W/"0123456789abcdef"`}, true},
		{"list", []string{`"other", "0123456789abcdef"`}, true},
		{"repeated header", []string{`"other"`, `"0123456789abcdef"`}, true},
		{"wildcard", []string{"*"}, true},
		{"substring is not a match", []string{`"0123456789abcdef-gzip"`}, false},
		{"unquoted is not a match", []string{"0123456789abcdef"}, false},
		{"different", []string{`"fedcba9876543210"`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, etagMatch(tt.headers, etag))
		})
	}
}

func TestHandleConditionalWildcard(t *testing.T) {
	r, _ := setupTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/swagger/schema.yaml", nil)
	req.Header.Set("If-None-Match", "*")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))
}

func TestPageEncoding(t *testing.T) {
	page := newTestPage()
	page.MustAddHandler("", healthDescriptor())

	data, err := page.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"/health"`)

	data, err = page.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "summary: Liveness probe")
}
