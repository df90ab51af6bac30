package openapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// DocsUI selects which interactive documentation UI to serve.
type DocsUI int

const (
	DocsSwaggerUI DocsUI = iota
	DocsRapiDoc
	DocsRedoc
)

// ParseDocsUI converts "swagger", "rapidoc" or "redoc" to a DocsUI. Any
// other value selects Swagger UI.
func ParseDocsUI(s string) DocsUI {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rapidoc":
		return DocsRapiDoc
	case "redoc":
		return DocsRedoc
	default:
		return DocsSwaggerUI
	}
}

// HandleConfig configures the endpoints registered by Handle.
type HandleConfig struct {
	// UI selects the interactive docs UI (default: DocsSwaggerUI).
	UI DocsUI

	// Title overrides the HTML page title (default: page info title).
	Title string

	// JSONFilename is the path for the JSON document endpoint
	// (default: "schema.json"). Set to "-" to disable.
	//
	// Relative paths are joined with the base path; absolute paths
	// (starting with "/") are used as-is.
	JSONFilename string

	// YAMLFilename is the path for the YAML document endpoint
	// (default: "schema.yaml"). Set to "-" to disable.
	YAMLFilename string

	// DisableDocs disables the interactive HTML docs endpoint.
	DisableDocs bool

	// SwaggerUIConfig provides additional SwaggerUIBundle options, rendered
	// as JavaScript object properties after url and dom_id. Only used with
	// DocsSwaggerUI.
	SwaggerUIConfig map[string]any
}

func (cfg HandleConfig) jsonFilename() string {
	if cfg.JSONFilename == "" {
		return "schema.json"
	}
	return cfg.JSONFilename
}

func (cfg HandleConfig) yamlFilename() string {
	if cfg.YAMLFilename == "" {
		return "schema.yaml"
	}
	return cfg.YAMLFilename
}

// resolvePath returns the full route path for a filename.
func resolvePath(basePath, filename string) string {
	if strings.HasPrefix(filename, "/") {
		return filename
	}
	if basePath == "" {
		return "/" + filename
	}
	return basePath + "/" + filename
}

// Handle registers the document endpoints of page under basePath:
//
//	<basePath>/            - interactive HTML docs (unless DisableDocs)
//	<JSONFilename path>    - document as JSON  (unless JSONFilename is "-")
//	<YAMLFilename path>    - document as YAML  (unless YAMLFilename is "-")
//
// Pass nil for the default config. Encoded bytes are cached per document
// snapshot, so a registration made after Handle is visible on the next
// request.
func Handle(r chi.Router, basePath string, page *Page, cfg *HandleConfig) {
	if cfg == nil {
		cfg = &HandleConfig{}
	}
	basePath = strings.TrimRight(basePath, "/")

	var jsonPath, yamlPath string

	if file := cfg.jsonFilename(); file != "-" {
		jsonPath = resolvePath(basePath, file)
		r.Get(jsonPath, JSONHandler(page).ServeHTTP)
	}

	if file := cfg.yamlFilename(); file != "-" {
		yamlPath = resolvePath(basePath, file)
		r.Get(yamlPath, YAMLHandler(page).ServeHTTP)
	}

	if cfg.DisableDocs {
		return
	}

	specURL := jsonPath
	if specURL == "" {
		specURL = yamlPath
	}
	if specURL == "" {
		return
	}

	handler := DocsHandler(page, cfg, specURL).ServeHTTP
	if basePath == "" {
		r.Get("/", handler)
		return
	}
	r.Get(basePath, handler)
	r.Get(basePath+"/", handler)
}

// JSONHandler serves the current document of page as JSON.
func JSONHandler(page *Page) http.Handler {
	return documentHandler(page, "application/json", encodeJSON)
}

// YAMLHandler serves the current document of page as YAML.
func YAMLHandler(page *Page) http.Handler {
	return documentHandler(page, "application/x-yaml", encodeYAML)
}

// encodedDocument caches the encoding of the latest snapshot.
type encodedDocument struct {
	encode func(*Document) ([]byte, error)

	mu   sync.Mutex
	doc  *Document
	data []byte
	etag string
	err  error
}

func (e *encodedDocument) get(page *Page) ([]byte, string, error) {
	doc := page.Build()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc != doc {
		e.doc = doc
		e.data, e.err = e.encode(doc)
		e.etag = ""
		if e.err == nil {
			sum := sha256.Sum256(e.data)
			e.etag = `"` + hex.EncodeToString(sum[:8]) + `"`
		}
	}
	return e.data, e.etag, e.err
}

// documentHandler answers conditional requests with 304 when the
// If-None-Match header carries the ETag of the current encoding.
func documentHandler(page *Page, contentType string, encode func(*Document) ([]byte, error)) http.HandlerFunc {
	cache := &encodedDocument{encode: encode}

	return func(w http.ResponseWriter, r *http.Request) {
		data, etag, err := cache.get(page)
		if err != nil {
			http.Error(w, "failed to serialize OpenAPI document", http.StatusInternalServerError)
			return
		}

		w.Header().Set("ETag", etag)
		if etagMatch(r.Header.Values("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// etagMatch reports whether an If-None-Match header list names etag or is
// "*". Comparison is weak: a W/ prefix on either side is ignored.
func etagMatch(headers []string, etag string) bool {
	etag = strings.TrimPrefix(etag, "W/")
	for _, header := range headers {
		for candidate := range strings.SplitSeq(header, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
				return true
			}
		}
	}
	return false
}

// DocsHandler serves the interactive HTML docs of page, loading the
// document from specURL.
func DocsHandler(page *Page, cfg *HandleConfig, specURL string) http.Handler {
	if cfg == nil {
		cfg = &HandleConfig{}
	}

	var (
		once sync.Once
		data []byte
	)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			title := cfg.Title
			if title == "" {
				title = page.Info().Title
			}

			var body string
			switch cfg.UI {
			case DocsRapiDoc:
				body = rapidocTemplate(title, specURL)
			case DocsRedoc:
				body = redocTemplate(title, specURL)
			default:
				body = swaggerUITemplate(title, specURL, cfg.SwaggerUIConfig)
			}
			data = []byte(body)
		})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

// JSON returns the current document of p as indented JSON.
func (p *Page) JSON() ([]byte, error) {
	return encodeJSON(p.Build())
}

// YAML returns the current document of p as YAML.
func (p *Page) YAML() ([]byte, error) {
	return encodeYAML(p.Build())
}

func encodeJSON(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// encodeYAML converts the JSON encoding to YAML. Going through JSON keeps
// the OpenAPI field names and the omitempty rules of the json tags, and the
// node tree keeps the key order of the JSON output.
func encodeYAML(doc *Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("openapi: convert document to yaml: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// blockStyle clears the flow and quoting styles the JSON input left on n.
// The encoder still quotes strings that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func swaggerUITemplate(title, specPath string, config map[string]any) string {
	var extra strings.Builder
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v, err := json.Marshal(config[k])
		if err != nil {
			continue
		}
		fmt.Fprintf(&extra, ", %s: %s", k, v)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: %q, dom_id: "#swagger-ui"%s});
</script>
</body>
</html>`, html.EscapeString(title), specPath, extra.String())
}

func rapidocTemplate(title, specPath string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<script type="module" src="https://unpkg.com/rapidoc/dist/rapidoc-min.js"></script>
</head>
<body>
<rapi-doc spec-url=%q></rapi-doc>
</body>
</html>`, html.EscapeString(title), specPath)
}

func redocTemplate(title, specPath string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
</head>
<body>
<redoc spec-url=%q></redoc>
<script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>`, html.EscapeString(title), specPath)
}
