package openapi

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// macroTypeMap maps path variable macros to OpenAPI type and format.
var macroTypeMap = map[string][2]string{
	"uuid":     {"string", "uuid"},
	"int":      {"integer", ""},
	"float":    {"number", ""},
	"slug":     {"string", ""},
	"alpha":    {"string", ""},
	"alphanum": {"string", ""},
	"date":     {"string", "date"},
	"hex":      {"string", ""},
	"domain":   {"string", "hostname"},
}

// pathVarRegexp matches {name} and {name:macro}.
var pathVarRegexp = regexp.MustCompile(`\{([^}]+)\}`)

// JoinPath concatenates a container prefix and a handler path with exactly
// one slash between them. The result always starts with "/". An empty
// path yields the prefix itself.
//
// See: https://spec.openapis.org/oas/v3.1.0#paths-object
func JoinPath(prefix, path string) string {
	prefix = strings.TrimRight(prefix, "/")
	path = strings.TrimLeft(path, "/")

	full := prefix
	if path != "" {
		full = prefix + "/" + path
	}
	if !strings.HasPrefix(full, "/") {
		full = "/" + full
	}
	return full
}

// FullPath returns the OpenAPI path of a handler mounted under prefix:
// the joined path with {name:macro} variables reduced to {name}.
func FullPath(prefix, path string) string {
	full, _ := parsePath(JoinPath(prefix, path))
	return full
}

// parsePath converts a path template to OpenAPI form and returns the
// generated path parameters, in template order.
//
// See: https://spec.openapis.org/oas/v3.1.0#path-templating
func parsePath(tpl string) (string, []*Parameter) {
	var params []*Parameter

	openAPIPath := pathVarRegexp.ReplaceAllStringFunc(tpl, func(match string) string {
		varName, macroName, _ := strings.Cut(match[1:len(match)-1], ":")

		param := &Parameter{
			Name:     varName,
			In:       "path",
			Required: true,
			Schema:   &Schema{Type: TypeString("string")},
		}

		if typeInfo, ok := macroTypeMap[macroName]; ok {
			param.Schema = &Schema{Type: TypeString(typeInfo[0]), Format: typeInfo[1]}
		}

		params = append(params, param)
		return "{" + varName + "}"
	})

	return openAPIPath, params
}

// pathVarNames returns the parameter names of params.
func pathVarNames(params []*Parameter) []string {
	if len(params) == 0 {
		return nil
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// mergeParameters keeps the auto-generated path parameters that no custom
// parameter overrides (same name and location) and appends the custom ones.
func mergeParameters(auto, custom []*Parameter) []*Parameter {
	if len(auto) == 0 && len(custom) == 0 {
		return nil
	}

	overrides := make(map[[2]string]struct{}, len(custom))
	for _, p := range custom {
		overrides[[2]string{p.Name, p.In}] = struct{}{}
	}

	var merged []*Parameter
	for _, p := range auto {
		if _, ok := overrides[[2]string{p.Name, p.In}]; !ok {
			merged = append(merged, p)
		}
	}

	return append(merged, custom...)
}

// responseDescription returns the default description for a response key.
func responseDescription(key string) string {
	if key == "default" {
		return "Default response"
	}
	if code, err := strconv.Atoi(key); err == nil {
		if text := http.StatusText(code); text != "" {
			return text
		}
	}
	return key
}
