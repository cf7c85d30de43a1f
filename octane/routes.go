package octane

import (
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ParamType is the declared type of one route parameter.
type ParamType string

const (
	ParamInteger   ParamType = "integer"
	ParamBoolean   ParamType = "boolean"
	ParamDatetime  ParamType = "datetime"
	ParamDate      ParamType = "date"
	ParamString    ParamType = "string"
	ParamMemo      ParamType = "memo"
	ParamObject    ParamType = "object"
	ParamReference ParamType = "reference"
	ParamQuery     ParamType = "query"
	ParamFile      ParamType = "file"
)

func knownParamType(t ParamType) bool {
	switch t {
	case ParamInteger, ParamBoolean, ParamDatetime, ParamDate, ParamString,
		ParamMemo, ParamObject, ParamReference, ParamQuery, ParamFile:
		return true
	}
	return false
}

// ParamSpec is the declared type/constraint metadata for one parameter.
type ParamSpec struct {
	Type      ParamType
	Required  bool
	MinValue  *int64 // integer lower bound
	MaxValue  *int64 // integer upper bound
	MaxLength *int   // string/memo length cap
	Multiple  bool   // reference fields holding a list
}

// Route is one compiled leaf operation: an HTTP method, a URL template with
// :param placeholders, and the parameter schema requests are validated
// against.
type Route struct {
	Namespace   string
	Name        string
	Method      string
	URL         string
	Params      map[string]*ParamSpec
	Accept      string
	ContentType string
	Description string
}

// clone deep-copies the route so per-call URL substitution never touches
// the shared registry.
func (r *Route) clone() *Route {
	copied := *r
	copied.Params = make(map[string]*ParamSpec, len(r.Params))
	for name, spec := range r.Params {
		specCopy := *spec
		copied.Params[name] = &specCopy
	}
	return &copied
}

// RouteDefinition is the compiled form of a route document: the defines
// registry, document constants, and the typed operation registry.
type RouteDefinition struct {
	Constants map[string]string
	defines   map[string]*ParamSpec
	routes    map[string]map[string]*Route
}

// routeDocumentSchema checks the document's outer shape before compilation:
// the defines block and that every namespace is an object. Leaf-level
// checks happen during the walk, where errors can name the offending path.
const routeDocumentSchema = `{
	"type": "object",
	"properties": {
		"defines": {
			"type": "object",
			"properties": {
				"constants": {"type": "object"},
				"params": {
					"type": "object",
					"additionalProperties": {
						"type": "object",
						"properties": {"type": {"type": "string"}},
						"required": ["type"]
					}
				}
			}
		}
	},
	"additionalProperties": {"type": "object"}
}`

var routeSchemaValidator = mustCompileRouteSchema()

func mustCompileRouteSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("routes.json", strings.NewReader(routeDocumentSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("routes.json")
}

// ParseRoutes parses and compiles a route document (JSON or YAML). The
// document is validated structurally, then walked once: a node carrying
// both "url" and "params" is a leaf operation, everything else is a
// namespace. Every $name parameter indirection must resolve against
// defines.params or compilation fails.
func ParseRoutes(data []byte) (*RouteDefinition, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configErrorf("parse route document: %v", err)
	}
	if err := routeSchemaValidator.Validate(doc); err != nil {
		return nil, configErrorf("route document shape: %v", err)
	}

	def := &RouteDefinition{
		Constants: map[string]string{},
		defines:   map[string]*ParamSpec{},
		routes:    map[string]map[string]*Route{},
	}
	if err := def.parseDefines(doc["defines"]); err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(doc) {
		if name == "defines" {
			continue
		}
		node, ok := doc[name].(map[string]any)
		if !ok {
			return nil, configErrorf("route namespace %q is not an object", name)
		}
		if err := def.walk(node, []string{normalizeSegment(name)}); err != nil {
			return nil, err
		}
	}
	return def, nil
}

func (d *RouteDefinition) parseDefines(raw any) error {
	defines, ok := raw.(map[string]any)
	if !ok {
		return nil // defines block is optional
	}
	if constants, ok := defines["constants"].(map[string]any); ok {
		for _, key := range sortedKeys(constants) {
			d.Constants[key] = fmt.Sprintf("%v", constants[key])
		}
	}
	params, ok := defines["params"].(map[string]any)
	if !ok {
		return nil
	}
	for _, name := range sortedKeys(params) {
		specRaw, ok := params[name].(map[string]any)
		if !ok {
			return configErrorf("defines.params.%s is not an object", name)
		}
		spec, err := decodeParamSpec(specRaw)
		if err != nil {
			return configErrorf("defines.params.%s: %v", name, err)
		}
		d.defines[name] = spec
	}
	return nil
}

func (d *RouteDefinition) walk(node map[string]any, path []string) error {
	if isLeaf(node) {
		return d.compileLeaf(node, path)
	}
	for _, key := range sortedKeys(node) {
		child, ok := node[key].(map[string]any)
		if !ok {
			// Metadata like descriptions can sit next to child routes.
			continue
		}
		childPath := append(append([]string{}, path...), normalizeSegment(key))
		if err := d.walk(child, childPath); err != nil {
			return err
		}
	}
	return nil
}

func isLeaf(node map[string]any) bool {
	_, hasURL := node["url"]
	_, hasParams := node["params"]
	return hasURL && hasParams
}

func (d *RouteDefinition) compileLeaf(node map[string]any, path []string) error {
	if len(path) < 2 {
		return configErrorf("route %s: operations must live under a namespace", strings.Join(path, "."))
	}
	namespace := path[0]
	name := camelJoin(path[1:])
	location := namespace + "." + name

	urlTemplate, ok := node["url"].(string)
	if !ok || urlTemplate == "" {
		return configErrorf("route %s: url must be a non-empty string", location)
	}
	method, ok := node["method"].(string)
	if !ok || method == "" {
		return configErrorf("route %s: method is required", location)
	}
	rawParams, ok := node["params"].(map[string]any)
	if !ok {
		return configErrorf("route %s: params must be an object", location)
	}

	route := &Route{
		Namespace: namespace,
		Name:      name,
		Method:    strings.ToUpper(method),
		URL:       urlTemplate,
		Params:    make(map[string]*ParamSpec, len(rawParams)),
	}
	if accept, ok := node["accept"].(string); ok {
		route.Accept = accept
	}
	if contentType, ok := node["content-type"].(string); ok {
		route.ContentType = contentType
	}
	if desc, ok := node["description"].(string); ok {
		route.Description = desc
	}

	for _, paramName := range sortedKeys(rawParams) {
		name, spec, err := d.resolveParam(paramName, rawParams[paramName])
		if err != nil {
			return configErrorf("route %s: %v", location, err)
		}
		route.Params[name] = spec
	}

	if d.routes[namespace] == nil {
		d.routes[namespace] = map[string]*Route{}
	}
	if _, exists := d.routes[namespace][name]; exists {
		return configErrorf("route %s: duplicate operation", location)
	}
	d.routes[namespace][name] = route
	return nil
}

// resolveParam handles the two $name indirection forms ("$query": {...}
// overrides and "query": "$query" aliases) plus inline spec objects.
func (d *RouteDefinition) resolveParam(key string, raw any) (string, *ParamSpec, error) {
	if strings.HasPrefix(key, "$") {
		name := key[1:]
		shared, ok := d.defines[name]
		if !ok {
			return "", nil, fmt.Errorf("param $%s does not resolve against defines.params", name)
		}
		spec := *shared
		if overrides, ok := raw.(map[string]any); ok {
			if required, ok := overrides["required"].(bool); ok {
				spec.Required = required
			}
		}
		return name, &spec, nil
	}
	if alias, ok := raw.(string); ok {
		if !strings.HasPrefix(alias, "$") {
			return "", nil, fmt.Errorf("param %s: string value must be a $name indirection", key)
		}
		shared, ok := d.defines[alias[1:]]
		if !ok {
			return "", nil, fmt.Errorf("param %s: %s does not resolve against defines.params", key, alias)
		}
		spec := *shared
		return key, &spec, nil
	}
	specRaw, ok := raw.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("param %s: spec must be an object or $name indirection", key)
	}
	spec, err := decodeParamSpec(specRaw)
	if err != nil {
		return "", nil, fmt.Errorf("param %s: %v", key, err)
	}
	return key, spec, nil
}

func decodeParamSpec(raw map[string]any) (*ParamSpec, error) {
	typRaw, ok := raw["type"].(string)
	if !ok {
		return nil, fmt.Errorf("missing type")
	}
	typ := ParamType(typRaw)
	if !knownParamType(typ) {
		return nil, fmt.Errorf("unknown parameter type %q", typRaw)
	}
	spec := &ParamSpec{Type: typ}
	if required, ok := raw["required"].(bool); ok {
		spec.Required = required
	}
	if v, ok := toInt64(raw["min_value"]); ok {
		spec.MinValue = &v
	}
	if v, ok := toInt64(raw["max_value"]); ok {
		spec.MaxValue = &v
	}
	if v, ok := toInt64(raw["max_length"]); ok {
		length := int(v)
		spec.MaxLength = &length
	}
	if ftd, ok := raw["field_type_data"].(map[string]any); ok {
		if multiple, ok := ftd["multiple"].(bool); ok {
			spec.Multiple = multiple
		}
	}
	return spec, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Namespaces lists the compiled entity namespaces in sorted order.
func (d *RouteDefinition) Namespaces() []string {
	return sortedRouteKeys(d.routes)
}

// Operations lists the operation names compiled under a namespace.
func (d *RouteDefinition) Operations(namespace string) []string {
	ops := d.routes[namespace]
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a compiled route by namespace and operation name.
func (d *RouteDefinition) Lookup(namespace, operation string) (*Route, bool) {
	route, ok := d.routes[namespace][operation]
	return route, ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedRouteKeys(m map[string]map[string]*Route) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// normalizeSegment lower-cases a path segment and folds separators so
// "Get-All" and "get_all" address the same route.
func normalizeSegment(segment string) string {
	return strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(segment))
}

// camelJoin joins normalized segments into a lowerCamel operation name:
// ["get", "all"] -> "getAll".
func camelJoin(segments []string) string {
	var parts []string
	for _, seg := range segments {
		parts = append(parts, strings.Split(seg, "_")...)
	}
	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			b.WriteString(part)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
