// octane-routegen converts an OpenAPI document into a route document
// consumable by the route-table client. Offline only: the input is a file,
// never a live server.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"octane-sdk/internal/logging"
)

func main() {
	input := flag.String("in", "", "OpenAPI document (YAML or JSON)")
	output := flag.String("out", "", "Route document output path (default stdout)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.New("text", *logLevel)
	if *input == "" {
		logger.Error("routegen", "error", "missing -in flag")
		os.Exit(2)
	}
	if err := run(*input, *output); err != nil {
		logger.Error("routegen", "error", err)
		os.Exit(1)
	}
}

func run(input, output string) error {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	doc, err := loader.LoadFromFile(input)
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}

	routes := buildRouteDocument(doc)
	encoded, err := yaml.Marshal(routes)
	if err != nil {
		return fmt.Errorf("encode route document: %w", err)
	}
	if output == "" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	return os.WriteFile(output, encoded, 0o644)
}

// buildRouteDocument groups operations by the first path segment: the
// segment becomes the namespace, the rest of the path plus the verb name
// the operation.
func buildRouteDocument(doc *openapi3.T) map[string]any {
	out := map[string]any{}

	pathKeys := make([]string, 0, len(doc.Paths))
	for path := range doc.Paths {
		pathKeys = append(pathKeys, path)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		item := doc.Paths.Find(path)
		if item == nil {
			continue
		}
		namespace, template := splitPath(path)
		if namespace == "" {
			continue
		}
		ns, ok := out[namespace].(map[string]any)
		if !ok {
			ns = map[string]any{}
			out[namespace] = ns
		}
		for method, op := range collectOperations(item) {
			leaf := map[string]any{
				"url":    template,
				"method": method,
				"params": buildParams(item, op),
			}
			if op.Description != "" {
				leaf["description"] = strings.TrimSpace(op.Description)
			}
			ns[operationName(method, template)] = leaf
		}
	}
	return out
}

func collectOperations(item *openapi3.PathItem) map[string]*openapi3.Operation {
	ops := map[string]*openapi3.Operation{}
	if item.Get != nil {
		ops["get"] = item.Get
	}
	if item.Post != nil {
		ops["post"] = item.Post
	}
	if item.Put != nil {
		ops["put"] = item.Put
	}
	if item.Delete != nil {
		ops["delete"] = item.Delete
	}
	if item.Head != nil {
		ops["head"] = item.Head
	}
	return ops
}

// splitPath turns /defects/{id}/comments into namespace "defects" and
// template "/defects/:id/comments".
func splitPath(path string) (string, string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", ""
	}
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = ":" + strings.Trim(seg, "{}")
		}
	}
	return segments[0], "/" + strings.Join(segments, "/")
}

// operationName derives the route name from the verb plus any trailing
// non-parameter segments: GET /defects -> get-all, GET /defects/:id -> get,
// GET /defects/:id/comments -> get-comments.
func operationName(method, template string) string {
	segments := strings.Split(strings.Trim(template, "/"), "/")
	var suffix []string
	hasParam := false
	for _, seg := range segments[1:] {
		if strings.HasPrefix(seg, ":") {
			hasParam = true
			continue
		}
		suffix = append(suffix, seg)
	}
	name := method
	if method == "get" && !hasParam && len(suffix) == 0 {
		name = "get-all"
	}
	if len(suffix) > 0 {
		name = name + "-" + strings.Join(suffix, "-")
	}
	return name
}

func buildParams(item *openapi3.PathItem, op *openapi3.Operation) map[string]any {
	params := map[string]any{}
	for _, ref := range append(append(openapi3.Parameters{}, item.Parameters...), op.Parameters...) {
		p := ref.Value
		if p == nil || (p.In != "path" && p.In != "query") {
			continue
		}
		spec := map[string]any{"type": schemaParamType(p.Schema)}
		if p.Required || p.In == "path" {
			spec["required"] = true
		}
		params[p.Name] = spec
	}
	if body := requestBodySchema(op); body != nil {
		required := map[string]bool{}
		for _, name := range body.Required {
			required[name] = true
		}
		names := make([]string, 0, len(body.Properties))
		for name := range body.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			spec := map[string]any{"type": schemaParamType(body.Properties[name])}
			if required[name] {
				spec["required"] = true
			}
			params[name] = spec
		}
	}
	return params
}

func requestBodySchema(op *openapi3.Operation) *openapi3.Schema {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	media := op.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}
	schema := media.Schema.Value
	// The vendor wraps write bodies as {data: [entity]}; unwrap to the
	// entity schema when that shape is declared.
	if data, ok := schema.Properties["data"]; ok && data.Value != nil &&
		data.Value.Items != nil && data.Value.Items.Value != nil {
		return data.Value.Items.Value
	}
	return schema
}

func schemaParamType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil {
		return "string"
	}
	switch ref.Value.Type {
	case "integer", "number":
		return "integer"
	case "boolean":
		return "boolean"
	case "object":
		return "object"
	default:
		if ref.Value.Format == "date-time" {
			return "datetime"
		}
		if ref.Value.Format == "date" {
			return "date"
		}
		return "string"
	}
}
