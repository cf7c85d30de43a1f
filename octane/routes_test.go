package octane

import (
	"strings"
	"testing"
)

const testRouteDoc = `
defines:
  constants:
    api_version: "1"
  params:
    id:
      type: integer
      required: true
      min_value: 1
    query:
      type: query

defects:
  get-all:
    url: /defects
    method: get
    params:
      $query: {}
      limit:
        type: integer
        min_value: 1
  get:
    url: /defects/:id
    method: get
    params:
      $id: {}
  create:
    url: /defects
    method: post
    params:
      name:
        type: string
        required: true
        max_length: 255
      owners:
        type: reference
        field_type_data:
          multiple: true
runs:
  history:
    get-all:
      url: /runs/:id/history
      method: get
      params:
        run: $id
`

func TestParseRoutesCompilesRegistry(t *testing.T) {
	def, err := ParseRoutes([]byte(testRouteDoc))
	if err != nil {
		t.Fatalf("ParseRoutes: %v", err)
	}

	if got, want := strings.Join(def.Namespaces(), ","), "defects,runs"; got != want {
		t.Errorf("Namespaces = %q, want %q", got, want)
	}
	if got, want := strings.Join(def.Operations("defects"), ","), "create,get,getAll"; got != want {
		t.Errorf("Operations(defects) = %q, want %q", got, want)
	}
	if def.Constants["api_version"] != "1" {
		t.Errorf("Constants[api_version] = %q", def.Constants["api_version"])
	}

	route, ok := def.Lookup("defects", "get")
	if !ok {
		t.Fatal("defects.get not found")
	}
	if route.Method != "GET" || route.URL != "/defects/:id" {
		t.Errorf("route = %s %s", route.Method, route.URL)
	}
	spec := route.Params["id"]
	if spec == nil || spec.Type != ParamInteger || !spec.Required || *spec.MinValue != 1 {
		t.Errorf("id spec not resolved from defines: %+v", spec)
	}
}

func TestParseRoutesNestedNamespaceCamelCase(t *testing.T) {
	def, err := ParseRoutes([]byte(testRouteDoc))
	if err != nil {
		t.Fatalf("ParseRoutes: %v", err)
	}
	// runs.history.get-all compiles to operation historyGetAll under runs.
	route, ok := def.Lookup("runs", "historyGetAll")
	if !ok {
		t.Fatalf("runs.historyGetAll not found, have %v", def.Operations("runs"))
	}
	// "run: $id" aliases the shared id define under the local name.
	spec := route.Params["run"]
	if spec == nil || spec.Type != ParamInteger || !spec.Required {
		t.Errorf("aliased spec = %+v", spec)
	}
}

func TestParseRoutesMultipleReference(t *testing.T) {
	def, err := ParseRoutes([]byte(testRouteDoc))
	if err != nil {
		t.Fatalf("ParseRoutes: %v", err)
	}
	route, _ := def.Lookup("defects", "create")
	if spec := route.Params["owners"]; spec == nil || !spec.Multiple {
		t.Errorf("owners should be a multiple reference, got %+v", route.Params["owners"])
	}
}

func TestParseRoutesErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unresolved define",
			doc:  "defects:\n  get:\n    url: /defects/:id\n    method: get\n    params:\n      $nope: {}\n",
			want: "does not resolve",
		},
		{
			name: "missing method",
			doc:  "defects:\n  get:\n    url: /defects/:id\n    params:\n      id:\n        type: integer\n",
			want: "method is required",
		},
		{
			name: "unknown param type",
			doc:  "defects:\n  get:\n    url: /d\n    method: get\n    params:\n      x:\n        type: wat\n",
			want: "unknown parameter type",
		},
		{
			name: "top-level leaf",
			doc:  "get:\n  url: /d\n  method: get\n  params: {}\n",
			want: "namespace",
		},
		{
			name: "not yaml",
			doc:  "{{{{",
			want: "parse route document",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoutes([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestRouteCloneIsIndependent(t *testing.T) {
	def, err := ParseRoutes([]byte(testRouteDoc))
	if err != nil {
		t.Fatalf("ParseRoutes: %v", err)
	}
	route, _ := def.Lookup("defects", "get")
	copied := route.clone()
	copied.URL = "/mutated"
	copied.Params["id"].Required = false

	again, _ := def.Lookup("defects", "get")
	if again.URL != "/defects/:id" {
		t.Errorf("registry URL mutated: %s", again.URL)
	}
	if !again.Params["id"].Required {
		t.Error("registry param spec mutated through clone")
	}
}

func TestDefaultRouteDocumentCompiles(t *testing.T) {
	def, err := ParseRoutes(defaultRouteDocument)
	if err != nil {
		t.Fatalf("embedded route document: %v", err)
	}
	for _, op := range []string{"getAll", "get", "create", "update", "delete"} {
		if _, ok := def.Lookup("defects", op); !ok {
			t.Errorf("defects.%s missing from default document", op)
		}
	}
	upload, ok := def.Lookup("attachments", "upload")
	if !ok {
		t.Fatal("attachments.upload missing")
	}
	if upload.ContentType != "multipart/form-data" {
		t.Errorf("upload content-type = %q", upload.ContentType)
	}
	download, _ := def.Lookup("attachments", "download")
	if download == nil || download.Accept != "application/octet-stream" {
		t.Errorf("download accept = %+v", download)
	}
}
