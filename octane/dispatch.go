package octane

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const octetStream = "application/octet-stream"

// Result is the reshaped response of one operation. List envelopes are
// unwrapped: Data holds the entity slice and TotalCount the server total.
// Octet-stream responses pass through untouched in Raw.
type Result struct {
	Status      int
	ContentType string
	Data        any
	TotalCount  *int64
	Raw         []byte
}

// wireRequest is a fully-assembled request ready to send and, after a
// re-authentication, to replay byte-for-byte.
type wireRequest struct {
	method string
	url    string
	header http.Header
	body   []byte
}

// buildRequest converts a sanitized parameter set plus a private route copy
// into a wire request: path template substitution, then body placement by
// method (query string for HEAD/GET/DELETE, multipart for file uploads,
// JSON otherwise).
func (c *Client) buildRequest(route *Route, params any) (*wireRequest, error) {
	method := strings.ToUpper(route.Method)
	header := http.Header{}
	for name, value := range c.headers {
		header.Set(name, value)
	}

	var fields map[string]any
	var bulk []map[string]any
	switch p := params.(type) {
	case []map[string]any:
		bulk = p
		fields = map[string]any{}
	case map[string]any:
		fields = p
	case nil:
		fields = map[string]any{}
	default:
		return nil, fmt.Errorf("octane: unexpected sanitized params type %T", params)
	}

	target := c.routeURL(route.URL)
	target, fields = substitutePathParams(target, fields)

	req := &wireRequest{method: method, url: target, header: header}
	accept := route.Accept
	if accept == "" {
		accept = "application/json"
	}
	header.Set("Accept", accept)

	switch {
	case bulk != nil:
		encoded, err := json.Marshal(map[string]any{"data": bulk})
		if err != nil {
			return nil, fmt.Errorf("octane: encode bulk body: %w", err)
		}
		req.body = encoded
		header.Set("Content-Type", "application/json")

	case method == http.MethodGet || method == http.MethodHead || method == http.MethodDelete:
		if len(fields) > 0 {
			req.url = target + "?" + encodeQueryParams(fields)
		}

	case method == http.MethodPost && isMultipart(route, fields):
		body, contentType, err := encodeMultipart(fields)
		if err != nil {
			return nil, err
		}
		req.body = body
		header.Set("Content-Type", contentType)

	case method == http.MethodPost:
		encoded, err := json.Marshal(map[string]any{"data": []any{fields}})
		if err != nil {
			return nil, fmt.Errorf("octane: encode body: %w", err)
		}
		req.body = encoded
		header.Set("Content-Type", "application/json")

	default:
		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("octane: encode body: %w", err)
		}
		req.body = encoded
		header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// routeURL resolves a route template against the server: templates under
// /api/ are server-relative, everything else hangs off the workspace root.
func (c *Client) routeURL(template string) string {
	if strings.HasPrefix(template, "/api/") {
		return c.baseURL + template
	}
	return fmt.Sprintf("%s/api/shared_spaces/%d/workspaces/%d%s",
		c.baseURL, c.sharedSpace, c.workspace, template)
}

// substitutePathParams fills :name placeholders from the sanitized fields
// and removes the consumed fields from the body. Longer names substitute
// first so :ids never matches a :id placeholder prefix.
func substitutePathParams(target string, fields map[string]any) (string, map[string]any) {
	if !strings.Contains(target, ":") {
		return target, fields
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	remaining := make(map[string]any, len(fields))
	for name, value := range fields {
		remaining[name] = value
	}
	for _, name := range names {
		placeholder := ":" + name
		if !strings.Contains(target, placeholder) {
			continue
		}
		target = strings.ReplaceAll(target, placeholder, url.PathEscape(valueToString(remaining[name])))
		delete(remaining, name)
	}
	return target, remaining
}

func encodeQueryParams(fields map[string]any) string {
	values := url.Values{}
	for _, name := range sortedFieldKeys(fields) {
		values.Set(name, valueToString(fields[name]))
	}
	return values.Encode()
}

func sortedFieldKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func valueToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Marshaler:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	case map[string]any:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", value)
}

func isMultipart(route *Route, fields map[string]any) bool {
	if strings.Contains(route.ContentType, "multipart") {
		return true
	}
	for _, value := range fields {
		if _, ok := value.(*os.File); ok {
			return true
		}
	}
	return false
}

// encodeMultipart splits the file payload out of the fields into a
// multipart form: an "entity" JSON part describing the upload plus a
// "content" binary part holding the file bytes.
func encodeMultipart(fields map[string]any) ([]byte, string, error) {
	var file *os.File
	entity := make(map[string]any, len(fields))
	for name, value := range fields {
		if f, ok := value.(*os.File); ok {
			if file != nil {
				return nil, "", fmt.Errorf("octane: multiple file parameters in one request")
			}
			file = f
			continue
		}
		entity[name] = value
	}
	if file == nil {
		return nil, "", fmt.Errorf("octane: multipart request without a file parameter")
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	entityJSON, err := json.Marshal(entity)
	if err != nil {
		return nil, "", fmt.Errorf("octane: encode entity part: %w", err)
	}
	entityHeader := textproto.MIMEHeader{}
	entityHeader.Set("Content-Disposition", `form-data; name="entity"`)
	entityHeader.Set("Content-Type", "application/json")
	entityPart, err := writer.CreatePart(entityHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := entityPart.Write(entityJSON); err != nil {
		return nil, "", err
	}

	contentPart, err := writer.CreateFormFile("content", filepath.Base(file.Name()))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(contentPart, file); err != nil {
		return nil, "", fmt.Errorf("octane: read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// reshapeResponse unwraps the vendor envelopes: {total_count, data} list
// responses on GET and singleton {data:[one]} creates on POST.
func reshapeResponse(method string, accept string, resp *http.Response, body []byte) *Result {
	result := &Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if accept == octetStream {
		result.Raw = body
		return result
	}
	var decoded any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			result.Data = string(body)
			return result
		}
	}
	if obj, ok := decoded.(map[string]any); ok {
		if method == http.MethodGet {
			if data, hasData := obj["data"]; hasData {
				if rawCount, hasCount := obj["total_count"]; hasCount {
					if count, ok := toInt64(rawCount); ok {
						result.Data = data
						result.TotalCount = &count
						return result
					}
				}
			}
		}
		if method == http.MethodPost {
			if data, ok := obj["data"].([]any); ok && len(data) == 1 {
				result.Data = data[0]
				return result
			}
		}
	}
	result.Data = decoded
	return result
}
