// Package rest is the URL-building client variant: instead of a compiled
// route table it shapes requests through a single-use URL accumulator and a
// small verb-per-method handler. Both variants share the session contract
// and the error types of package octane.
package rest

import (
	"fmt"
	"net/url"
	"strings"

	"octane-sdk/query"
)

// URLBuilder accumulates the shape of one request and renders it with
// Build. A builder is owned by exactly one in-flight request: Build
// renders the accumulated state and fully resets the builder, so stale
// state never bleeds into the next call.
type URLBuilder struct {
	sharedSpace int64
	workspace   int64

	entityName  string
	at          string
	script      bool
	limit       int
	offset      int
	hasOffset   bool
	fields      []string
	orderBy     []string
	query       *query.Query
	queryString string
}

// NewURLBuilder creates a builder scoped to one shared-space/workspace
// pair.
func NewURLBuilder(sharedSpace, workspace int64) *URLBuilder {
	return &URLBuilder{sharedSpace: sharedSpace, workspace: workspace}
}

// Entity sets the entity collection the request addresses.
func (b *URLBuilder) Entity(name string) *URLBuilder {
	b.entityName = name
	return b
}

// At targets a single entity by id. When set, Build renders the by-id
// form and pagination/query state is dropped.
func (b *URLBuilder) At(id any) *URLBuilder {
	b.at = fmt.Sprintf("%v", id)
	return b
}

// Script appends the /script segment to a by-id path (test entities).
func (b *URLBuilder) Script() *URLBuilder {
	b.script = true
	return b
}

func (b *URLBuilder) Limit(n int) *URLBuilder {
	b.limit = n
	return b
}

func (b *URLBuilder) Offset(n int) *URLBuilder {
	b.offset = n
	b.hasOffset = true
	return b
}

// Fields appends to the comma-joined field selection.
func (b *URLBuilder) Fields(names ...string) *URLBuilder {
	b.fields = append(b.fields, names...)
	return b
}

// OrderBy appends to the comma-joined sort specification.
func (b *URLBuilder) OrderBy(names ...string) *URLBuilder {
	b.orderBy = append(b.orderBy, names...)
	return b
}

// Query attaches a filter expression, rendered and quoted at Build time.
func (b *URLBuilder) Query(q *query.Query) *URLBuilder {
	b.query = q
	return b
}

// QueryString attaches raw, pre-encoded name=value pairs rendered ahead
// of every other parameter.
func (b *URLBuilder) QueryString(raw string) *URLBuilder {
	b.queryString = raw
	return b
}

// Build renders the accumulated state to a path plus query string and
// resets the builder to empty.
func (b *URLBuilder) Build() (string, error) {
	defer b.reset()

	var sb strings.Builder
	fmt.Fprintf(&sb, "/api/shared_spaces/%d/workspaces/%d", b.sharedSpace, b.workspace)
	if b.entityName == "" {
		return sb.String(), nil
	}
	sb.WriteString("/")
	sb.WriteString(b.entityName)

	if b.at != "" {
		// By-id mode: a single-entity fetch does not paginate, so limit,
		// offset, order and query state is dropped.
		sb.WriteString("/")
		sb.WriteString(b.at)
		if b.script {
			sb.WriteString("/script")
		}
		if len(b.fields) > 0 {
			sb.WriteString("?fields=")
			sb.WriteString(strings.Join(b.fields, ","))
		}
		return sb.String(), nil
	}

	sep := func() string {
		if strings.Contains(sb.String(), "?") {
			return "&"
		}
		return "?"
	}
	if b.queryString != "" {
		sb.WriteString(sep())
		sb.WriteString(b.queryString)
	}
	if len(b.fields) > 0 {
		sb.WriteString(sep())
		sb.WriteString("fields=")
		sb.WriteString(strings.Join(b.fields, ","))
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, "%slimit=%d", sep(), b.limit)
	}
	if b.hasOffset {
		fmt.Fprintf(&sb, "%soffset=%d", sep(), b.offset)
	}
	if b.query != nil {
		built, err := b.query.Build()
		if err != nil {
			return "", err
		}
		// The quoted expression carries spaces and carets; encode it so the
		// rendered path is a valid request target.
		fmt.Fprintf(&sb, "%squery=%s", sep(), url.QueryEscape(`"`+built+`"`))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(sep())
		sb.WriteString("order_by=")
		sb.WriteString(strings.Join(b.orderBy, ","))
	}
	return sb.String(), nil
}

func (b *URLBuilder) reset() {
	*b = URLBuilder{sharedSpace: b.sharedSpace, workspace: b.workspace}
}
