// Package reference provides the minimal entity pointer types used in
// Octane request bodies: a single {id, type} reference and an ordered list
// of references serialized in the {total_count, data} envelope.
package reference

import "encoding/json"

// Reference points at one entity. ID keeps whatever shape the server or
// caller supplied (string or number); Type is always a string.
type Reference struct {
	ID   any    `json:"id"`
	Type string `json:"type"`
}

// New creates a reference to the entity with the given id and type.
func New(id any, entityType string) *Reference {
	return &Reference{ID: id, Type: entityType}
}

// Parse coerces raw into a Reference. It accepts an existing Reference
// (copied) or a plain object carrying both "id" and "type" keys with a
// string type. Any other shape returns nil, so callers can treat Parse as
// an optional coercion rather than an error source.
func Parse(raw any) *Reference {
	switch v := raw.(type) {
	case *Reference:
		if v == nil {
			return nil
		}
		copied := *v
		return &copied
	case Reference:
		copied := v
		return &copied
	case map[string]any:
		id, hasID := v["id"]
		typRaw, hasType := v["type"]
		if !hasID || !hasType {
			return nil
		}
		typ, ok := typRaw.(string)
		if !ok {
			return nil
		}
		return &Reference{ID: id, Type: typ}
	default:
		return nil
	}
}

// MultiReference is an ordered list of references.
type MultiReference struct {
	refs []*Reference
}

// NewMulti creates a MultiReference holding the given references.
func NewMulti(refs ...*Reference) *MultiReference {
	m := &MultiReference{}
	for _, ref := range refs {
		m.Add(ref)
	}
	return m
}

// ParseMulti coerces raw into a MultiReference. It accepts an existing
// MultiReference (refs copied), a slice of Reference values, or a slice of
// plain objects parseable by Parse. The first element that fails to parse
// fails the whole call: ParseMulti returns nil rather than skipping bad
// elements.
func ParseMulti(raw any) *MultiReference {
	switch v := raw.(type) {
	case *MultiReference:
		if v == nil {
			return nil
		}
		out := &MultiReference{refs: make([]*Reference, 0, len(v.refs))}
		for _, ref := range v.refs {
			copied := *ref
			out.refs = append(out.refs, &copied)
		}
		return out
	case []*Reference:
		out := &MultiReference{refs: make([]*Reference, 0, len(v))}
		for _, ref := range v {
			parsed := Parse(ref)
			if parsed == nil {
				return nil
			}
			out.refs = append(out.refs, parsed)
		}
		return out
	case []any:
		out := &MultiReference{refs: make([]*Reference, 0, len(v))}
		for _, el := range v {
			parsed := Parse(el)
			if parsed == nil {
				return nil
			}
			out.refs = append(out.refs, parsed)
		}
		return out
	case []map[string]any:
		out := &MultiReference{refs: make([]*Reference, 0, len(v))}
		for _, el := range v {
			parsed := Parse(el)
			if parsed == nil {
				return nil
			}
			out.refs = append(out.refs, parsed)
		}
		return out
	default:
		return nil
	}
}

// Add appends ref and returns the receiver for chaining. A nil ref is a
// caller bug and is ignored.
func (m *MultiReference) Add(ref *Reference) *MultiReference {
	if ref != nil {
		m.refs = append(m.refs, ref)
	}
	return m
}

// Refs returns a copy of the owned reference list.
func (m *MultiReference) Refs() []*Reference {
	out := make([]*Reference, len(m.refs))
	copy(out, m.refs)
	return out
}

// Len returns the number of references.
func (m *MultiReference) Len() int {
	return len(m.refs)
}

// MarshalJSON serializes as {"total_count": N, "data": [...]}.
func (m *MultiReference) MarshalJSON() ([]byte, error) {
	data := m.refs
	if data == nil {
		data = []*Reference{}
	}
	return json.Marshal(struct {
		TotalCount int          `json:"total_count"`
		Data       []*Reference `json:"data"`
	}{TotalCount: len(data), Data: data})
}
