package grok

import (
	"fmt"
	"strconv"
	"strings"
)

// PathSegment is one step of a field path: either a map field or an
// array index.
type PathSegment struct {
	Field   string
	Index   int
	IsIndex bool
}

// Path identifies where in a structured event an extracted value is
// written. It is the semantic identity of a field; generated capture
// names (grok0, grok1, ...) are only internal regex handles.
type Path []PathSegment

// ParsePath parses a dotted/bracketed destination, e.g.
// "http.status_code" or "tags[0].name". An empty string is the root
// destination (valid for filters that merge maps into the event).
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	var p Path
	rest := s
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			if len(p) == 0 {
				return nil, fmt.Errorf("path %q starts with '.'", s)
			}
			rest = rest[1:]
			if rest == "" {
				return nil, fmt.Errorf("path %q ends with '.'", s)
			}
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q has an unterminated index", s)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("path %q has an invalid index %q", s, rest[1:end])
			}
			p = append(p, PathSegment{Index: n, IsIndex: true})
			rest = rest[end+1:]
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			p = append(p, PathSegment{Field: rest[:end]})
			rest = rest[end:]
		}
	}
	return p, nil
}

func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.IsIndex {
			fmt.Fprintf(&b, "[%d]", seg.Index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Field)
	}
	return b.String()
}

// insertAtPath writes v into the nested event map, creating
// intermediate maps and growing slices as needed. A root path with a
// map value merges the map into the event.
func insertAtPath(event map[string]any, p Path, v any) {
	if len(p) == 0 {
		if m, ok := v.(map[string]any); ok {
			for k, mv := range m {
				event[k] = mv
			}
		}
		return
	}
	seg := p[0]
	if seg.IsIndex {
		return // the event root is a map, not an array
	}
	event[seg.Field] = setIn(event[seg.Field], p[1:], v)
}

// setIn returns cur with v placed at p, replacing any non-container
// value that is in the way.
func setIn(cur any, p Path, v any) any {
	if len(p) == 0 {
		return v
	}
	seg := p[0]
	if seg.IsIndex {
		s, ok := cur.([]any)
		if !ok {
			s = nil
		}
		for len(s) <= seg.Index {
			s = append(s, nil)
		}
		s[seg.Index] = setIn(s[seg.Index], p[1:], v)
		return s
	}
	m, ok := cur.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	m[seg.Field] = setIn(m[seg.Field], p[1:], v)
	return m
}
