package grok

import (
	"fmt"
	"strconv"
	"strings"
)

// parsePlaceholder turns the text of one %{...} span into a
// GrokPattern. Errors are plain; the rule compiler wraps them into
// InvalidGrokExpression together with the offending span.
func parsePlaceholder(span string) (*GrokPattern, error) {
	if !strings.HasPrefix(span, "%{") || !strings.HasSuffix(span, "}") {
		return nil, fmt.Errorf("not a %%{...} placeholder")
	}
	inner := span[2 : len(span)-1]
	if strings.TrimSpace(inner) == "" {
		return nil, fmt.Errorf("empty placeholder")
	}

	parts := splitTopLevel(inner, ':')
	if len(parts) > 3 {
		return nil, fmt.Errorf("too many ':' sections in %q", inner)
	}

	name, args, err := parseCall(parts[0])
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("missing matcher name in %q", inner)
	}
	p := &GrokPattern{Match: MatchFunction{Name: name, Args: args}}

	if len(parts) >= 2 {
		path, err := ParsePath(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		p.Destination = &Destination{Path: path}
	}
	if len(parts) == 3 {
		fname, fargs, err := parseCall(parts[2])
		if err != nil {
			return nil, err
		}
		if fname == "" {
			return nil, fmt.Errorf("missing filter name in %q", inner)
		}
		p.Destination.Filter = &FilterSpec{Name: fname, Args: fargs}
	}
	return p, nil
}

// splitTopLevel splits s at sep, ignoring separators inside
// parentheses and double-quoted strings (which may carry \" escapes).
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote:
			if c == '\\' && i+1 < len(s) {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// parseCall parses "name" or "name(arg, arg, ...)".
func parseCall(s string) (string, []any, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s, nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("unterminated argument list in %q", s)
	}
	name := strings.TrimSpace(s[:open])
	args, err := parseArgs(s[open+1 : len(s)-1])
	if err != nil {
		return "", nil, err
	}
	return name, args, nil
}

// parseArgs parses a comma-separated argument list. Quoted strings are
// unescaped (\" and \\), bare tokens become numbers, booleans, or
// strings.
func parseArgs(s string) ([]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var args []any
	for _, raw := range splitTopLevel(s, ',') {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, fmt.Errorf("empty argument")
		}
		if raw[0] == '"' {
			v, err := unescapeQuoted(raw)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			continue
		}
		args = append(args, bareArg(raw))
	}
	return args, nil
}

func bareArg(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// unescapeQuoted strips surrounding double quotes and resolves \" and
// \\ escapes, so `"with \"escaped\" quotes"` round-trips to
// `with "escaped" quotes`.
func unescapeQuoted(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("malformed quoted string %q", s)
	}
	body := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			next := body[i+1]
			if next == '"' || next == '\\' {
				b.WriteByte(next)
				i++
				continue
			}
		}
		if c == '"' {
			return "", fmt.Errorf("unescaped quote inside %q", s)
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}
