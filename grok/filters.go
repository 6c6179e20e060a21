package grok

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// GrokFilter transforms a captured raw value before it is stored on
// the event. Returning (nil, nil) drops the value (nullIf). Filters on
// a field run in order: the matcher's implicit coercion first, then
// any filter the rule author declared.
type GrokFilter interface {
	Apply(v any) (any, error)
}

// ---------------- numeric coercions (implicit) ----------------

type integerFilter struct{ ext bool }
type numberFilter struct{ ext bool }
type booleanFilter struct{}

func (f integerFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if !f.ext {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	// extended form allows scientific notation
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	return int64(fl), nil
}

func (f numberFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return fl, nil
}

func (booleanFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return nil, fmt.Errorf("not a boolean: %q", s)
}

// ---------------- explicit filters ----------------

// nullIfFilter compares on the string rendering of the value, so it
// still works after an implicit numeric coercion.
type nullIfFilter struct{ value string }

func (f nullIfFilter) Apply(v any) (any, error) {
	if fmt.Sprint(v) == f.value {
		return nil, nil
	}
	return v, nil
}

type scaleFilter struct{ factor float64 }

func (f scaleFilter) Apply(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		if f.factor == float64(int64(f.factor)) {
			return n * int64(f.factor), nil
		}
		return float64(n) * f.factor, nil
	case float64:
		return n * f.factor, nil
	case string:
		fl, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, fmt.Errorf("scale: not a number: %q", n)
		}
		return fl * f.factor, nil
	}
	return nil, fmt.Errorf("scale: unsupported value %T", v)
}

type caseFilter struct{ upper bool }

func (f caseFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	if f.upper {
		return strings.ToUpper(s), nil
	}
	return strings.ToLower(s), nil
}

type jsonFilter struct{}

func (jsonFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return out, nil
}

type queryStringFilter struct{}

func (queryStringFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	s = strings.TrimPrefix(s, "?")
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, fmt.Errorf("querystring: %w", err)
	}
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
		} else {
			items := make([]any, len(vs))
			for i, it := range vs {
				items[i] = it
			}
			out[k] = items
		}
	}
	return out, nil
}

type decodeURIComponentFilter struct{}

func (decodeURIComponentFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	out, err := url.QueryUnescape(s)
	if err != nil {
		return nil, fmt.Errorf("decodeuricomponent: %w", err)
	}
	return out, nil
}

type keyValueFilter struct{ separator string }

func (f keyValueFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	}) {
		k, val, ok := strings.Cut(field, f.separator)
		if !ok || k == "" {
			continue
		}
		out[k] = strings.Trim(val, `"'`)
	}
	return out, nil
}

// DateFilter parses a captured date per the user's format and yields
// epoch milliseconds.
type DateFilter struct {
	OriginalFormat string
	Layout         string          // Go time layout derived from the format
	TZRegex        *regexp2.Regexp // locates the embedded timezone, when the format has one
	TargetTZ       string
	TZAware        bool
}

func (f *DateFilter) Apply(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	if f.TZAware && f.TZRegex != nil {
		m, merr := f.TZRegex.FindStringMatch(s)
		if merr != nil || m == nil {
			return nil, fmt.Errorf("date: no timezone in %q for format %q", s, f.OriginalFormat)
		}
	}
	loc := time.UTC
	if f.TargetTZ != "" {
		// validated at compile time
		loc, _ = parseTimezone(f.TargetTZ)
	}
	t, err := time.ParseInLocation(f.Layout, s, loc)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	if t.Year() == 0 {
		// formats without a year (syslog style) anchor at the epoch year
		t = t.AddDate(1970, 0, 0)
	}
	return t.UnixMilli(), nil
}

// ---------------- construction ----------------

// filterFromSpec builds the runtime filter for an explicitly declared
// filter spec. Unknown names are UnknownFilter; bad arguments are
// InvalidFunctionArguments.
func filterFromSpec(spec *FilterSpec) (GrokFilter, error) {
	if noArg, ok := noArgFilters[spec.Name]; ok {
		if len(spec.Args) != 0 {
			return nil, errInvalidArguments(spec.Name)
		}
		return noArg, nil
	}
	switch spec.Name {
	case "nullIf":
		if len(spec.Args) != 1 {
			return nil, errInvalidArguments(spec.Name)
		}
		s, ok := spec.Args[0].(string)
		if !ok {
			return nil, errInvalidArguments(spec.Name)
		}
		return nullIfFilter{value: s}, nil
	case "scale":
		if len(spec.Args) != 1 {
			return nil, errInvalidArguments(spec.Name)
		}
		switch n := spec.Args[0].(type) {
		case int64:
			return scaleFilter{factor: float64(n)}, nil
		case float64:
			return scaleFilter{factor: n}, nil
		}
		return nil, errInvalidArguments(spec.Name)
	case "keyvalue":
		sep := "="
		if len(spec.Args) > 0 {
			s, ok := spec.Args[0].(string)
			if !ok {
				return nil, errInvalidArguments(spec.Name)
			}
			sep = s
		}
		return keyValueFilter{separator: sep}, nil
	}
	return nil, errUnknownFilter(spec.Name)
}

var noArgFilters = map[string]GrokFilter{
	"integer":            integerFilter{},
	"integerExt":         integerFilter{ext: true},
	"number":             numberFilter{},
	"numberExt":          numberFilter{ext: true},
	"boolean":            booleanFilter{},
	"lowercase":          caseFilter{},
	"uppercase":          caseFilter{upper: true},
	"json":               jsonFilter{},
	"querystring":        queryStringFilter{},
	"decodeuricomponent": decodeURIComponentFilter{},
}

func asString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected a string, got %T", v)
}
