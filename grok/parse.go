package grok

// Runtime application of compiled rules. Rules are tried in order and
// the first full match does the parsing; later rules are not
// consulted. Compiled rules are read-only here, so any number of
// workers may share one slice.

// Match parses a line against an ordered rule set. The second return
// is false when no rule matched.
func Match(rules []GrokRule, line string) (map[string]any, bool) {
	for i := range rules {
		if event, ok := applyRule(&rules[i], line); ok {
			return event, true
		}
	}
	return nil, false
}

func applyRule(rule *GrokRule, line string) (map[string]any, bool) {
	m, err := rule.Pattern.FindStringMatch(line)
	if err != nil || m == nil {
		// a match timeout counts as no match
		return nil, false
	}

	event := make(map[string]any)
	for name, field := range rule.Fields {
		g := m.GroupByName(name)
		if g == nil || len(g.Captures) == 0 || g.Length == 0 {
			continue
		}
		value, ok := runFilters(field.Filters, g.String())
		if !ok {
			continue
		}
		insertAtPath(event, field.Path, value)
	}
	return event, true
}

// runFilters applies a field's filter chain. A filter error or a nil
// result drops the value but never the event.
func runFilters(filters []GrokFilter, raw string) (any, bool) {
	var value any = raw
	for _, f := range filters {
		next, err := f.Apply(value)
		if err != nil || next == nil {
			return nil, false
		}
		value = next
	}
	return value, true
}
