package grok

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date-format translation: a Datadog-style date format (yyyy-MM-dd
// HH:mm:ss z, ...) becomes a matching regex and a Go time layout. The
// same format is translated twice during compilation: once with the
// timezone captured (to build the standalone timezone-detection regex)
// and once with capture suppressed (the fragment that lands in the
// composed rule pattern).

const (
	isoTimezoneRe  = `(?:Z|[+-]\d{2}:?\d{2})`
	nameTimezoneRe = `(?:[A-Z]{2,5}(?:[+-]\d{1,2}(?::\d{2})?)?|[+-]\d{2}:?\d{2})`
)

type dateToken struct {
	pattern string
	regex   string
	layout  string // Go time layout fragment
	tz      bool
}

// Longest tokens first; the tokenizer takes the first prefix match.
var dateTokens = []dateToken{
	{"SSSSSSS", `\d{7}`, "0000000", false},
	{"SSSSSS", `\d{6}`, "000000", false},
	{"SSS", `\d{3}`, "000", false},

	{"yyyy", `\d{4}`, "2006", false},
	{"YYYY", `\d{4}`, "2006", false},
	{"yy", `\d{2}`, "06", false},

	{"MMMM", `(?:January|February|March|April|May|June|July|August|September|October|November|December)`, "January", false},
	{"MMM", `(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)`, "Jan", false},
	{"MM", `(?:0[1-9]|1[0-2])`, "01", false},
	{"M", `(?:[1-9]|1[0-2])`, "1", false},

	{"EEE", `(?:Sun|Mon|Tue|Wed|Thu|Fri|Sat)`, "Mon", false},

	{"dd", `(?:0[1-9]|[12]\d|3[01])`, "02", false},
	{"DD", `(?:0[1-9]|[12]\d|3[01])`, "02", false},
	{"d", `(?:[1-9]|[12]\d|3[01])`, "2", false},

	{"HH", `(?:[01]\d|2[0-3])`, "15", false},
	{"H", `(?:1\d|2[0-3]|\d)`, "15", false},
	{"hh", `(?:0[1-9]|1[0-2])`, "03", false},
	{"h", `(?:[1-9]|1[0-2])`, "3", false},

	{"mm", `[0-5]\d`, "04", false},
	{"m", `(?:[1-5]\d|\d)`, "4", false},
	{"ss", `[0-5]\d`, "05", false},
	{"s", `(?:[1-5]\d|\d)`, "5", false},

	{"ZZ", isoTimezoneRe, "Z07:00", true},
	{"Z", isoTimezoneRe, "Z0700", true},
	{"z", nameTimezoneRe, "MST", true},

	{"a", `(?:AM|PM)`, "PM", false},
}

type timeFormatRegex struct {
	Regex      string
	TZCaptured bool // the regex has a capture group around the timezone
	WithTZ     bool // the format carries a timezone component at all
}

// timeFormatToRegex translates a date format into a matching regex.
// With captureTZ, the timezone component (if any) is wrapped in a
// capture group so it can be located in matched text later.
func timeFormatToRegex(format string, captureTZ bool) (timeFormatRegex, error) {
	if strings.TrimSpace(format) == "" {
		return timeFormatRegex{}, fmt.Errorf("empty date format")
	}
	var b strings.Builder
	out := timeFormatRegex{}
	for _, tok := range tokenizeDateFormat(format) {
		dt, ok := matchDateToken(tok)
		if !ok {
			b.WriteString(escapeLiteral(tok))
			continue
		}
		if dt.tz {
			out.WithTZ = true
			if captureTZ && !out.TZCaptured {
				b.WriteString("(")
				b.WriteString(dt.regex)
				b.WriteString(")")
				out.TZCaptured = true
				continue
			}
		}
		b.WriteString(dt.regex)
	}
	out.Regex = b.String()
	return out, nil
}

// convertTimeFormat translates a date format into a Go time layout,
// the parser specification used by the date filter at extraction time.
func convertTimeFormat(format string) (string, error) {
	if strings.TrimSpace(format) == "" {
		return "", fmt.Errorf("empty date format")
	}
	var b strings.Builder
	for _, tok := range tokenizeDateFormat(format) {
		if dt, ok := matchDateToken(tok); ok {
			b.WriteString(dt.layout)
		} else {
			b.WriteString(tok)
		}
	}
	return b.String(), nil
}

// tokenizeDateFormat splits a format into date tokens and literal
// runs. Single-quoted text is literal ('T' in ISO formats).
func tokenizeDateFormat(format string) []string {
	var tokens []string
	rest := format
	for len(rest) > 0 {
		if rest[0] == '\'' {
			end := strings.IndexByte(rest[1:], '\'')
			if end < 0 {
				tokens = append(tokens, rest[1:])
				break
			}
			if end > 0 {
				tokens = append(tokens, rest[1:end+1])
			}
			rest = rest[end+2:]
			continue
		}
		matched := false
		for _, dt := range dateTokens {
			if strings.HasPrefix(rest, dt.pattern) {
				tokens = append(tokens, dt.pattern)
				rest = rest[len(dt.pattern):]
				matched = true
				break
			}
		}
		if !matched {
			tokens = append(tokens, rest[:1])
			rest = rest[1:]
		}
	}
	return tokens
}

func matchDateToken(tok string) (dateToken, bool) {
	for _, dt := range dateTokens {
		if tok == dt.pattern {
			return dt, true
		}
	}
	return dateToken{}, false
}

// escapeLiteral escapes regex metacharacters in literal format text.
func escapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(`\.+*?()|[]{}^$`, c) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// parseTimezone validates a timezone argument: an IANA name
// (America/New_York), UTC/GMT, or a fixed offset (+03:00, UTC+3, -05).
func parseTimezone(name string) (*time.Location, error) {
	s := strings.TrimSpace(name)
	switch s {
	case "", "Z", "UTC", "GMT":
		return time.UTC, nil
	}
	off := s
	if strings.HasPrefix(s, "UTC") || strings.HasPrefix(s, "GMT") {
		off = s[3:]
	}
	if off != "" && (off[0] == '+' || off[0] == '-') {
		if loc, ok := fixedOffset(off); ok {
			return loc, nil
		}
		return nil, fmt.Errorf("invalid timezone offset %q", name)
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", name)
	}
	return loc, nil
}

func fixedOffset(s string) (*time.Location, bool) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	body := s[1:]
	hh, mm := body, "0"
	if i := strings.IndexByte(body, ':'); i >= 0 {
		hh, mm = body[:i], body[i+1:]
	} else if len(body) == 4 {
		hh, mm = body[:2], body[2:]
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h > 14 {
		return nil, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m > 59 {
		return nil, false
	}
	sec := sign * (h*3600 + m*60)
	return time.FixedZone(s, sec), true
}
