package grok

// Builtin pattern library: process-wide, immutable after init, shared
// by every compilation. Definitions may reference each other with
// %{name}; the rule compiler expands them recursively.
//
// Names follow the Datadog matcher vocabulary (notSpace, numberStr,
// ...), not the upper-case logstash one.
var defaultPatterns = map[string]string{
	// numeric literals; the *Str variants are what the typed matchers
	// (integer, number, ...) expand to
	"integerStr":    `(?:[+-]?\d+)`,
	"integerExtStr": `(?:[+-]?\d+(?:[eE][+-]?\d+)?)`,
	"numberStr":     `(?:[+-]?(?:\d+\.\d+|\d+|\.\d+))`,
	"numberExtStr":  `(?:[+-]?(?:\d+\.\d+|\d+|\.\d+)(?:[eE][+-]?\d+)?)`,

	"boolean": `(?:[Tt]rue|[Ff]alse)`,

	// text
	"word":               `\b\w+\b`,
	"notSpace":           `\S+`,
	"space":              `\s+`,
	"data":               `.*?`,
	"greedyData":         `.*`,
	"doubleQuotedString": `"(?:[^"\\]|\\.)*"`,
	"singleQuotedString": `'(?:[^'\\]|\\.)*'`,
	"quotedString":       `(?:%{doubleQuotedString}|%{singleQuotedString})`,

	// network
	"ipv4":     `(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)`,
	"ipv6":     `(?:[0-9A-Fa-f]{0,4}:){2,7}(?:[0-9A-Fa-f]{0,4}|%{ipv4})`,
	"ip":       `(?:%{ipv6}|%{ipv4})`,
	"hostname": `\b(?:[0-9A-Za-z][0-9A-Za-z-]{0,62})(?:\.(?:[0-9A-Za-z][0-9A-Za-z-]{0,62}))*\.?\b`,
	"ipOrHost": `(?:%{ip}|%{hostname})`,
	"port":     `\b(?:[1-9]\d{0,4})\b`,
	"mac":      `(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}`,

	"uuid": `[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}`,
}

// lookupBuiltin resolves a builtin pattern definition by name.
func lookupBuiltin(name string) (string, bool) {
	def, ok := defaultPatterns[name]
	return def, ok
}
