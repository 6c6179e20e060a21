package grok

import "github.com/dlclark/regexp2"

// placeholderRe finds the longest balanced %{...} span. Double-quoted
// substrings inside the span may contain escaped quotes, and a '}'
// inside them must not close the span; the lookbehinds keep \" from
// being taken for a closing quote. Compiled once at process start.
var placeholderRe = regexp2.MustCompile(
	`%\{(?:[^"\}]|(?<!\\)"(?:\\"|[^"])*(?<!\\)")+\}`, regexp2.None)

// scanRule walks rule text left to right, handing literal spans and
// %{...} placeholder spans to the callbacks in input order. Literal
// text is passed through verbatim; the rule author owns any regex
// metacharacters in it.
func scanRule(rule string, literal func(string), placeholder func(string) error) error {
	last := 0
	m, err := placeholderRe.FindStringMatch(rule)
	if err != nil {
		return err
	}
	for m != nil {
		if m.Index > last {
			literal(rule[last:m.Index])
		}
		if err := placeholder(m.String()); err != nil {
			return err
		}
		last = m.Index + m.Length
		m, err = placeholderRe.FindNextMatch(m)
		if err != nil {
			return err
		}
	}
	if last < len(rule) {
		literal(rule[last:])
	}
	return nil
}
