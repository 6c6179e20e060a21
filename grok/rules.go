package grok

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// GrokRule is the compiled output for one top-level pattern: one
// anchored regex plus the capture-name -> field table the runtime
// needs to route extracted values. Rules are immutable after
// construction and safe for concurrent readers.
type GrokRule struct {
	Pattern *regexp2.Regexp
	Fields  map[string]GrokField

	// meta-free literal spans at group depth zero, kept for the
	// Aho-Corasick prefilter; not part of matching semantics
	literals []string
}

// GrokField is a destination path plus the ordered filter chain to run
// on the raw capture. The matcher's implicit coercion always precedes
// author-declared filters.
type GrokField struct {
	Path    Path
	Filters []GrokFilter
}

// CompileIssue reports one pattern that fell back to the sentinel
// rule. Index is the position in the filtered (non-empty) input.
type CompileIssue struct {
	Index   int
	Pattern string
	Err     error
}

// sentinelPattern replaces any pattern that fails to compile, so one
// malformed rule never aborts the rule set. It matches only its own
// literal text, i.e. effectively nothing in real traffic.
const sentinelPattern = "failed pattern replacement"

// ParseGrokRules compiles an ordered list of raw patterns against a
// caller-supplied alias table. Empty patterns are discarded; every
// remaining pattern yields exactly one rule, in input order. Failures
// are absorbed by sentinel substitution and never surface here.
func ParseGrokRules(patterns []string, aliases map[string]string) []GrokRule {
	rules, _ := CompileRules(patterns, aliases)
	return rules
}

// CompileRules is ParseGrokRules plus per-pattern diagnostics for
// callers that want to report what fell back to the sentinel.
func CompileRules(patterns []string, aliases map[string]string) ([]GrokRule, []CompileIssue) {
	rules := make([]GrokRule, 0, len(patterns))
	var issues []CompileIssue
	for _, p := range patterns {
		if p == "" {
			continue
		}
		rule, err := parsePattern(p, newRuleContext(aliases))
		if err != nil {
			issues = append(issues, CompileIssue{Index: len(rules), Pattern: p, Err: err})
			rule, err = parsePattern(sentinelPattern, newRuleContext(aliases))
			if err != nil {
				// the sentinel compiles by construction; this is a broken build
				panic(fmt.Sprintf("grok: sentinel pattern failed to compile: %v", err))
			}
		}
		rules = append(rules, rule)
	}
	return rules, issues
}

// ---------------- parse context ----------------

// fieldEntry keeps the two filter tiers apart until the rule is
// finalized, so implicit coercions always come out ahead of explicit
// filters without any insert-at-front games.
type fieldEntry struct {
	path     Path
	implicit []GrokFilter
	explicit []GrokFilter
}

// ruleContext is the transient builder for exactly one top-level
// pattern (alias expansions share the context of the pattern that
// pulled them in). Exclusively owned by the compiling call.
type ruleContext struct {
	regex      strings.Builder
	fields     map[string]*fieldEntry
	aliases    map[string]string
	aliasStack []string
	literals   []string
	groupDepth int
}

func newRuleContext(aliases map[string]string) *ruleContext {
	return &ruleContext{fields: make(map[string]*fieldEntry), aliases: aliases}
}

func (c *ruleContext) appendRegex(s string) {
	c.regex.WriteString(s)
}

// appendLiteral feeds literal rule text into the regex verbatim and,
// on the side, records prefilter-usable spans. Only spans outside any
// group and free of regex metacharacters are required text of every
// match, so only those are recorded.
func (c *ruleContext) appendLiteral(s string) {
	if c.groupDepth == 0 && len(s) >= 2 && !strings.ContainsAny(s, `\.+*?()|[]{}^$`) {
		c.literals = append(c.literals, s)
	}
	c.trackGroupDepth(s)
	c.regex.WriteString(s)
}

func (c *ruleContext) trackGroupDepth(s string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			c.groupDepth++
		case ')':
			if c.groupDepth > 0 {
				c.groupDepth--
			}
		}
	}
}

// appendBuiltin expands a named builtin pattern, or degrades to an
// inert literal fragment when the name is unknown. Unknown names are
// not an error; the rule just will not match real input.
func (c *ruleContext) appendBuiltin(name string) error {
	def, ok := lookupBuiltin(name)
	if !ok {
		c.appendRegex("TODO")
		return nil
	}
	return parseGrokRule(def, c)
}

// registerField claims the next generated capture name (grok0, grok1,
// ...) for a destination path.
func (c *ruleContext) registerField(path Path) string {
	name := fmt.Sprintf("grok%d", len(c.fields))
	c.fields[name] = &fieldEntry{path: path}
	return name
}

func (c *ruleContext) addImplicitFilter(captureName string, f GrokFilter) {
	if e, ok := c.fields[captureName]; ok {
		e.implicit = append(e.implicit, f)
	}
}

func (c *ruleContext) addExplicitFilter(captureName string, f GrokFilter) {
	if e, ok := c.fields[captureName]; ok {
		e.explicit = append(e.explicit, f)
	}
}

func (c *ruleContext) finalizeFields() map[string]GrokField {
	out := make(map[string]GrokField, len(c.fields))
	for name, e := range c.fields {
		filters := make([]GrokFilter, 0, len(e.implicit)+len(e.explicit))
		filters = append(filters, e.implicit...)
		filters = append(filters, e.explicit...)
		out[name] = GrokField{Path: e.path, Filters: filters}
	}
	return out
}

// ---------------- compilation ----------------

// dialect translation, authoring (onig) -> engine: onig spells
// "dot matches newline" as (?m), regexp2 as (?s). Narrow by design;
// nothing else is rewritten.
var dialectReplacer = strings.NewReplacer("(?m)", "(?s)", "(?-m)", "(?-s)")

// parsePattern compiles one top-level pattern to a GrokRule.
func parsePattern(pattern string, ctx *ruleContext) (GrokRule, error) {
	if err := parseGrokRule(pattern, ctx); err != nil {
		return GrokRule{}, err
	}

	// \A..\z anchor the whole input, not lines: partial or
	// multi-record matches are rejected
	composed := `\A` + ctx.regex.String() + `\z`
	composed = dialectReplacer.Replace(composed)

	re, err := regexp2.Compile(composed, regexp2.None)
	if err != nil {
		return GrokRule{}, errInvalidExpression(composed, err)
	}
	return GrokRule{Pattern: re, Fields: ctx.finalizeFields(), literals: ctx.literals}, nil
}

// parseGrokRule feeds one rule fragment (a pattern, an alias body or a
// builtin definition) through the token scanner into the context.
func parseGrokRule(rule string, ctx *ruleContext) error {
	return scanRule(rule,
		ctx.appendLiteral,
		func(span string) error {
			p, err := parsePlaceholder(span)
			if err != nil {
				return errInvalidExpression(span, err)
			}
			return resolveGrokPattern(p, ctx)
		})
}

// parseAlias expands one alias body under the cycle guard.
func parseAlias(name, definition string, ctx *ruleContext) error {
	for _, active := range ctx.aliasStack {
		if active == name {
			// the diagnostic names the outermost alias of the chain,
			// not the one that repeated
			return errCircularDependency(ctx.aliasStack[0])
		}
	}
	ctx.aliasStack = append(ctx.aliasStack, name)
	err := parseGrokRule(definition, ctx)
	ctx.aliasStack = ctx.aliasStack[:len(ctx.aliasStack)-1]
	return err
}

// resolveGrokPattern handles one parsed placeholder: registers its
// destination, then routes the matcher through the alias table, the
// special match functions, or the builtin library.
func resolveGrokPattern(p *GrokPattern, ctx *ruleContext) error {
	captureName := ""
	if p.Destination != nil {
		captureName = ctx.registerField(p.Destination.Path)
		if p.Destination.Filter != nil {
			f, err := filterFromSpec(p.Destination.Filter)
			if err != nil {
				return err
			}
			ctx.addExplicitFilter(captureName, f)
		}
	}

	if aliasDef, ok := ctx.aliases[p.Match.Name]; ok {
		// a known alias: with a destination the whole expanded fragment
		// lands in one named group (inner fields keep their own
		// captures); without one the fragment is inserted bare
		if captureName == "" {
			return parseAlias(p.Match.Name, aliasDef, ctx)
		}
		ctx.openGroup(captureName)
		if err := parseAlias(p.Match.Name, aliasDef, ctx); err != nil {
			return err
		}
		ctx.closeGroup()
		return nil
	}

	ctx.openGroup(captureName)
	if err := resolveMatchFunction(captureName, p, ctx); err != nil {
		return err
	}
	ctx.closeGroup()
	return nil
}

// openGroup and closeGroup count toward groupDepth like literal
// parens: text expanded inside a placeholder's group may sit under
// alternation or an optional quantifier, so it is never a required
// literal of the whole rule.
func (c *ruleContext) openGroup(captureName string) {
	if captureName != "" {
		c.appendRegex("(?<")
		c.appendRegex(captureName)
		c.appendRegex(">")
	} else {
		c.appendRegex("(?:")
	}
	c.groupDepth++
}

func (c *ruleContext) closeGroup() {
	c.appendRegex(")")
	if c.groupDepth > 0 {
		c.groupDepth--
	}
}

// resolveMatchFunction appends the regex contribution of a match
// function and registers its implicit filter, if any.
func resolveMatchFunction(captureName string, p *GrokPattern, ctx *ruleContext) error {
	fn := p.Match
	switch fn.Name {
	case "regex":
		if len(fn.Args) != 1 {
			return errInvalidArguments(fn.Name)
		}
		s, ok := fn.Args[0].(string)
		if !ok {
			return errInvalidArguments(fn.Name)
		}
		ctx.appendRegex(s)
		return nil

	case "integer":
		if captureName != "" {
			ctx.addImplicitFilter(captureName, integerFilter{})
		}
		return ctx.appendBuiltin("integerStr")
	case "integerExt":
		if captureName != "" {
			ctx.addImplicitFilter(captureName, integerFilter{ext: true})
		}
		return ctx.appendBuiltin("integerExtStr")
	case "number":
		if captureName != "" {
			ctx.addImplicitFilter(captureName, numberFilter{})
		}
		return ctx.appendBuiltin("numberStr")
	case "numberExt":
		if captureName != "" {
			ctx.addImplicitFilter(captureName, numberFilter{ext: true})
		}
		return ctx.appendBuiltin("numberExtStr")

	case "date":
		return resolveDateFunction(captureName, fn, ctx)

	default:
		// anything else is a builtin pattern name, or degrades to an
		// inert fragment
		return ctx.appendBuiltin(fn.Name)
	}
}

// resolveDateFunction handles date(format[, timezone]).
func resolveDateFunction(captureName string, fn MatchFunction, ctx *ruleContext) error {
	if len(fn.Args) == 0 || len(fn.Args) > 2 {
		return errInvalidArguments(fn.Name)
	}
	format, ok := fn.Args[0].(string)
	if !ok {
		return errInvalidArguments(fn.Name)
	}

	// tz-capturing translation feeds the standalone detection regex
	withCapture, err := timeFormatToRegex(format, true)
	if err != nil {
		return errInvalidArguments(fn.Name)
	}
	var tzRegex *regexp2.Regexp
	if withCapture.TZCaptured {
		tzRegex, err = regexp2.Compile(withCapture.Regex, regexp2.None)
		if err != nil {
			return errInvalidArguments(fn.Name)
		}
	}

	layout, err := convertTimeFormat(format)
	if err != nil {
		return errInvalidArguments(fn.Name)
	}

	targetTZ := ""
	if len(fn.Args) == 2 {
		tz, ok := fn.Args[1].(string)
		if !ok {
			return errInvalidArguments(fn.Name)
		}
		if _, err := parseTimezone(tz); err != nil {
			return errInvalidArguments(fn.Name)
		}
		targetTZ = tz
	}

	if captureName != "" {
		ctx.addImplicitFilter(captureName, &DateFilter{
			OriginalFormat: format,
			Layout:         layout,
			TZRegex:        tzRegex,
			TargetTZ:       targetTZ,
			TZAware:        withCapture.WithTZ,
		})
	}

	// the fragment placed into the composed pattern keeps the capture
	// suppressed
	matching, err := timeFormatToRegex(format, false)
	if err != nil {
		return errInvalidArguments(fn.Name)
	}
	ctx.appendRegex(matching.Regex)
	return nil
}
