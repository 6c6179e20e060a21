package grok

import (
	"errors"
	"strings"
	"testing"
)

func TestCompileRulesOneRulePerPattern(t *testing.T) {
	rules := ParseGrokRules([]string{
		"%{word:first}",
		"",
		"%{word:second}",
		"",
	}, nil)
	if len(rules) != 2 {
		t.Fatalf("want 2 rules, got %d", len(rules))
	}
	if _, ok := Match(rules[:1], "hello"); !ok {
		t.Fatalf("first rule should match a word")
	}
	ev, ok := Match(rules, "hello")
	if !ok {
		t.Fatalf("expected a match")
	}
	if ev["first"] != "hello" {
		t.Fatalf("first rule should win, got %v", ev)
	}
}

func TestCompileRulesIndependentFieldTables(t *testing.T) {
	rules := ParseGrokRules([]string{"%{word:a}", "%{word:b}"}, nil)
	if len(rules) != 2 {
		t.Fatalf("want 2 rules, got %d", len(rules))
	}
	// capture numbering restarts per rule
	for i, r := range rules {
		if len(r.Fields) != 1 {
			t.Fatalf("rule %d: want 1 field, got %d", i, len(r.Fields))
		}
		if _, ok := r.Fields["grok0"]; !ok {
			t.Fatalf("rule %d: missing grok0 capture", i)
		}
	}
	if rules[0].Fields["grok0"].Path.String() != "a" {
		t.Fatalf("rule 0 path: %s", rules[0].Fields["grok0"].Path)
	}
	if rules[1].Fields["grok0"].Path.String() != "b" {
		t.Fatalf("rule 1 path: %s", rules[1].Fields["grok0"].Path)
	}
}

func TestCompileRulesSentinelFallback(t *testing.T) {
	rules, issues := CompileRules([]string{
		"%{word:ok}",
		`%{regex("(")}`,
		"%{integer:n}",
	}, nil)
	if len(rules) != 3 {
		t.Fatalf("want 3 rules, got %d", len(rules))
	}
	if len(issues) != 1 || issues[0].Index != 1 {
		t.Fatalf("want one issue at index 1, got %+v", issues)
	}
	// the broken slot matches only the sentinel text
	if _, ok := Match(rules[1:2], "anything"); ok {
		t.Fatalf("sentinel rule should not match real input")
	}
	if _, ok := Match(rules[1:2], "failed pattern replacement"); !ok {
		t.Fatalf("sentinel rule should match its own literal")
	}
	// neighbors are unaffected
	if ev, ok := Match(rules, "42"); !ok || ev["n"] != int64(42) {
		t.Fatalf("third rule broken: %v %v", ev, ok)
	}
}

func TestLiteralOnlyPatternIsAnchored(t *testing.T) {
	rules := ParseGrokRules([]string{"hello world"}, nil)
	if _, ok := Match(rules, "hello world"); !ok {
		t.Fatalf("exact line should match")
	}
	for _, line := range []string{
		"xhello world",
		"hello worldy",
		"hello world\nhello world",
	} {
		if _, ok := Match(rules, line); ok {
			t.Fatalf("line %q should not match", line)
		}
	}
}

func TestAliasExpansion(t *testing.T) {
	aliases := map[string]string{
		"pair": `%{word:key}=%{word:value}`,
	}
	rules := ParseGrokRules([]string{"%{pair} %{word:rest}"}, aliases)
	ev, ok := Match(rules, "a=b c")
	if !ok {
		t.Fatalf("expected a match")
	}
	if ev["key"] != "a" || ev["value"] != "b" || ev["rest"] != "c" {
		t.Fatalf("unexpected event: %v", ev)
	}
}

func TestAliasWithDestinationCapturesWholeFragment(t *testing.T) {
	aliases := map[string]string{
		"pair": `%{word:key}=%{word:value}`,
	}
	rules := ParseGrokRules([]string{"%{pair:raw}"}, aliases)
	ev, ok := Match(rules, "a=b")
	if !ok {
		t.Fatalf("expected a match")
	}
	if ev["raw"] != "a=b" {
		t.Fatalf("outer capture: %v", ev["raw"])
	}
	if ev["key"] != "a" || ev["value"] != "b" {
		t.Fatalf("inner captures: %v", ev)
	}
}

func TestAliasCycleNamesEntryAlias(t *testing.T) {
	aliases := map[string]string{
		"a": "%{b}",
		"b": "%{a}",
	}
	for _, tc := range []struct{ pattern, want string }{
		{"%{a}", "Circular dependency found in the alias 'a'"},
		{"%{b}", "Circular dependency found in the alias 'b'"},
	} {
		_, issues := CompileRules([]string{tc.pattern}, aliases)
		if len(issues) != 1 {
			t.Fatalf("%s: want one issue, got %+v", tc.pattern, issues)
		}
		var ge *Error
		if !errors.As(issues[0].Err, &ge) || ge.Kind != CircularDependencyInAliasDefinition {
			t.Fatalf("%s: wrong error: %v", tc.pattern, issues[0].Err)
		}
		if got := issues[0].Err.Error(); got != tc.want {
			t.Fatalf("%s: message %q, want %q", tc.pattern, got, tc.want)
		}
	}
}

func TestSelfReferentialAlias(t *testing.T) {
	_, issues := CompileRules([]string{"%{loop}"}, map[string]string{"loop": "x%{loop}"})
	if len(issues) != 1 {
		t.Fatalf("want one issue, got %+v", issues)
	}
	var ge *Error
	if !errors.As(issues[0].Err, &ge) || ge.Kind != CircularDependencyInAliasDefinition {
		t.Fatalf("wrong error: %v", issues[0].Err)
	}
}

func TestImplicitFilterRunsBeforeExplicit(t *testing.T) {
	// integer coerces first, then scale sees an int64
	rules := ParseGrokRules([]string{"%{integer:n:scale(10)}"}, nil)
	ev, ok := Match(rules, "4")
	if !ok {
		t.Fatalf("expected a match")
	}
	if ev["n"] != int64(40) {
		t.Fatalf("want int64(40), got %T %v", ev["n"], ev["n"])
	}
}

func TestDateMatcherTimezones(t *testing.T) {
	_, issues := CompileRules([]string{
		`%{date("yyyy-MM-dd HH:mm:ss", "America/New_York"):ts}`,
	}, nil)
	if len(issues) != 0 {
		t.Fatalf("valid timezone rejected: %+v", issues)
	}

	_, issues = CompileRules([]string{
		`%{date("yyyy-MM-dd HH:mm:ss", "Not/AZone"):ts}`,
	}, nil)
	if len(issues) != 1 {
		t.Fatalf("want one issue, got %+v", issues)
	}
	var ge *Error
	if !errors.As(issues[0].Err, &ge) || ge.Kind != InvalidFunctionArguments {
		t.Fatalf("wrong error: %v", issues[0].Err)
	}
}

func TestUnknownBuiltinDegradesSilently(t *testing.T) {
	rules, issues := CompileRules([]string{"%{noSuchPattern:x}"}, nil)
	if len(issues) != 0 {
		t.Fatalf("unknown builtin must not be an error: %+v", issues)
	}
	if len(rules) != 1 {
		t.Fatalf("want 1 rule, got %d", len(rules))
	}
	if _, ok := Match(rules, "whatever"); ok {
		t.Fatalf("degraded rule should not match real input")
	}
	if ev, ok := Match(rules, "TODO"); !ok || ev["x"] != "TODO" {
		t.Fatalf("degraded rule should match its inert fragment, got %v %v", ev, ok)
	}
}

func TestUnknownFilterIsAnIssue(t *testing.T) {
	_, issues := CompileRules([]string{"%{word:w:frobnicate}"}, nil)
	if len(issues) != 1 {
		t.Fatalf("want one issue, got %+v", issues)
	}
	want := "unknown filter 'frobnicate'"
	if got := issues[0].Err.Error(); got != want {
		t.Fatalf("message %q, want %q", got, want)
	}
}

func TestEscapedQuotesInFilterArgument(t *testing.T) {
	rules, issues := CompileRules([]string{
		`%{data:msg:nullIf("with \"escaped\" quotes")}`,
	}, nil)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	if ev, ok := Match(rules, `with "escaped" quotes`); !ok || ev["msg"] != nil {
		t.Fatalf("nullIf should drop the exact value, got %v %v", ev, ok)
	}
	ev, ok := Match(rules, "something else")
	if !ok || ev["msg"] != "something else" {
		t.Fatalf("other values pass through, got %v %v", ev, ok)
	}
}

func TestDialectTranslation(t *testing.T) {
	// (?m) in the source dialect means dot-matches-newline
	rules := ParseGrokRules([]string{`%{regex("(?m).*"):all}`}, nil)
	ev, ok := Match(rules, "line1\nline2")
	if !ok {
		t.Fatalf("expected a match across newlines")
	}
	if ev["all"] != "line1\nline2" {
		t.Fatalf("got %v", ev["all"])
	}
	// without it, dot stops at the newline
	rules = ParseGrokRules([]string{`%{regex(".*"):all}`}, nil)
	if _, ok := Match(rules, "line1\nline2"); ok {
		t.Fatalf("plain dot should not cross newlines")
	}
}

func TestLiteralRegexPassthrough(t *testing.T) {
	// literal rule text is regex source, not quoted text
	rules := ParseGrokRules([]string{`(GET|PUT) %{notSpace:path}`}, nil)
	ev, ok := Match(rules, "PUT /health")
	if !ok || ev["path"] != "/health" {
		t.Fatalf("got %v %v", ev, ok)
	}
	if _, ok := Match(rules, "POST /health"); ok {
		t.Fatalf("alternation should exclude POST")
	}
}

func TestAccessLogEndToEnd(t *testing.T) {
	pattern := `%{ipOrHost:client} %{notSpace:ident} %{notSpace:auth} \[%{data:timestamp}\] "%{word:http.method} %{notSpace:http.path} HTTP/%{numberStr:http.version}" %{integer:http.status_code} %{integer:bytes}`
	rules, issues := CompileRules([]string{pattern}, nil)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	line := `127.0.0.1 - frank [10/Oct/2000:13:55:36 -0700] "GET /index.html HTTP/1.0" 200 2326`
	ev, ok := Match(rules, line)
	if !ok {
		t.Fatalf("expected a match")
	}
	if ev["client"] != "127.0.0.1" || ev["auth"] != "frank" {
		t.Fatalf("unexpected event: %v", ev)
	}
	http, ok := ev["http"].(map[string]any)
	if !ok {
		t.Fatalf("http subtree missing: %v", ev)
	}
	if http["method"] != "GET" || http["path"] != "/index.html" || http["version"] != "1.0" {
		t.Fatalf("unexpected http subtree: %v", http)
	}
	if http["status_code"] != int64(200) || ev["bytes"] != int64(2326) {
		t.Fatalf("numeric coercion: %v", ev)
	}
}

func TestCompiledRegexShape(t *testing.T) {
	rules := ParseGrokRules([]string{"%{word:w}"}, nil)
	src := rules[0].Pattern.String()
	if !strings.HasPrefix(src, `\A`) || !strings.HasSuffix(src, `\z`) {
		t.Fatalf("composed regex not anchored: %s", src)
	}
	if !strings.Contains(src, "(?<grok0>") {
		t.Fatalf("named capture missing: %s", src)
	}
}
