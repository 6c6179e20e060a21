package grok

import (
	"strings"

	ac "github.com/petar-dambovaliev/aho-corasick"
)

// Literal prefilter over a compiled rule set. Every regex-meta-free
// literal span of a rule is required text of any line that rule can
// match, so a single Aho-Corasick pass over the line rules out most of
// the set before any regex runs. Purely an optimization: candidates
// are a superset of the rules that actually match.

type PrefilterStats struct {
	PatternCount int `json:"pattern_count"`
	RuleCount    int `json:"rule_count"`
	// rules with no usable literal; always candidates
	UnfilteredRules int `json:"unfiltered_rules"`
}

type PrefilterConfig struct {
	// literals shorter than this are ignored
	MinLiteralLength int `json:"min_literal_length"`
	Enabled          bool `json:"enabled"`
}

func DefaultPrefilterConfig() PrefilterConfig {
	return PrefilterConfig{MinLiteralLength: 2, Enabled: true}
}

type Prefilter struct {
	automaton *ac.AhoCorasick
	// dedupe: literal text -> automaton pattern index
	patternIndex map[string]int
	// per rule, the literals it requires (empty = always candidate)
	ruleLiterals [][]string
	stats        PrefilterStats
	cfg          PrefilterConfig
}

func (p *Prefilter) Stats() PrefilterStats { return p.stats }

// NewPrefilter builds a prefilter for a compiled rule set.
func NewPrefilter(rules []GrokRule) *Prefilter {
	return NewPrefilterWithConfig(rules, DefaultPrefilterConfig())
}

func NewPrefilterWithConfig(rules []GrokRule, cfg PrefilterConfig) *Prefilter {
	p := &Prefilter{
		patternIndex: make(map[string]int),
		ruleLiterals: make([][]string, len(rules)),
		cfg:          cfg,
	}
	p.stats.RuleCount = len(rules)

	var combined []string
	for i := range rules {
		if !cfg.Enabled {
			continue
		}
		for _, lit := range rules[i].literals {
			if len(lit) < cfg.MinLiteralLength {
				continue
			}
			if _, ok := p.patternIndex[lit]; !ok {
				p.patternIndex[lit] = len(combined)
				combined = append(combined, lit)
			}
			p.ruleLiterals[i] = append(p.ruleLiterals[i], lit)
		}
	}
	for i := range p.ruleLiterals {
		if len(p.ruleLiterals[i]) == 0 {
			p.stats.UnfilteredRules++
		}
	}
	p.stats.PatternCount = len(combined)

	if len(combined) > 0 {
		builder := ac.NewAhoCorasickBuilder(ac.Opts{
			MatchKind: ac.LeftMostLongestMatch,
		})
		built := builder.Build(combined)
		p.automaton = &built
	}
	return p
}

// Candidates returns the indices, in rule order, of the rules that can
// possibly match line. A rule is excluded only when one of its
// required literals is provably absent.
func (p *Prefilter) Candidates(line string) []int {
	out := make([]int, 0, len(p.ruleLiterals))
	found := p.findLiterals(line)
	for i, lits := range p.ruleLiterals {
		if p.satisfied(lits, found, line) {
			out = append(out, i)
		}
	}
	return out
}

// Match is the prefiltered variant of the package-level Match; rules
// must be the slice the prefilter was built from.
func (p *Prefilter) Match(rules []GrokRule, line string) (map[string]any, bool) {
	found := p.findLiterals(line)
	for i := range rules {
		if i >= len(p.ruleLiterals) || !p.satisfied(p.ruleLiterals[i], found, line) {
			continue
		}
		if event, ok := applyRule(&rules[i], line); ok {
			return event, true
		}
	}
	return nil, false
}

// findLiterals runs the automaton once and reports which literal
// patterns occur in line.
func (p *Prefilter) findLiterals(line string) map[int]bool {
	if p.automaton == nil {
		return nil
	}
	found := make(map[int]bool)
	for _, m := range p.automaton.FindAll(line) {
		found[m.Pattern()] = true
	}
	return found
}

// satisfied reports whether every required literal of a rule occurs in
// line. Leftmost-longest matching can hide a literal overlapped by a
// longer one, so absent literals get a direct substring re-check
// before the rule is ruled out.
func (p *Prefilter) satisfied(lits []string, found map[int]bool, line string) bool {
	for _, lit := range lits {
		if found[p.patternIndex[lit]] {
			continue
		}
		if !strings.Contains(line, lit) {
			return false
		}
	}
	return true
}
