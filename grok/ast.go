package grok

// Structured form of one %{...} placeholder.
//
// %{MATCHER(args):PATH:FILTER(args)} - matcher is mandatory, the
// destination (path + optional filter) is not.

// MatchFunction is the matcher part of a placeholder: a special name
// (regex, date, integer, ...), a user alias or a builtin pattern name,
// with optional call arguments.
type MatchFunction struct {
	Name string
	Args []any // string, int64, float64 or bool literals
}

// FilterSpec is a declared post-processing filter before construction.
type FilterSpec struct {
	Name string
	Args []any
}

// Destination says where a matched value goes and how it is
// post-processed.
type Destination struct {
	Path   Path
	Filter *FilterSpec
}

// GrokPattern is one parsed placeholder.
type GrokPattern struct {
	Match       MatchFunction
	Destination *Destination
}
