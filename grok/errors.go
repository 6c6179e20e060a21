package grok

import "fmt"

// ErrorKind discriminates compile-time failures so the batch layer can
// decide what to do with them (today: all of them fall back to the
// sentinel rule).
type ErrorKind int

const (
	// InvalidGrokExpression: a placeholder failed to parse, or the fully
	// composed regex failed to compile.
	InvalidGrokExpression ErrorKind = iota
	// InvalidFunctionArguments: wrong arity/type for a match function
	// (regex, date, ...), an unparseable date format, or an unrecognized
	// timezone.
	InvalidFunctionArguments
	// UnknownFilter: a declared filter has no implementation.
	UnknownFilter
	// CircularDependencyInAliasDefinition: re-entrant alias expansion.
	CircularDependencyInAliasDefinition
)

// Error is the compile error type for one grok rule.
type Error struct {
	Kind    ErrorKind
	Subject string // offending expression, function name, filter name or alias name
	Cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidGrokExpression:
		return fmt.Sprintf("failed to parse grok expression '%s': %v", e.Subject, e.Cause)
	case InvalidFunctionArguments:
		return fmt.Sprintf("invalid arguments for the function '%s'", e.Subject)
	case UnknownFilter:
		return fmt.Sprintf("unknown filter '%s'", e.Subject)
	case CircularDependencyInAliasDefinition:
		return fmt.Sprintf("Circular dependency found in the alias '%s'", e.Subject)
	default:
		return fmt.Sprintf("grok compile error '%s'", e.Subject)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func errInvalidExpression(expr string, cause error) *Error {
	return &Error{Kind: InvalidGrokExpression, Subject: expr, Cause: cause}
}

func errInvalidArguments(fn string) *Error {
	return &Error{Kind: InvalidFunctionArguments, Subject: fn}
}

func errUnknownFilter(name string) *Error {
	return &Error{Kind: UnknownFilter, Subject: name}
}

func errCircularDependency(alias string) *Error {
	return &Error{Kind: CircularDependencyInAliasDefinition, Subject: alias}
}
