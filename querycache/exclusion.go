package querycache

import (
	"github.com/gobwas/glob"
	"github.com/jmgilman/go/errors"
)

// Exclusion explains why a query id is not cached.
type Exclusion struct {
	// Pattern is a glob pattern of query ids, empty for an exclusion of a single id.
	Pattern string

	// Reason is a human readable explanation.
	Reason string

	// Strong exclusions are set by user patterns and are not replaced by runtime marks.
	Strong bool

	matcher glob.Glob
}

// NewExclusion creates a strong exclusion of query ids matching glob pattern.
//
// Pattern syntax supports *, ?, [abc] and {a,b} with '.' as a separator for *.
func NewExclusion(pattern, reason string) (Exclusion, error) {
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return Exclusion{}, errors.WrapWithContext(err, errors.CodeInvalidInput, "invalid exclusion pattern",
			map[string]interface{}{"pattern": pattern})
	}

	return Exclusion{Pattern: pattern, Reason: reason, Strong: true, matcher: g}, nil
}

// Matches tells if query id is covered by exclusion pattern.
func (e Exclusion) Matches(id string) bool {
	if e.matcher == nil {
		return false
	}

	return e.matcher.Match(id)
}

// String returns reason.
func (e Exclusion) String() string {
	if e.Pattern == "" {
		return e.Reason
	}

	return e.Pattern + ": " + e.Reason
}
