package csrf

import "github.com/JeanGrijp/csrfchain/pipeline"

// ExceptFilter is the set of paths exempt from verification.
type ExceptFilter struct {
	patterns []pipeline.Pattern
}

// NewExceptFilter compiles patterns. Each is an exact path or a glob where
// "*" spans any characters, e.g. "/webhooks/*".
func NewExceptFilter(patterns []string) (ExceptFilter, error) {
	f := ExceptFilter{patterns: make([]pipeline.Pattern, 0, len(patterns))}
	for _, s := range patterns {
		p, err := pipeline.CompilePattern(s)
		if err != nil {
			return ExceptFilter{}, err
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// Match reports whether path is exempt.
func (f ExceptFilter) Match(path string) bool {
	for _, p := range f.patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns. Zero means every path is verified.
func (f ExceptFilter) Len() int { return len(f.patterns) }
