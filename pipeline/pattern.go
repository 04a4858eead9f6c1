package pipeline

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Pattern is a compiled path pattern.
type Pattern struct {
	raw string
	g   glob.Glob
}

// CompilePattern compiles s into a Pattern. "*" matches any run of
// characters including "/", so "/hooks/*" covers every path below /hooks/.
func CompilePattern(s string) (Pattern, error) {
	g, err := glob.Compile(s)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid path pattern %q: %w", s, err)
	}
	return Pattern{raw: s, g: g}, nil
}

// Match reports whether path equals the pattern or matches it as a glob.
func (p Pattern) Match(path string) bool {
	if p.g == nil {
		return false
	}
	return path == p.raw || p.g.Match(path)
}

func (p Pattern) String() string { return p.raw }
