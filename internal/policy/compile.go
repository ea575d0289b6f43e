package policy

import (
	"fmt"
	"regexp"
)

// CompilePattern compiles a table pattern the way every table pattern is
// compiled: case-insensitive, plus multi-line and dot-all when multiline is set.
func CompilePattern(id, pattern string, multiline bool) (*regexp.Regexp, error) {
	flags := "(?i)"
	if multiline {
		flags = "(?ims)"
	}
	re, err := regexp.Compile(flags + pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling signature %q: %w", id, err)
	}
	return re, nil
}
