package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPlaceholder marks a body containing a malformed placeholder.
var ErrInvalidPlaceholder = errors.New("invalid placeholder")

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)
	placeholderSpan    = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
	pathPattern        = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// Placeholder is one `{{ path }}` occurrence in a body.
type Placeholder struct {
	Path  string
	Raw   string
	Start int
	End   int
}

// PlaceholderError describes a malformed placeholder.
type PlaceholderError struct {
	Raw    string
	Offset int
	Reason string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("invalid placeholder %q at offset %d: %s", e.Raw, e.Offset, e.Reason)
}

func (e *PlaceholderError) Unwrap() error { return ErrInvalidPlaceholder }

// Scan returns every placeholder in body, left to right.
func Scan(body string) []Placeholder {
	matches := placeholderPattern.FindAllStringSubmatchIndex(body, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		out = append(out, Placeholder{
			Path:  body[m[2]:m[3]],
			Raw:   body[m[0]:m[1]],
			Start: m[0],
			End:   m[1],
		})
	}
	return out
}

// Paths returns the distinct placeholder paths in order of first appearance.
func Paths(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range Scan(body) {
		if _, ok := seen[p.Path]; ok {
			continue
		}
		seen[p.Path] = struct{}{}
		out = append(out, p.Path)
	}
	return out
}

// ValidPath reports whether path matches the placeholder grammar with no
// empty segments.
func ValidPath(path string) bool {
	if !pathPattern.MatchString(path) {
		return false
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return false
		}
	}
	return true
}

// Validate checks every `{{ ... }}` span in body.
func Validate(body string) error {
	for _, m := range placeholderSpan.FindAllStringSubmatchIndex(body, -1) {
		raw := body[m[0]:m[1]]
		inner := strings.TrimSpace(body[m[2]:m[3]])
		switch {
		case inner == "":
			return &PlaceholderError{Raw: raw, Offset: m[0], Reason: "empty path"}
		case !pathPattern.MatchString(inner):
			return &PlaceholderError{Raw: raw, Offset: m[0], Reason: "path may only contain letters, digits, '_', '.', '-'"}
		case !ValidPath(inner):
			return &PlaceholderError{Raw: raw, Offset: m[0], Reason: "path has an empty segment"}
		}
	}
	return nil
}

// Compact rewrites `{{ path }}` to `{{path}}`.
func Compact(body string) string {
	return placeholderPattern.ReplaceAllString(body, "{{$1}}")
}
