// Package validation holds the input checks and sanitisers shared by the
// domain packages.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxStringLength bounds sanitised free-text fields.
const MaxStringLength = 255

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	skuPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Problem is a single rejected field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error carries every problem found in one input. It is returned as a
// pointer; use errors.As to detect it.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Field + ": " + p.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Messages returns the problems as display strings.
func (e *Error) Messages() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Message
	}
	return out
}

// Collector accumulates problems.
type Collector struct {
	problems []Problem
}

// Add records a problem for field.
func (c *Collector) Add(field, format string, args ...any) {
	c.problems = append(c.problems, Problem{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns nil when nothing was recorded.
func (c *Collector) Err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &Error{Problems: c.problems}
}

// Sanitize strips HTML tags, trims whitespace and truncates to
// MaxStringLength runes.
func Sanitize(s string) string {
	s = strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
	if utf8.RuneCountInString(s) <= MaxStringLength {
		return s
	}
	r := []rune(s)
	return string(r[:MaxStringLength])
}

// SKU reports whether s is a non-empty run of letters, digits, '-' or '_'.
func SKU(s string) bool {
	return skuPattern.MatchString(strings.TrimSpace(s))
}

// Email reports whether s looks like an email address.
func Email(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}
