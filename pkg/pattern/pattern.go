// Package pattern compiles and matches the glob patterns s4 uses both for
// source preference lists and for condition MATCH filters. It replaces the
// hand-rolled prefix/suffix matching the teacher used for TLS certificate
// hosts (matchWildcard in pkg/storage/boltdb.go) with a real glob matcher,
// github.com/bmatcuk/doublestar, so "plugin*" and "*.ogg" style patterns
// behave the way the original C library's GPatternSpec did: GPatternSpec has
// no concept of a path separator, so "*" matches any run of characters
// including "/" (e.g. "plugin*" matches "plugin/lastfm"). doublestar's "*"
// stops at "/" like filepath.Match, and its "**" only crosses "/" when it is
// a whole path segment. To get GPatternSpec's separator-blind behavior out
// of doublestar, every "/" is replaced by a NUL byte in both the compiled
// pattern and the matched string, so doublestar never sees a separator.
package pattern

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern is a validated glob pattern.
type Pattern struct {
	raw      string
	compiled string
}

// Compile validates a glob pattern. Patterns use doublestar syntax: "*"
// matches any run of characters (including "/", unlike plain doublestar),
// "?" matches a single character, "[...]" matches a character class.
func Compile(raw string) (*Pattern, error) {
	compiled := crossSlash(raw)
	if !doublestar.ValidatePattern(compiled) {
		return nil, fmt.Errorf("pattern: invalid glob %q", raw)
	}
	return &Pattern{raw: raw, compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error. Intended for
// compile-time-constant patterns, mirroring the regexp.MustCompile idiom.
func MustCompile(raw string) *Pattern {
	p, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether s matches the pattern.
func (p *Pattern) Match(s string) bool {
	ok, err := doublestar.Match(p.compiled, crossSlash(s))
	return err == nil && ok
}

// String returns the original pattern text.
func (p *Pattern) String() string {
	return p.raw
}

// crossSlash replaces every "/" with a NUL byte. It is applied to both the
// pattern (at Compile) and the candidate string (at Match), so doublestar
// treats the former "/" as an ordinary character: "*" and "?" then cross
// it, and a "/" inside a character class still matches a "/" in the
// string. A string containing a real NUL byte matches as if it held "/"
// at that position.
func crossSlash(raw string) string {
	return strings.ReplaceAll(raw, "/", "\x00")
}
