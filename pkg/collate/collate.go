// Package collate provides the caseless and locale-collated string
// normalizations s4 values compare under. It wraps golang.org/x/text so the
// rest of the module never has to reason about Unicode case folding or
// collation keys directly.
package collate

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	folder   = cases.Fold()
	collator = collate.New(language.Und, collate.Loose)
)

// Caseless returns the case-folded form of s, suitable for
// case-insensitive byte comparison (strings.Compare on the result).
func Caseless(s string) string {
	return folder.String(s)
}

// Key returns a locale-collated sort key for s. Two strings compare
// equal under COLLATE mode iff their keys are byte-equal, and the key
// byte order matches collation order.
func Key(s string) []byte {
	return collator.Key(&collate.Buffer{}, []byte(s))
}
