// Package slug builds URL slugs from display names.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxAttempts bounds the numbered candidates Unique tries before falling back
// to a timestamp suffix.
const MaxAttempts = 50

var (
	reNonWord = regexp.MustCompile(`[^a-z0-9\s_-]+`)
	reDashes  = regexp.MustCompile(`[\s_-]+`)
)

// Make lowercases name, strips diacritics, drops non-word characters and
// collapses whitespace and dashes into single hyphens.
func Make(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	s := strings.ToLower(folded)
	s = reNonWord.ReplaceAllString(s, "")
	s = reDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ExistsFunc reports whether a candidate slug is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Unique returns the first free slug among base, base-1, ... base-N. When all
// are taken it returns base suffixed with the current unix time.
func Unique(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	return unique(ctx, base, exists, time.Now)
}

func unique(ctx context.Context, base string, exists ExistsFunc, now func() time.Time) (string, error) {
	if base == "" {
		base = "item"
	}
	for i := 0; i <= MaxAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s-%d", base, now().Unix()), nil
}
