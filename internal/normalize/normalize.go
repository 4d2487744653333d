// Package normalize canonicalizes entity names for matching.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Legal-entity suffixes stripped from the end of a name. Multi-word
// entries must come before their single-word tails so the longest
// suffix wins (e.g. "pte ltd" before "ltd").
var legalSuffixes = []string{
	"pte ltd",
	"pty ltd",
	"co ltd",
	"inc",
	"incorporated",
	"llc",
	"llp",
	"lp",
	"ltd",
	"limited",
	"plc",
	"corp",
	"corporation",
	"company",
	"co",
	"gmbh",
	"ag",
	"sa",
	"sarl",
	"bv",
	"nv",
	"ooo",
	"oao",
	"spa",
	"srl",
	"kk",
	"ab",
	"as",
	"oy",
}

// stripMarks removes combining marks after NFD decomposition, so
// "Müller" and "Muller" normalize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes an entity name: lowercase, diacritics stripped,
// punctuation dropped (intra-word hyphens become spaces), legal-entity
// suffixes removed, whitespace collapsed. Deterministic and idempotent.
// Returns ErrEmptyQuery when nothing survives.
func Normalize(name string) (domain.NormalizedName, error) {
	lowered := strings.ToLower(strings.TrimSpace(name))

	folded, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		// Transform failures on malformed input degrade to the lowered form.
		folded = lowered
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			// Punctuation, symbols and separators all become token breaks.
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	tokens = stripSuffixes(tokens)

	if len(tokens) == 0 {
		return domain.NormalizedName{}, domain.ErrEmptyQuery
	}

	return domain.NormalizedName{
		Full:   strings.Join(tokens, " "),
		Tokens: tokens,
	}, nil
}

// stripSuffixes repeatedly removes legal-entity suffixes from the end of
// the token list, longest first. At least one token is always kept so a
// name that is nothing but suffixes (e.g. "LLC") still errors upstream
// as empty only when truly empty — a single-token suffix-only name keeps
// its token.
func stripSuffixes(tokens []string) []string {
	for len(tokens) > 1 {
		stripped := false
		for _, suffix := range legalSuffixes {
			parts := strings.Fields(suffix)
			if len(parts) >= len(tokens) {
				continue
			}
			if hasSuffix(tokens, parts) {
				tokens = tokens[:len(tokens)-len(parts)]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return tokens
}

func hasSuffix(tokens, parts []string) bool {
	offset := len(tokens) - len(parts)
	for i, p := range parts {
		if tokens[offset+i] != p {
			return false
		}
	}
	return true
}
