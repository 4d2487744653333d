package match

import (
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/normalize"
)

// index is an immutable snapshot of one reference dataset, built off-lock
// and swapped in whole. Posting lists keyed by normalized name tokens keep
// candidate retrieval sublinear in dataset size.
type index struct {
	dataset  string
	version  int64
	entries  []indexEntry
	postings map[string][]int // token -> positions in entries
}

type indexEntry struct {
	entity domain.ReferenceEntity
	names  []normName // canonical name first, then aliases
}

type normName struct {
	full   string
	tokens map[string]struct{}
}

// buildIndex normalizes every entity name and alias and fills the posting
// lists. Entities whose canonical name normalizes to nothing are skipped;
// they can never be matched.
func buildIndex(dataset string, version int64, entities []*domain.ReferenceEntity) *index {
	idx := &index{
		dataset:  dataset,
		version:  version,
		postings: make(map[string][]int),
	}

	for _, e := range entities {
		canonical, err := normalize.Normalize(e.Name)
		if err != nil {
			continue
		}

		entry := indexEntry{entity: *e}
		entry.names = append(entry.names, normName{
			full:   canonical.Full,
			tokens: canonical.TokenSet(),
		})
		for _, alias := range e.Aliases {
			n, err := normalize.Normalize(alias)
			if err != nil {
				continue
			}
			entry.names = append(entry.names, normName{
				full:   n.Full,
				tokens: n.TokenSet(),
			})
		}

		pos := len(idx.entries)
		idx.entries = append(idx.entries, entry)

		seen := make(map[string]struct{})
		for _, n := range entry.names {
			for tok := range n.tokens {
				if _, dup := seen[tok]; dup {
					continue
				}
				seen[tok] = struct{}{}
				idx.postings[tok] = append(idx.postings[tok], pos)
			}
		}
	}

	return idx
}

// candidates returns the union of posting lists for the query tokens.
func (idx *index) candidates(tokens []string) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, tok := range tokens {
		for _, pos := range idx.postings[tok] {
			if _, dup := seen[pos]; dup {
				continue
			}
			seen[pos] = struct{}{}
			out = append(out, pos)
		}
	}
	return out
}
