// Package spotlight ranks free-text queries against labeled entries. The
// portal's search box is backed by an Index rebuilt from the current data set
// on every query.
package spotlight

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Entry identifies one searchable record. Entity and Key together address the
// record; Label is what the user sees.
type Entry struct {
	Entity string
	Key    string
	Label  string
}

// Match is an Entry that matched a query, with its fuzzy rank distance. Lower
// scores rank higher.
type Match struct {
	Entry
	Score int
}

// Index pairs search words with the entries they belong to. One entry may be
// indexed under several words.
type Index struct {
	words   []string
	entries []Entry
}

func NewIndex() *Index {
	return &Index{}
}

// Add indexes entry under word. Blank words are skipped.
func (idx *Index) Add(word string, entry Entry) {
	if strings.TrimSpace(word) == "" {
		return
	}
	idx.words = append(idx.words, word)
	idx.entries = append(idx.entries, entry)
}

func (idx *Index) Len() int {
	return len(idx.entries)
}

// Find returns up to limit entries fuzzy-matching q, best rank first. An
// entry indexed under several words appears once, at its best rank.
func (idx *Index) Find(q string, limit int) []Match {
	q = strings.TrimSpace(q)
	if q == "" || limit <= 0 {
		return []Match{}
	}

	ranks := fuzzy.RankFindNormalizedFold(q, idx.words)
	sort.Sort(ranks)

	seen := make(map[string]struct{}, limit)
	result := make([]Match, 0, limit)
	for _, rank := range ranks {
		entry := idx.entries[rank.OriginalIndex]
		dedupKey := entry.Entity + "\x00" + entry.Key
		if _, ok := seen[dedupKey]; ok {
			continue
		}
		seen[dedupKey] = struct{}{}
		result = append(result, Match{Entry: entry, Score: rank.Distance})
		if len(result) == limit {
			break
		}
	}
	return result
}
