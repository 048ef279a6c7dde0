package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/pkg/spotlight"
)

const defaultSearchLimit = 10

// Hit is one search result for the portal's filter boxes. Key addresses the
// record the way the edit endpoints do: grant number for active grants,
// numeric id for grant rounds, slice index for papers.
type Hit struct {
	Entity string `json:"entity"`
	Key    string `json:"key"`
	Label  string `json:"label"`
	Score  int    `json:"score"`
}

type SearchService struct {
	store *DataStore
}

func NewSearchService(store *DataStore) *SearchService {
	return &SearchService{store: store}
}

// Search fuzzy-ranks grant numbers, grant titles and paper titles against q.
// A record matched through several of its fields appears once, at its best rank.
func (s *SearchService) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	data, err := s.store.Get(ctx)
	if err != nil {
		if errors.Is(err, cirm.ErrNoDataSet) {
			return []Hit{}, nil
		}
		return nil, errors.Wrap(err, "search data set")
	}

	matches := buildSearchIndex(data).Find(q, limit)
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, Hit{Entity: m.Entity, Key: m.Key, Label: m.Label, Score: m.Score})
	}
	return hits, nil
}

func buildSearchIndex(data *cirm.Data) *spotlight.Index {
	idx := spotlight.NewIndex()

	for _, g := range data.ActiveGrants {
		entry := spotlight.Entry{Entity: cirm.EntityActiveGrant, Key: g.GrantNumber, Label: g.GrantTitle}
		if entry.Label == "" {
			entry.Label = g.GrantNumber
		}
		idx.Add(g.GrantNumber, entry)
		idx.Add(g.GrantTitle, entry)
	}
	for i, p := range data.Papers {
		idx.Add(p.Title, spotlight.Entry{Entity: cirm.EntityPaper, Key: strconv.Itoa(i), Label: p.Title})
	}
	for _, g := range data.Grants {
		idx.Add(g.GrantType, spotlight.Entry{Entity: cirm.EntityGrant, Key: strconv.Itoa(g.ID), Label: g.GrantType})
	}
	return idx
}
