package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
)

func newSearchFixture(t *testing.T) *SearchService {
	t.Helper()
	importSvc, _, store := newImportFixture()
	importBaseline(t, importSvc)
	return NewSearchService(store)
}

func TestSearch_MatchesGrantNumber(t *testing.T) {
	t.Parallel()

	svc := newSearchFixture(t)
	hits, err := svc.Search(testContext(), "DISC1-09999", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, cirm.EntityActiveGrant, hits[0].Entity)
	require.Equal(t, "DISC1-09999", hits[0].Key)
}

func TestSearch_DeduplicatesRecordMatchedTwice(t *testing.T) {
	t.Parallel()

	svc := newSearchFixture(t)
	// "disc" hits both the grant number and fuzzy-matches titles; the active
	// grant itself must appear once.
	hits, err := svc.Search(testContext(), "disc", 10)
	require.NoError(t, err)

	seen := 0
	for _, h := range hits {
		if h.Entity == cirm.EntityActiveGrant && h.Key == "DISC1-09999" {
			seen++
		}
	}
	require.Equal(t, 1, seen)
}

func TestSearch_MatchesPaperTitle(t *testing.T) {
	t.Parallel()

	svc := newSearchFixture(t)
	hits, err := svc.Search(testContext(), "progenitor expansion", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, cirm.EntityPaper, hits[0].Entity)
	require.Equal(t, "0", hits[0].Key)
}

func TestSearch_HonorsLimit(t *testing.T) {
	t.Parallel()

	svc := newSearchFixture(t)
	hits, err := svc.Search(testContext(), "a", 1)
	require.NoError(t, err)
	require.LessOrEqual(t, len(hits), 1)
}

func TestSearch_BlankQuery(t *testing.T) {
	t.Parallel()

	svc := newSearchFixture(t)
	hits, err := svc.Search(testContext(), "   ", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSearch_NoDataSet(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore()
	svc := NewSearchService(store)
	hits, err := svc.Search(testContext(), "DISC1", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}
