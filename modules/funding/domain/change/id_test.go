package change

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIDGenerator_UniqueWithinMillisecond(t *testing.T) {
	t.Parallel()

	g := NewIDGenerator()
	now := time.UnixMilli(1712900000000)

	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		id := g.Next(now)
		require.True(t, strings.HasPrefix(id, "1712900000000-"), "id %q", id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func TestIDGenerator_Concurrent(t *testing.T) {
	t.Parallel()

	g := NewIDGenerator()
	now := time.UnixMilli(1712900000000)

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := g.Next(now)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 800)
}

func TestIDGenerator_ResetsAcrossMilliseconds(t *testing.T) {
	t.Parallel()

	g := NewIDGenerator()
	first := g.Next(time.UnixMilli(1000))
	second := g.Next(time.UnixMilli(2000))
	require.NotEqual(t, first, second)
	require.Equal(t, "1000", strings.SplitN(first, "-", 2)[0])
	require.Equal(t, "2000", strings.SplitN(second, "-", 2)[0])
}
