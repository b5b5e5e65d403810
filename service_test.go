package fansearch

import (
	"context"
	"testing"

	"github.com/poiesic/fansearch/ai/mock"
	"github.com/poiesic/fansearch/core"
	"github.com/poiesic/fansearch/member"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *member.StaticSource) {
	t.Helper()

	source := member.NewStaticSource(
		member.Member{ID: 1, DisplayName: "Hoshino", Description: "cheerful pop singer", Tags: []string{"singer"}, Active: true},
		member.Member{ID: 2, DisplayName: "Tsukishiro", Description: "stoic drummer", Tags: []string{"drummer"}, Active: true},
		member.Member{ID: 3, DisplayName: "Amane", Description: "energetic street dancer", Tags: []string{"dancer"}, Active: false},
	)

	svc, err := NewService("", source,
		WithInMemoryStore(),
		WithEmbedder(mock.NewEmbedder()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return svc, source
}

func TestServiceIndexAndSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []uint64{1, 2, 3} {
		receipt, err := svc.Indexer().Index(ctx, id, false)
		require.NoError(t, err)
		assert.Equal(t, core.StatusIndexed, receipt.Status)
	}

	results, cached, err := svc.Searcher().Search(ctx, core.NewSearchQuery("cheerful singer", core.WithLimit(2)))
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, results, 2)
	for i, result := range results {
		assert.Equal(t, i+1, result.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, result.Score)
		}
	}

	activeOnly, _, err := svc.Searcher().Search(ctx, core.NewSearchQuery("dancer", core.WithActiveOnly(true)))
	require.NoError(t, err)
	for _, result := range activeOnly {
		assert.NotEqual(t, uint64(3), result.MemberID, "inactive members are filtered")
	}
}

func TestServiceReindexAfterChange(t *testing.T) {
	svc, source := newTestService(t)
	ctx := context.Background()

	_, err := svc.Indexer().Index(ctx, 1, false)
	require.NoError(t, err)

	repeat, err := svc.Indexer().Index(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, core.StatusExists, repeat.Status)

	source.Put(member.Member{ID: 1, DisplayName: "Hoshino", Description: "retired from the morning unit", Active: false})

	changed, err := svc.Indexer().Index(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReindexed, changed.Status)
}

func TestServiceServer(t *testing.T) {
	svc, _ := newTestService(t)
	assert.NotNil(t, svc.Server())
}
