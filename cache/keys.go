package cache

import (
	"fmt"
	"strings"

	"github.com/poiesic/fansearch/core"
)

const serviceStatusKey = "status"

// SearchKey derives a deterministic cache key from query parameters.
// Query text is case-folded and whitespace-normalized so trivially different
// spellings share an entry; the whole natural key is hashed because raw
// query text is unsafe as a store key. The key includes the current search
// generation, which InvalidateSearches bumps.
func (c *Cache) SearchKey(q core.SearchQuery) string {
	text := strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
	natural := fmt.Sprintf("%s|%d|%t|%.4f", text, q.Limit, q.ActiveOnly, q.MinSimilarity)
	return fmt.Sprintf("search:%d:%s", c.generation.Load(), core.HashKey(natural))
}

// EmbedKey derives a deterministic cache key for an embedding from its
// subject text and the model version that produced it.
func EmbedKey(text, modelVersion string) string {
	return "embed:" + core.HashKey(modelVersion, strings.TrimSpace(text))
}

// MemberStatusKey is the cache key for per-member index status metadata.
func MemberStatusKey(memberID uint64) string {
	return fmt.Sprintf("member:%d:status", memberID)
}
