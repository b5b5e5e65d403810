package badger

import (
	"fmt"
	"strconv"
	"strings"
)

// Key prefixes for different data types
const (
	embeddingPrefix       = "membemb"
	embeddingMemberPrefix = "membidx"
)

// makeEmbeddingKey generates the primary key for an embedding record.
// Format: prefix:modelVersion:memberID
func makeEmbeddingKey(memberID uint64, modelVersion string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", embeddingPrefix, modelVersion, memberID))
}

// makeMemberIndexKey generates the secondary index key used to find every
// model version stored for one member.
// Format: prefix:memberID:modelVersion
func makeMemberIndexKey(memberID uint64, modelVersion string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s", embeddingMemberPrefix, memberID, modelVersion))
}

// makePartialMemberIndexKey generates the scan prefix for one member's
// index entries.
func makePartialMemberIndexKey(memberID uint64) []byte {
	return []byte(fmt.Sprintf("%s:%d:", embeddingMemberPrefix, memberID))
}

// modelVersionFromIndexKey extracts the model version from a member index key.
func modelVersionFromIndexKey(key []byte, memberID uint64) string {
	prefix := fmt.Sprintf("%s:%s:", embeddingMemberPrefix, strconv.FormatUint(memberID, 10))
	return strings.TrimPrefix(string(key), prefix)
}
