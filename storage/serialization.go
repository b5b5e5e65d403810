package storage

import (
	"fmt"

	"github.com/poiesic/fansearch/core"
)

// MarshalEmbedding serializes a MemberEmbedding to bytes.
func MarshalEmbedding(embedding *core.MemberEmbedding) []byte {
	buf := make([]byte, core.MemberEmbeddingMUS.Size(*embedding))
	core.MemberEmbeddingMUS.Marshal(*embedding, buf)
	return buf
}

// UnmarshalEmbedding deserializes a MemberEmbedding from bytes.
func UnmarshalEmbedding(data []byte) (*core.MemberEmbedding, error) {
	embedding, _, err := core.MemberEmbeddingMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &embedding, nil
}
