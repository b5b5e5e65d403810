package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// VectorMUS is the MUS serializer for embedding vectors. It is shared by
// the storage codec and the cache layer.
var VectorMUS = ord.NewSliceSer[float32](raw.Float32)

// MemberEmbeddingMUS is the MUS serializer for MemberEmbedding records.
// Field order is part of the storage format; append-only changes require a
// new key prefix in the storage layer.
var MemberEmbeddingMUS = memberEmbeddingMUS{}

type memberEmbeddingMUS struct{}

var _ mus.Serializer[MemberEmbedding] = memberEmbeddingMUS{}

func (memberEmbeddingMUS) Marshal(e MemberEmbedding, bs []byte) (n int) {
	n = varint.Uint64.Marshal(e.MemberID, bs)
	n += VectorMUS.Marshal(e.Vector, bs[n:])
	n += ord.String.Marshal(e.SearchableText, bs[n:])
	n += ord.String.Marshal(e.ContentHash, bs[n:])
	n += ord.String.Marshal(e.DisplayName, bs[n:])
	n += ord.Bool.Marshal(e.Active, bs[n:])
	n += ord.String.Marshal(e.ModelVersion, bs[n:])
	n += raw.Int64.Marshal(e.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (memberEmbeddingMUS) Unmarshal(bs []byte) (e MemberEmbedding, n int, err error) {
	var n1 int
	e.MemberID, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	e.Vector, n1, err = VectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.SearchableText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.ContentHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.DisplayName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Active, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.ModelVersion, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = raw.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (memberEmbeddingMUS) Size(e MemberEmbedding) (size int) {
	size = varint.Uint64.Size(e.MemberID)
	size += VectorMUS.Size(e.Vector)
	size += ord.String.Size(e.SearchableText)
	size += ord.String.Size(e.ContentHash)
	size += ord.String.Size(e.DisplayName)
	size += ord.Bool.Size(e.Active)
	size += ord.String.Size(e.ModelVersion)
	size += raw.Int64.Size(e.UpdatedAt.UnixMicro())
	return size
}

func (memberEmbeddingMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = varint.Uint64.Skip(bs)
	if err != nil {
		return
	}
	n1, err = VectorMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = ord.Bool.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.Int64.Skip(bs[n:])
	n += n1
	return
}
