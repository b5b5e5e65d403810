// Package badger implements storage.EmbeddingRepository on BadgerDB.
// Similarity queries are an exact cosine scan over normalized vectors with
// lexical blending for hybrid ranking.
package badger
