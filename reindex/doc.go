// Package reindex keeps the embedding store consistent with upstream member
// data: the Indexer embeds and upserts single members, and the Consumer
// drives it from at-least-once member-change events.
package reindex
