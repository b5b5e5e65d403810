// Package cache implements the TTL cache layer in front of the search
// orchestrator: prior search result sets, prior query embeddings, and
// status summaries. Cache failures never propagate; they degrade to a miss.
package cache
