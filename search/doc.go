// Package search implements the search orchestrator. Per request the cache
// check and the embedding call race as independent branches; the response
// always reflects one consistent path, hit or miss.
package search
