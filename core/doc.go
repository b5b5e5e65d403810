// Package core defines the domain model of the semantic member search
// subsystem: embedding records, search queries and results, reindex events,
// and the error taxonomy shared by every layer.
package core
