// Package storage defines the embedding repository contract and the storage
// serialization format. The BadgerDB implementation lives in the badger
// subpackage.
package storage
