// Package storage defines how benchmark runs are persisted.
//
// Adapters (memory, postgres) implement RunStore. This package holds the
// record type, the interface and the sentinel errors shared by them.
package storage
