// Package analytics persists the per-identity history of completed tasks.
//
// # Collection Semantics
//
// Each identity owns one collection of at most 50 records, insertion-ordered
// newest first. Appending past the cap evicts the oldest record. Records are
// not required to be unique; two uploads of the same file in the same
// displayed minute are legitimate duplicates.
//
// Every mutation re-serializes and replaces the whole collection, mirroring
// the local-storage semantics of the original dashboard. Concurrent writers
// sharing one database file can still race; within a process, mutations are
// serialized by the store.
//
// # Record Addressing
//
// Records carry a unique ID assigned at creation. The legacy composite
// (time, filename) address is not unique and is honored only for records
// persisted without an ID, resolving to the first match.
//
// # Extra Per-Identity State
//
// Alongside the collection the store keeps the cumulative bag total (stored
// as a decimal string), the last five completed uploads for dashboard
// repopulation, and a one-shot filter handoff used when navigating between
// views. ClearAll removes all of it.
//
// # Error Handling
//
// Corrupted persisted state (unparseable JSON blobs, bad counters) is reset
// to empty rather than propagated; ErrRecordNotFound reports a failed
// verify/remove lookup.
package analytics
