// Package kv is an in-process stand-in for the consul key-value store.
//
// Keys map to string values and are kept in insertion order. Lookups
// either return a single value or, recursively, the values of every key
// sharing a literal string prefix:
//
//  foo/bar/baz: baz
//  foo/bar/bif: bif
//  foo/boom/boz: boz
//
// GetRecurse("foo/bar/") returns [baz bif]. The prefix is not path-aware,
// so GetRecurse("foo/b") returns all three values.
//
// Putting a nil value is a tombstone: every mutation ends with a compaction
// pass that removes null-valued entries, so Put(key, nil) behaves exactly
// like Delete(key). Every mutation then persists the whole store through a
// snapshot.Store, and New restores it, so state outlives the process.
package kv
