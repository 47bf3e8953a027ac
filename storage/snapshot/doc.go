// Package snapshot persists the full state of a component and restores it
// when the component is constructed again, possibly in another process.
//
// A snapshot is a header, zero or more records and an end value carrying
// the record count, each framed by lvstream:
//
//  [len|"FCSN" version kind][len|'r' record]...[len|'e' uvarint(count)]
//
// A snapshot without its end value is truncated, wherever it was cut.
//
// Components implement Source and Acceptor and hand themselves to a Store.
// Load turns the result of Store.Restore into an Outcome so that a missing,
// empty or truncated snapshot is a named recovery branch rather than an
// error, while anything else that cannot be decoded still fails.
package snapshot
