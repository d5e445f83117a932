// Package ir holds the values every ordinal package passes around: scalar
// IR values, records, group keys and collection definitions.
//
// ir imports nothing internal, so the store, the position core, the
// compiler and the harness can all share it.
//
// A record's group is a GroupKey: column=value pairs in the collection's
// declared column order. Two keys are the same group when every value is
// equal, NULL included. Group values are int64 or string; there are no
// floats, so equality is exact.
//
// GroupKey.Hash and attribute storage both go through MarshalCanonical
// (RFC 8785 JSON with NFC-normalized strings), so the same group or
// attribute set always encodes to the same bytes.
package ir
