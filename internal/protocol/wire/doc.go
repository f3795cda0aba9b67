// Package wire owns the protobuf-style primitives the packet decoder leans on:
// bounded varint decode/encode, field tag splitting and a best-effort raw
// field probe for payloads with no known layout.
package wire
