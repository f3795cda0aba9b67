// Package protocol decodes mesh radio packets given as hex.
//
// A packet is a header byte, a routing block (path length plus one byte per
// hop) and a payload interpreted by the decoder registered for the header's
// payload type. The last four bytes of the packet double as its message hash.
//
// Decoding never fails on short or odd input: each stage keeps what it read,
// records a FieldError and stops descending. Only input that is not hex at
// all is rejected.
package protocol
