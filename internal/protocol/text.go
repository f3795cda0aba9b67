package protocol

import (
	"bytes"
	"unicode"
	"unicode/utf8"
)

// TextMessage is either readable text or, when the bytes do not look like
// text, an encrypted blob kept as hex.
type TextMessage struct {
	Encrypted bool   `json:"encrypted"`
	Text      string `json:"text,omitempty"`
	DataHex   string `json:"dataHex,omitempty"`
}

func (*TextMessage) PayloadType() PayloadType { return PayloadTextMessage }
func (*TextMessage) isDecoded()               {}

// LooksLikePlaintext reports whether b reads as a text message: with trailing
// NULs removed it must be non-empty valid UTF-8 made only of printable runes,
// tabs and line breaks. It is a heuristic, not a decryption check.
func LooksLikePlaintext(b []byte) bool {
	b = bytes.TrimRight(b, "\x00")
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case unicode.IsPrint(r):
		default:
			return false
		}
	}
	return true
}

// DecodeTextMessage never fails.
func DecodeTextMessage(payload []byte) (*TextMessage, error) {
	m, _ := decodeTextMessage(newCursor(payload, 0, nil))
	return m, nil
}

func decodeTextMessage(c *cursor) (*TextMessage, *FieldError) {
	b := c.rest("text.body")
	if LooksLikePlaintext(b) {
		return &TextMessage{Text: string(bytes.TrimRight(b, "\x00"))}, nil
	}
	return &TextMessage{Encrypted: true, DataHex: upperHex(b)}, nil
}
