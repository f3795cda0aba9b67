package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// DefaultMaxPacketBytes bounds ParseHex. LoRa frames are far smaller; the
// headroom is for captures that include link-layer framing.
const DefaultMaxPacketBytes = 1024

// Options tune one decode call. The zero value is not useful; start from
// DefaultOptions or pass Option funcs to Decode.
type Options struct {
	Structure      bool
	MinTextRun     int
	MaxPacketBytes int
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		MinTextRun:     DefaultMinTextRun,
		MaxPacketBytes: DefaultMaxPacketBytes,
	}
}

// WithStructure records a Span for every field read.
func WithStructure() Option {
	return func(o *Options) { o.Structure = true }
}

func WithMinTextRun(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MinTextRun = n
		}
	}
}

// WithMaxPacketBytes caps the decoded input size. n <= 0 disables the cap.
func WithMaxPacketBytes(n int) Option {
	return func(o *Options) { o.MaxPacketBytes = n }
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// ParseHex turns a hex packet into bytes. Whitespace anywhere and a leading
// 0x are ignored; case does not matter. Any other deviation is
// ErrMalformedInput. maxBytes <= 0 means no limit.
func ParseHex(s string, maxBytes int) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd hex length %d", ErrMalformedInput, len(s))
	}
	if maxBytes > 0 && len(s)/2 > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPacketTooLarge, len(s)/2, maxBytes)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return b, nil
}

// Decode parses a hex packet into a Packet. The only error is
// ErrMalformedInput (or ErrPacketTooLarge, which wraps it), in which case the
// packet is nil. Everything else, including truncation, comes back as a
// partial packet with IsValid false; see Packet.Err.
func Decode(hexStr string, opts ...Option) (*Packet, error) {
	o := buildOptions(opts)
	buf, err := ParseHex(hexStr, o.MaxPacketBytes)
	if err != nil {
		return nil, err
	}
	return decodeBytes(buf, o), nil
}

// DecodeBytes decodes an already binary packet. MaxPacketBytes is not
// applied; the caller owns buf and it is never modified.
func DecodeBytes(buf []byte, opts ...Option) *Packet {
	return decodeBytes(buf, buildOptions(opts))
}

func decodeBytes(buf []byte, o Options) *Packet {
	var trace *tracer
	if o.Structure {
		trace = &tracer{}
	}
	p := &Packet{TotalBytes: len(buf), IsValid: true}
	defer func() { p.Structure = trace.result() }()

	c := newCursor(buf, 0, trace)

	h, ferr := parseHeader(c, buf)
	p.Header = h
	p.HeaderBytes = c.pos()
	p.fail(ferr)
	if p.HeaderBytes == 0 {
		return p
	}

	r, ferr := parseRouting(c)
	p.Routing = r
	p.RoutingBytes = c.pos() - p.HeaderBytes
	if ferr != nil {
		p.fail(ferr)
		return p
	}

	raw := buf[c.pos():]
	p.Payload.Raw = HexBytes(raw)
	p.Strings = ExtractText(raw, o.MinTextRun)
	if len(raw) == 0 {
		p.fail(&FieldError{Stage: "payload", Field: "payload", Offset: c.pos(), Err: ErrEmptyPayload})
		return p
	}

	pc := c.sub()
	dec, ferr := dispatch(h.PayloadType, pc)
	p.Payload.Decoded = dec
	leftover := pc.remaining()
	if dec == nil {
		pc.rest("payload.raw")
	} else {
		pc.rest("payload.trailing")
	}
	p.Payload.Complete = dec != nil && ferr == nil && leftover == 0
	p.fail(ferr)
	return p
}
