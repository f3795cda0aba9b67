package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	HeaderSize = 1
	HashSize   = 4

	headerTypeMask     = 0x07
	headerWantResponse = 0x08
	headerHopShift     = 4

	// MaxHopLimit is the largest value the header's upper nibble can carry.
	MaxHopLimit = 0x0F
)

// RouteType says whether the sender asked for a response.
type RouteType uint8

const (
	RouteNoResponse   RouteType = 0
	RouteWantResponse RouteType = 1
	RouteUnknown      RouteType = 0xFF
)

func (r RouteType) String() string {
	switch r {
	case RouteNoResponse:
		return "NO_RESPONSE"
	case RouteWantResponse:
		return "WANT_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// PayloadType is the header's only type discriminant. Codes outside the known
// set are carried as-is and reported as UNKNOWN(code).
type PayloadType uint8

const (
	PayloadPosition    PayloadType = 0
	PayloadNodeInfo    PayloadType = 1
	PayloadTelemetry   PayloadType = 2
	PayloadTextMessage PayloadType = 4

	// PayloadNone marks a packet with no header byte at all.
	PayloadNone PayloadType = 0xFF
)

// Known reports whether a type decoder exists for p.
func (p PayloadType) Known() bool {
	_, ok := payloadDecoders[p]
	return ok
}

func (p PayloadType) String() string {
	switch p {
	case PayloadPosition:
		return "POSITION"
	case PayloadNodeInfo:
		return "NODEINFO"
	case PayloadTelemetry:
		return "TELEMETRY"
	case PayloadTextMessage:
		return "TEXT_MESSAGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(p))
	}
}

// Header is the fixed leading byte plus the packet-wide message hash trailer.
// The header byte carries no version bits, so PayloadVersion is always 0.
type Header struct {
	RouteType      RouteType
	PayloadType    PayloadType
	PayloadVersion uint8
	HopLimit       uint8
	MessageHash    [HashSize]byte
	HasHash        bool
}

// Hash returns the message hash as upper-case hex, or "" when the packet was
// too short to carry one.
func (h Header) Hash() string {
	if !h.HasHash {
		return ""
	}
	return upperHex(h.MessageHash[:])
}

func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RouteType       string `json:"routeType"`
		PayloadType     string `json:"payloadType"`
		PayloadTypeCode uint8  `json:"payloadTypeCode"`
		PayloadVersion  uint8  `json:"payloadVersion"`
		HopLimit        uint8  `json:"hopLimit"`
		MessageHash     string `json:"messageHash"`
	}{h.RouteType.String(), h.PayloadType.String(), uint8(h.PayloadType), h.PayloadVersion, h.HopLimit, h.Hash()})
}

// parseHeader reads the header byte through c and the hash trailer from the
// whole packet. The trailer overlaps the payload, so it is traced without
// moving the cursor.
func parseHeader(c *cursor, packet []byte) (Header, *FieldError) {
	h := Header{RouteType: RouteUnknown, PayloadType: PayloadNone}

	b, ok := c.u8("header")
	if !ok {
		return h, truncated("header", "header", c.pos())
	}
	h.PayloadType = PayloadType(b & headerTypeMask)
	h.RouteType = RouteNoResponse
	if b&headerWantResponse != 0 {
		h.RouteType = RouteWantResponse
	}
	h.HopLimit = b >> headerHopShift

	if len(packet) < HashSize {
		return h, truncated("header", "message_hash", 0)
	}
	tail := len(packet) - HashSize
	copy(h.MessageHash[:], packet[tail:])
	h.HasHash = true
	c.trace.record(tail, "message_hash", packet[tail:])
	return h, nil
}
