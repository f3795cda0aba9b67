package protocol

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// HexBytes renders as upper-case hex in JSON.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(upperHex(h)), nil
}

func (h HexBytes) String() string { return upperHex(h) }

// NodeID is a one-byte path hash identifying a hop.
type NodeID uint8

func (n NodeID) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%02X", uint8(n))), nil
}

// Routing is the hop metadata following the header. Path is nil when
// PathLength is zero; a Path shorter than PathLength means the packet ended
// inside the path.
type Routing struct {
	PathLength int      `json:"pathLength"`
	Path       []NodeID `json:"path"`
}

// Decoded is one of *Position, *NodeInfo, *Telemetry or *TextMessage.
type Decoded interface {
	PayloadType() PayloadType
	isDecoded()
}

// Payload is everything after the routing block. Complete is set only when a
// type decoder read its whole layout and nothing followed it; a partial record
// or trailing bytes leave it false.
type Payload struct {
	Raw      HexBytes
	Decoded  Decoded
	Complete bool
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Raw      HexBytes `json:"raw"`
		Decoded  Decoded  `json:"decoded"`
		Complete bool     `json:"complete"`
	}{p.Raw, p.Decoded, p.Complete})
}

// Packet is the structured record produced for one hex packet. Fields are
// filled as deep as decoding got; IsValid is false whenever any stage came up
// short, and Issues says which.
type Packet struct {
	Header       Header       `json:"header"`
	Routing      Routing      `json:"routing"`
	Payload      Payload      `json:"payload"`
	TotalBytes   int          `json:"totalBytes"`
	HeaderBytes  int          `json:"headerBytes"`
	RoutingBytes int          `json:"routingBytes"`
	Strings      []string     `json:"strings,omitempty"`
	Issues       []FieldError `json:"issues,omitempty"`
	IsValid      bool         `json:"isValid"`
	Structure    []Span       `json:"structure,omitempty"`
}

// Err joins every recorded issue, or returns nil for a clean decode.
func (p *Packet) Err() error {
	if len(p.Issues) == 0 {
		return nil
	}
	errs := make([]error, 0, len(p.Issues))
	for _, issue := range p.Issues {
		errs = append(errs, issue)
	}
	return errors.Join(errs...)
}

func (p *Packet) fail(err *FieldError) {
	if err == nil {
		return
	}
	p.IsValid = false
	p.Issues = append(p.Issues, *err)
}

func upperHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
