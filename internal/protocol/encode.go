package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Frame is a packet to be assembled by Encode. Payload is already encoded
// for PayloadType; see EncodeNodeInfo and EncodePosition.
type Frame struct {
	PayloadType  PayloadType
	WantResponse bool
	HopLimit     uint8
	Path         []NodeID
	Payload      []byte
}

// Encode assembles header, routing and payload. The message hash is not
// computed: it is whatever the last four bytes turn out to be.
func Encode(f Frame) ([]byte, error) {
	if f.PayloadType > headerTypeMask {
		return nil, fmt.Errorf("%w: payload type %d does not fit the header", ErrInvalidFrame, f.PayloadType)
	}
	if f.HopLimit > MaxHopLimit {
		return nil, fmt.Errorf("%w: hop limit %d does not fit the header", ErrInvalidFrame, f.HopLimit)
	}
	if len(f.Path) > MaxPathLength {
		return nil, fmt.Errorf("%w: %d hops", ErrInvalidFrame, len(f.Path))
	}

	h := uint8(f.PayloadType) | f.HopLimit<<headerHopShift
	if f.WantResponse {
		h |= headerWantResponse
	}
	out := make([]byte, 0, HeaderSize+1+len(f.Path)+len(f.Payload))
	out = append(out, h, uint8(len(f.Path)))
	for _, hop := range f.Path {
		out = append(out, uint8(hop))
	}
	return append(out, f.Payload...), nil
}

// EncodeNodeInfo is the inverse of DecodeNodeInfo. The flags byte is
// rebuilt from Role, the body variant and the feature fields.
func EncodeNodeInfo(n NodeInfo) ([]byte, error) {
	if len(n.PublicKey) != PublicKeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes", ErrInvalidFrame, len(n.PublicKey))
	}
	if len(n.Signature) != SignatureSize {
		return nil, fmt.Errorf("%w: signature is %d bytes", ErrInvalidFrame, len(n.Signature))
	}
	out := make([]byte, 0, PublicKeySize+4+SignatureSize+32)
	out = append(out, n.PublicKey...)
	out = binary.LittleEndian.AppendUint32(out, n.Timestamp)
	out = append(out, n.Signature...)
	if n.AppData == nil {
		return out, nil
	}

	ad := n.AppData
	if ad.Role > FlagRoleMask {
		return nil, fmt.Errorf("%w: role %d does not fit the flags", ErrInvalidFrame, ad.Role)
	}
	flags := uint8(ad.Role)
	loc, hasLoc := ad.Location()
	name, hasName := ad.Name()
	if hasLoc {
		flags |= FlagHasLocation
	}
	if ad.Feature1 != nil {
		flags |= FlagHasFeature1
	}
	if ad.Feature2 != nil {
		flags |= FlagHasFeature2
	}
	if hasName {
		flags |= FlagHasName
	}

	out = append(out, flags)
	if hasLoc {
		out = binary.LittleEndian.AppendUint32(out, uint32(scaleCoord(loc.Latitude, LocationScale)))
		out = binary.LittleEndian.AppendUint32(out, uint32(scaleCoord(loc.Longitude, LocationScale)))
	}
	if ad.Feature1 != nil {
		out = binary.LittleEndian.AppendUint16(out, *ad.Feature1)
	}
	if ad.Feature2 != nil {
		out = binary.LittleEndian.AppendUint16(out, *ad.Feature2)
	}
	if hasName {
		out = append(out, name...)
	}
	return out, nil
}

// EncodePosition is the inverse of DecodePosition. Latitude, Longitude and
// Altitude are required; Precision needs Satellites.
func EncodePosition(p Position) ([]byte, error) {
	if p.Latitude == nil || p.Longitude == nil || p.Altitude == nil {
		return nil, fmt.Errorf("%w: position needs latitude, longitude and altitude", ErrInvalidFrame)
	}
	if p.Precision != nil && p.Satellites == nil {
		return nil, fmt.Errorf("%w: precision without satellites", ErrInvalidFrame)
	}
	out := make([]byte, 0, 14)
	out = binary.LittleEndian.AppendUint32(out, uint32(scaleCoord(*p.Latitude, PositionScale)))
	out = binary.LittleEndian.AppendUint32(out, uint32(scaleCoord(*p.Longitude, PositionScale)))
	out = binary.LittleEndian.AppendUint32(out, uint32(*p.Altitude))
	if p.Satellites != nil {
		out = append(out, *p.Satellites)
	}
	if p.Precision != nil {
		out = append(out, *p.Precision)
	}
	return out, nil
}

func scaleCoord(deg, scale float64) int32 {
	v := math.Round(deg * scale)
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
