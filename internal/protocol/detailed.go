package protocol

// Detailed is the flat, reference-compatible rendering of a Packet. Field
// order is part of the contract; do not reorder.
type Detailed struct {
	MessageHash    string          `json:"messageHash"`
	RouteType      uint8           `json:"routeType"`
	PayloadType    uint8           `json:"payloadType"`
	PayloadVersion uint8           `json:"payloadVersion"`
	PathLength     int             `json:"pathLength"`
	Path           []NodeID        `json:"path"`
	TotalBytes     int             `json:"totalBytes"`
	IsValid        bool            `json:"isValid"`
	Payload        DetailedPayload `json:"payload"`
	Structure      []Span          `json:"structure,omitempty"`
}

type DetailedPayload struct {
	Raw     HexBytes `json:"raw"`
	Decoded any      `json:"decoded"`
}

type detailedCommon struct {
	Type    uint8 `json:"type"`
	Version uint8 `json:"version"`
	IsValid bool  `json:"isValid"`
}

type detailedAppData struct {
	Flags       uint8     `json:"flags"`
	DeviceRole  uint8     `json:"deviceRole"`
	HasLocation bool      `json:"hasLocation"`
	HasName     bool      `json:"hasName"`
	Location    *Location `json:"location"`
	Name        string    `json:"name"`
}

type detailedNodeInfo struct {
	detailedCommon
	PublicKey HexBytes         `json:"publicKey"`
	Timestamp uint32           `json:"timestamp"`
	Signature HexBytes         `json:"signature"`
	AppData   *detailedAppData `json:"appData"`
}

type detailedPosition struct {
	detailedCommon
	*Position
}

type detailedTelemetry struct {
	detailedCommon
	*Telemetry
}

type detailedText struct {
	detailedCommon
	*TextMessage
}

// DecodeDetailed decodes like Decode and projects the result.
func DecodeDetailed(hexStr string, opts ...Option) (*Detailed, error) {
	p, err := Decode(hexStr, opts...)
	if err != nil {
		return nil, err
	}
	return p.Detailed(), nil
}

// Detailed projects p into the flat shape. The packet is not modified.
func (p *Packet) Detailed() *Detailed {
	d := &Detailed{
		MessageHash:    p.Header.Hash(),
		RouteType:      uint8(p.Header.RouteType),
		PayloadType:    uint8(p.Header.PayloadType),
		PayloadVersion: p.Header.PayloadVersion,
		PathLength:     p.Routing.PathLength,
		Path:           p.Routing.Path,
		TotalBytes:     p.TotalBytes,
		IsValid:        p.IsValid,
		Payload:        DetailedPayload{Raw: p.Payload.Raw},
		Structure:      p.Structure,
	}
	if p.Payload.Decoded == nil {
		return d
	}

	common := detailedCommon{
		Type:    uint8(p.Header.PayloadType),
		Version: p.Header.PayloadVersion,
		IsValid: p.Payload.Complete,
	}
	switch v := p.Payload.Decoded.(type) {
	case *NodeInfo:
		d.Payload.Decoded = projectNodeInfo(common, v)
	case *Position:
		d.Payload.Decoded = detailedPosition{common, v}
	case *Telemetry:
		d.Payload.Decoded = detailedTelemetry{common, v}
	case *TextMessage:
		d.Payload.Decoded = detailedText{common, v}
	}
	return d
}

func projectNodeInfo(common detailedCommon, n *NodeInfo) detailedNodeInfo {
	out := detailedNodeInfo{
		detailedCommon: common,
		PublicKey:      n.PublicKey,
		Timestamp:      n.Timestamp,
		Signature:      n.Signature,
	}
	if n.AppData == nil {
		return out
	}
	ad := &detailedAppData{
		Flags:       n.AppData.Flags,
		DeviceRole:  uint8(n.AppData.Role),
		HasLocation: n.AppData.HasLocation(),
		HasName:     n.AppData.HasName(),
	}
	if loc, ok := n.AppData.Location(); ok {
		ad.Location = &loc
	}
	ad.Name, _ = n.AppData.Name()
	out.AppData = ad
	return out
}
