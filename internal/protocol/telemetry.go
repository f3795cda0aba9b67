package protocol

// Telemetry payloads are opaque sensor blobs; only the bytes are surfaced.
// wire.ProbeFields can be used to look inside one.
type Telemetry struct {
	DataHex string `json:"dataHex"`
}

func (*Telemetry) PayloadType() PayloadType { return PayloadTelemetry }
func (*Telemetry) isDecoded()               {}

// DecodeTelemetry never fails.
func DecodeTelemetry(payload []byte) (*Telemetry, error) {
	t, _ := decodeTelemetry(newCursor(payload, 0, nil))
	return t, nil
}

func decodeTelemetry(c *cursor) (*Telemetry, *FieldError) {
	return &Telemetry{DataHex: upperHex(c.rest("telemetry.data"))}, nil
}
