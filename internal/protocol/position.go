package protocol

// PositionScale converts the fixed-point latitude/longitude to degrees.
const PositionScale = 1e7

// Position is a device fix. Nil fields were not present in the payload.
type Position struct {
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Altitude   *int32   `json:"altitude,omitempty"`
	Satellites *uint8   `json:"satellites,omitempty"`
	Precision  *uint8   `json:"precision,omitempty"`
}

func (*Position) PayloadType() PayloadType { return PayloadPosition }
func (*Position) isDecoded()               {}

// DecodePosition reads a POSITION payload: int32 LE latitude, longitude and
// altitude, then optional satellite count and precision bytes.
func DecodePosition(payload []byte) (*Position, error) {
	p, err := decodePosition(newCursor(payload, 0, nil))
	if err != nil {
		return p, *err
	}
	return p, nil
}

func decodePosition(c *cursor) (*Position, *FieldError) {
	p := &Position{}

	lat, ok := c.i32("position.latitude")
	if !ok {
		return p, truncated("position", "latitude", c.pos())
	}
	latDeg := float64(lat) / PositionScale
	p.Latitude = &latDeg

	lon, ok := c.i32("position.longitude")
	if !ok {
		return p, truncated("position", "longitude", c.pos())
	}
	lonDeg := float64(lon) / PositionScale
	p.Longitude = &lonDeg

	alt, ok := c.i32("position.altitude")
	if !ok {
		return p, truncated("position", "altitude", c.pos())
	}
	p.Altitude = &alt

	if sats, ok := c.u8("position.satellites"); ok {
		p.Satellites = &sats
	}
	if prec, ok := c.u8("position.precision"); ok {
		p.Precision = &prec
	}
	return p, nil
}
