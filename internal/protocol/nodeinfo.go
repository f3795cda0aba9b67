package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	PublicKeySize = 32
	SignatureSize = 64
	// LocationScale converts advertised int32 coordinates to degrees.
	LocationScale = 1e6

	FlagRoleMask    = 0x0F
	FlagHasLocation = 0x10
	FlagHasFeature1 = 0x20
	FlagHasFeature2 = 0x40
	FlagHasName     = 0x80
)

// DeviceRole is the low nibble of the app data flags.
type DeviceRole uint8

const (
	RoleUnknown    DeviceRole = 0
	RoleCompanion  DeviceRole = 1
	RoleRepeater   DeviceRole = 2
	RoleRoomServer DeviceRole = 3
)

func (r DeviceRole) Known() bool {
	return r == RoleCompanion || r == RoleRepeater || r == RoleRoomServer
}

func (r DeviceRole) String() string {
	switch r {
	case RoleCompanion:
		return "Companion"
	case RoleRepeater:
		return "Repeater"
	case RoleRoomServer:
		return "RoomServer"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(r))
	}
}

// Location is an advertised position in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AppDataBody is the presence-dependent part of the app data block. There is
// one concrete type per combination of the location and name bits.
type AppDataBody interface {
	HasLocation() bool
	HasName() bool
	isAppDataBody()
}

type AppDataBare struct{}

type AppDataLocated struct {
	Location Location
}

type AppDataNamed struct {
	Name string
}

type AppDataLocatedNamed struct {
	Location Location
	Name     string
}

func (AppDataBare) HasLocation() bool         { return false }
func (AppDataBare) HasName() bool             { return false }
func (AppDataBare) isAppDataBody()            {}
func (AppDataLocated) HasLocation() bool      { return true }
func (AppDataLocated) HasName() bool          { return false }
func (AppDataLocated) isAppDataBody()         {}
func (AppDataNamed) HasLocation() bool        { return false }
func (AppDataNamed) HasName() bool            { return true }
func (AppDataNamed) isAppDataBody()           {}
func (AppDataLocatedNamed) HasLocation() bool { return true }
func (AppDataLocatedNamed) HasName() bool     { return true }
func (AppDataLocatedNamed) isAppDataBody()    {}

func newAppDataBody(loc *Location, name *string) AppDataBody {
	switch {
	case loc != nil && name != nil:
		return AppDataLocatedNamed{Location: *loc, Name: *name}
	case loc != nil:
		return AppDataLocated{Location: *loc}
	case name != nil:
		return AppDataNamed{Name: *name}
	default:
		return AppDataBare{}
	}
}

// AppData is the application block of a NODEINFO payload.
type AppData struct {
	Flags    uint8
	Role     DeviceRole
	Body     AppDataBody
	Feature1 *uint16
	Feature2 *uint16
}

// Location returns the advertised location, if the body carries one.
func (a AppData) Location() (Location, bool) {
	switch b := a.Body.(type) {
	case AppDataLocated:
		return b.Location, true
	case AppDataLocatedNamed:
		return b.Location, true
	default:
		return Location{}, false
	}
}

// Name returns the advertised name, if the body carries one.
func (a AppData) Name() (string, bool) {
	switch b := a.Body.(type) {
	case AppDataNamed:
		return b.Name, true
	case AppDataLocatedNamed:
		return b.Name, true
	default:
		return "", false
	}
}

func (a AppData) HasLocation() bool { return a.Body != nil && a.Body.HasLocation() }
func (a AppData) HasName() bool     { return a.Body != nil && a.Body.HasName() }

func (a AppData) MarshalJSON() ([]byte, error) {
	out := struct {
		Flags       uint8     `json:"flags"`
		DeviceRole  uint8     `json:"deviceRole"`
		RoleName    string    `json:"deviceRoleName"`
		HasLocation bool      `json:"hasLocation"`
		HasName     bool      `json:"hasName"`
		Location    *Location `json:"location,omitempty"`
		Name        *string   `json:"name,omitempty"`
		Feature1    *uint16   `json:"feature1,omitempty"`
		Feature2    *uint16   `json:"feature2,omitempty"`
	}{
		Flags:       a.Flags,
		DeviceRole:  uint8(a.Role),
		RoleName:    a.Role.String(),
		HasLocation: a.HasLocation(),
		HasName:     a.HasName(),
		Feature1:    a.Feature1,
		Feature2:    a.Feature2,
	}
	if loc, ok := a.Location(); ok {
		out.Location = &loc
	}
	if name, ok := a.Name(); ok {
		out.Name = &name
	}
	return json.Marshal(out)
}

// NodeInfo is a node identity advertisement. The signature is carried as
// opaque bytes and never verified. AppData is nil when the payload ends right
// after the signature.
type NodeInfo struct {
	PublicKey HexBytes `json:"publicKey"`
	Timestamp uint32   `json:"timestamp"`
	Signature HexBytes `json:"signature"`
	AppData   *AppData `json:"appData"`
}

func (*NodeInfo) PayloadType() PayloadType { return PayloadNodeInfo }
func (*NodeInfo) isDecoded()               {}

// DecodeNodeInfo reads a NODEINFO payload: 32-byte public key, uint32 LE
// timestamp, 64-byte signature and an optional app data block.
func DecodeNodeInfo(payload []byte) (*NodeInfo, error) {
	n, err := decodeNodeInfo(newCursor(payload, 0, nil))
	if err != nil {
		return n, *err
	}
	return n, nil
}

func decodeNodeInfo(c *cursor) (*NodeInfo, *FieldError) {
	n := &NodeInfo{}

	key, ok := c.take(PublicKeySize, "nodeinfo.public_key")
	if !ok {
		return n, truncated("nodeinfo", "public_key", c.pos())
	}
	n.PublicKey = HexBytes(key)

	ts, ok := c.u32("nodeinfo.timestamp")
	if !ok {
		return n, truncated("nodeinfo", "timestamp", c.pos())
	}
	n.Timestamp = ts

	sig, ok := c.take(SignatureSize, "nodeinfo.signature")
	if !ok {
		return n, truncated("nodeinfo", "signature", c.pos())
	}
	n.Signature = HexBytes(sig)

	if c.remaining() == 0 {
		return n, nil
	}
	ad, err := decodeAppData(c)
	n.AppData = ad
	return n, err
}

// decodeAppData lets the flag bits decide which optional fields follow, in
// wire order: location, feature1, feature2, name. A field whose bit is set but
// whose bytes are missing is left out of the body and reported.
func decodeAppData(c *cursor) (*AppData, *FieldError) {
	flags, _ := c.u8("app_data.flags")
	ad := &AppData{Flags: flags, Role: DeviceRole(flags & FlagRoleMask)}

	var (
		loc  *Location
		name *string
	)
	finish := func(err *FieldError) (*AppData, *FieldError) {
		ad.Body = newAppDataBody(loc, name)
		return ad, err
	}

	if flags&FlagHasLocation != 0 {
		lat, ok := c.i32("app_data.latitude")
		if !ok {
			return finish(truncated("app_data", "latitude", c.pos()))
		}
		lon, ok := c.i32("app_data.longitude")
		if !ok {
			return finish(truncated("app_data", "longitude", c.pos()))
		}
		loc = &Location{
			Latitude:  float64(lat) / LocationScale,
			Longitude: float64(lon) / LocationScale,
		}
	}
	if flags&FlagHasFeature1 != 0 {
		f, ok := c.u16("app_data.feature1")
		if !ok {
			return finish(truncated("app_data", "feature1", c.pos()))
		}
		ad.Feature1 = &f
	}
	if flags&FlagHasFeature2 != 0 {
		f, ok := c.u16("app_data.feature2")
		if !ok {
			return finish(truncated("app_data", "feature2", c.pos()))
		}
		ad.Feature2 = &f
	}
	if flags&FlagHasName != 0 {
		s := decodeName(c.rest("app_data.name"))
		name = &s
	}
	return finish(nil)
}

// decodeName is best-effort: trailing NULs are trimmed; valid UTF-8 keeps its
// printable runes, anything else is read as ASCII. Everything unprintable
// becomes '?'.
func decodeName(b []byte) string {
	b = bytes.TrimRight(b, "\x00")
	if utf8.Valid(b) {
		return strings.Map(func(r rune) rune {
			if unicode.IsPrint(r) {
				return r
			}
			return '?'
		}, string(b))
	}
	out := make([]byte, len(b))
	for i, ch := range b {
		if isPrintableASCII(ch) {
			out[i] = ch
		} else {
			out[i] = '?'
		}
	}
	return string(out)
}
