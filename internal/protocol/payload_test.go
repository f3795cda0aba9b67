package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func sampleNodeInfo(ad *AppData) NodeInfo {
	return NodeInfo{
		PublicKey: HexBytes(bytes.Repeat([]byte{0xAA}, PublicKeySize)),
		Timestamp: 1700000000,
		Signature: HexBytes(bytes.Repeat([]byte{0x55}, SignatureSize)),
		AppData:   ad,
	}
}

func TestAppDataPresenceCombinations(t *testing.T) {
	loc := Location{Latitude: 12.345678, Longitude: -98.765432}
	cases := []struct {
		name string
		body AppDataBody
	}{
		{"bare", AppDataBare{}},
		{"located", AppDataLocated{Location: loc}},
		{"named", AppDataNamed{Name: "relay-01"}},
		{"located-named", AppDataLocatedNamed{Location: loc, Name: "relay-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := sampleNodeInfo(&AppData{Role: RoleCompanion, Body: tc.body, Feature2: ptr[uint16](0x0102)})
			payload, err := EncodeNodeInfo(in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			out, err := DecodeNodeInfo(payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			ad := out.AppData
			if ad.Body != tc.body {
				t.Fatalf("body=%#v want %#v", ad.Body, tc.body)
			}
			if ad.HasLocation() != tc.body.HasLocation() || ad.HasName() != tc.body.HasName() {
				t.Fatalf("presence flags disagree with body")
			}
			if _, ok := ad.Location(); ok != (ad.Flags&FlagHasLocation != 0) {
				t.Fatalf("location bit mismatch flags=%#x", ad.Flags)
			}
			if _, ok := ad.Name(); ok != (ad.Flags&FlagHasName != 0) {
				t.Fatalf("name bit mismatch flags=%#x", ad.Flags)
			}
			if ad.Role != RoleCompanion || ad.Feature1 != nil || ad.Feature2 == nil || *ad.Feature2 != 0x0102 {
				t.Fatalf("unexpected app data: %+v", ad)
			}
		})
	}
}

func TestDecodeNodeInfoTruncated(t *testing.T) {
	full, err := EncodeNodeInfo(sampleNodeInfo(&AppData{
		Role: RoleRoomServer,
		Body: AppDataLocatedNamed{Location: Location{Latitude: 1, Longitude: 2}, Name: "room"},
	}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	n, err := DecodeNodeInfo(full[:20])
	if !errors.Is(err, ErrTruncatedField) || n == nil || n.PublicKey != nil {
		t.Fatalf("short key: n=%+v err=%v", n, err)
	}

	n, err = DecodeNodeInfo(full[:PublicKeySize+4+SignatureSize])
	if err != nil || n.AppData != nil {
		t.Fatalf("no app data: n=%+v err=%v", n, err)
	}

	// flags plus half a latitude
	cut := PublicKeySize + 4 + SignatureSize + 3
	n, err = DecodeNodeInfo(full[:cut])
	var fe FieldError
	if !errors.As(err, &fe) || fe.Field != "latitude" {
		t.Fatalf("err=%v", err)
	}
	if n.AppData == nil || n.AppData.Role != RoleRoomServer || n.AppData.HasLocation() || n.AppData.HasName() {
		t.Fatalf("partial app data=%+v", n.AppData)
	}
}

func TestDecodeNameSanitizes(t *testing.T) {
	if got := decodeName([]byte("node\x01one\x00\x00")); got != "node?one" {
		t.Fatalf("got %q", got)
	}
	if got := decodeName([]byte{'a', 0xFF, 'b'}); got != "a?b" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodePosition(t *testing.T) {
	in := Position{
		Latitude:   ptr(47.6062095),
		Longitude:  ptr(-122.3320708),
		Altitude:   ptr[int32](56),
		Satellites: ptr[uint8](9),
	}
	payload, err := EncodePosition(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(payload) != 13 {
		t.Fatalf("payload len=%d", len(payload))
	}
	out, err := DecodePosition(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *out.Latitude != 47.6062095 || *out.Longitude != -122.3320708 || *out.Altitude != 56 {
		t.Fatalf("position=%+v", out)
	}
	if out.Satellites == nil || *out.Satellites != 9 || out.Precision != nil {
		t.Fatalf("optional fields: sats=%v prec=%v", out.Satellites, out.Precision)
	}

	short, err := DecodePosition(payload[:6])
	if !errors.Is(err, ErrTruncatedField) {
		t.Fatalf("expected truncation, got %v", err)
	}
	if short.Latitude == nil || short.Longitude != nil || short.Altitude != nil {
		t.Fatalf("partial position=%+v", short)
	}

	frame, err := Encode(Frame{PayloadType: PayloadPosition, Payload: payload[:6]})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	p := DecodeBytes(frame)
	if p.IsValid || p.Payload.Complete || p.Payload.Decoded == nil {
		t.Fatalf("partial position packet: valid=%v complete=%v", p.IsValid, p.Payload.Complete)
	}
}

func TestTextMessage(t *testing.T) {
	cases := []struct {
		in        []byte
		encrypted bool
		text      string
	}{
		{[]byte("hello mesh\x00\x00"), false, "hello mesh"},
		{[]byte("line one\r\n\tline two"), false, "line one\r\n\tline two"},
		{[]byte("héllo wörld"), false, "héllo wörld"},
		{[]byte{0x00, 0x00}, true, ""},
		{[]byte{0x9C, 0x01, 0xFE, 0x41}, true, ""},
		{[]byte("bell\x07"), true, ""},
	}
	for _, tc := range cases {
		m, err := DecodeTextMessage(tc.in)
		if err != nil {
			t.Fatalf("decode %q: %v", tc.in, err)
		}
		if m.Encrypted != tc.encrypted {
			t.Fatalf("%q encrypted=%v", tc.in, m.Encrypted)
		}
		if tc.encrypted {
			if m.Text != "" || m.DataHex != upperHex(tc.in) {
				t.Fatalf("%q: %+v", tc.in, m)
			}
			continue
		}
		if m.Text != tc.text || m.DataHex != "" {
			t.Fatalf("%q: %+v", tc.in, m)
		}
	}
}

func TestDecodeTelemetry(t *testing.T) {
	tm, err := DecodeTelemetry([]byte{0x08, 0x96, 0x01})
	if err != nil || tm.DataHex != "089601" {
		t.Fatalf("telemetry=%+v err=%v", tm, err)
	}
}

func TestExtractText(t *testing.T) {
	b := []byte("ab\x00long run\x01xyz!\x02tail")
	if got := ExtractText(b, 4); strings.Join(got, "|") != "long run|xyz!|tail" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractText(b, 0); len(got) != 3 {
		t.Fatalf("default min run: %q", got)
	}
	if got := ExtractText(b, 5); strings.Join(got, "|") != "long run" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractText(nil, 4); got != nil {
		t.Fatalf("got %q", got)
	}
	if LongestText([]string{"abcd", "wxyz", "ab"}) != "abcd" || LongestText(nil) != "" {
		t.Fatalf("longest text tie-break")
	}
}

func TestDecodeMinTextRunOption(t *testing.T) {
	frame, _ := Encode(Frame{PayloadType: 6, Payload: []byte("abc\x00defgh")})
	p := DecodeBytes(frame, WithMinTextRun(3))
	if strings.Join(p.Strings, "|") != "abc|defgh" {
		t.Fatalf("strings=%q", p.Strings)
	}
}

func TestDetailedShape(t *testing.T) {
	d, err := DecodeDetailed(advertHex)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(raw)
	order := []string{
		`"messageHash":"75676172"`, `"routeType":0`, `"payloadType":1`, `"payloadVersion":0`,
		`"pathLength":0`, `"path":null`, `"totalBytes":134`, `"isValid":true`,
		`"payload":{"raw":"7E76`, `"decoded":{"type":1,"version":0`, `"publicKey":"7E7662`,
		`"timestamp":1758455660`, `"signature":"2E5840`,
		`"appData":{"flags":146,"deviceRole":2,"hasLocation":true,"hasName":true,` +
			`"location":{"latitude":47.543968,"longitude":-122.108616},"name":"WW7STR/PugetMesh Cougar"}`,
	}
	last := -1
	for _, key := range order {
		i := strings.Index(s, key)
		if i < 0 {
			t.Fatalf("missing %s in %s", key, s)
		}
		if i < last {
			t.Fatalf("%s out of order in %s", key, s)
		}
		last = i
	}
	if strings.Contains(s, `"structure"`) {
		t.Fatalf("structure rendered without option")
	}

	d, _ = DecodeDetailed("1100", WithStructure())
	raw, _ = json.Marshal(d)
	if !strings.Contains(string(raw), `"payload":{"raw":"","decoded":null}`) || !strings.Contains(string(raw), `"structure":[`) {
		t.Fatalf("truncated detailed=%s", raw)
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	bad := []Frame{
		{PayloadType: 8},
		{HopLimit: 16},
		{Path: make([]NodeID, MaxPathLength+1)},
	}
	for _, f := range bad {
		if _, err := Encode(f); !errors.Is(err, ErrInvalidFrame) {
			t.Fatalf("frame %+v: err=%v", f, err)
		}
	}
	if _, err := EncodeNodeInfo(NodeInfo{PublicKey: HexBytes{1}}); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("short key accepted")
	}
	if _, err := EncodePosition(Position{Latitude: ptr(1.0)}); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("incomplete position accepted")
	}

	frame, err := Encode(Frame{PayloadType: PayloadTextMessage, WantResponse: true, HopLimit: 3, Path: []NodeID{1, 2}, Payload: []byte("hi")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p := DecodeBytes(frame)
	if p.Header.RouteType != RouteWantResponse || p.Header.HopLimit != 3 || p.Header.PayloadVersion != 0 || len(p.Routing.Path) != 2 {
		t.Fatalf("round trip header=%+v routing=%+v", p.Header, p.Routing)
	}
}
