package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/meshdecode/internal/config"
	"github.com/danmuck/meshdecode/internal/stream"
	"github.com/danmuck/meshdecode/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

const advertHex = "11007E7662676F7F0850A8A355BAAFBFC1EB7B4174C340442D7D7161C9474A2C" +
	"94006CE7CF682E58408DD8FCC51906ECA98EBF94A037886BDADE7ECD09FD92B8" +
	"39491DF3809C9454F5286D1D3370AC31A34593D569E9A042A3B41FD331DFFB7E" +
	"18599CE1E60992A076D50238C5B8F85757375354522F50756765744D65736820" +
	"436F75676172"

func newTestServer(t *testing.T, hub *stream.Hub) *Server {
	t.Helper()
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	s := New(config.DefaultConfig(), hub)
	s.RegisterRoutes()
	return s
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)

	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode body: %v body=%s", err, rr.Body.String())
		}
	}
	return rr, out
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	rr, body := do(t, s, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK || body["status"] != "ok" || body["service"] != ServiceName {
		t.Fatalf("health: %d %v", rr.Code, body)
	}
	rr, body = do(t, s, http.MethodGet, "/ready", "")
	if rr.Code != http.StatusOK || body["ready"] != true {
		t.Fatalf("ready: %d %v", rr.Code, body)
	}
}

func TestReadyReportsStoppedHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := stream.NewHub()
	go hub.Run(ctx)
	s := newTestServer(t, hub)

	cancel()
	<-hub.Done()
	rr, body := do(t, s, http.MethodGet, "/ready", "")
	if rr.Code != http.StatusServiceUnavailable || body["ready"] != false {
		t.Fatalf("ready after stop: %d %v", rr.Code, body)
	}
}

func TestDecodeEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rr, body := do(t, s, http.MethodPost, "/decode", `{"hex":"`+advertHex+`","structure":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("decode: %d %s", rr.Code, rr.Body.String())
	}
	if body["isValid"] != true || body["totalBytes"] != float64(134) {
		t.Fatalf("decode body: %v", body)
	}
	header, _ := body["header"].(map[string]any)
	if header["payloadType"] != "NODEINFO" || header["hopLimit"] != float64(1) {
		t.Fatalf("header: %v", header)
	}
	if _, ok := body["structure"].([]any); !ok {
		t.Fatalf("structure missing: %v", body)
	}

	rr, _ = do(t, s, http.MethodPost, "/decode/detailed", `{"hex":"`+advertHex+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("detailed: %d %s", rr.Code, rr.Body.String())
	}
	raw := rr.Body.Bytes()
	if !bytes.HasPrefix(raw, []byte(`{"messageHash":"75676172","routeType":0,"payloadType":1`)) {
		t.Fatalf("detailed body: %s", raw)
	}
	if !bytes.Contains(raw, []byte(`"name":"WW7STR/PugetMesh Cougar"`)) {
		t.Fatalf("detailed name missing: %s", raw)
	}

	rr, body = do(t, s, http.MethodPost, "/decode", `{"hex":"1100"}`)
	if rr.Code != http.StatusOK || body["isValid"] != false {
		t.Fatalf("partial decode: %d %v", rr.Code, body)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{`{"hex":"ABC"}`, `{"hex":"GG"}`, `not json`} {
		rr, out := do(t, s, http.MethodPost, "/decode", body)
		if rr.Code != http.StatusBadRequest || out["error"] == nil {
			t.Fatalf("body %s: %d %v", body, rr.Code, out)
		}
	}
}

func TestDecodeEmptyHexIsInvalidNotRejected(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{`{}`, `{"hex":""}`, `{"hex":"  "}`} {
		rr, out := do(t, s, http.MethodPost, "/decode", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("body %s: %d %s", body, rr.Code, rr.Body.String())
		}
		if out["isValid"] != false || out["totalBytes"] != float64(0) {
			t.Fatalf("body %s: %v", body, out)
		}
	}
}

func TestProbeEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	// field 1 varint 150, field 2 bytes "hi", then a dangling tag
	rr, body := do(t, s, http.MethodPost, "/probe", `{"hex":"089601120268690A"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("probe: %d %s", rr.Code, rr.Body.String())
	}
	fields, _ := body["fields"].([]any)
	if len(fields) != 2 {
		t.Fatalf("fields: %v", body)
	}
	first, _ := fields[0].(map[string]any)
	if first["field"] != float64(1) || first["varint"] != float64(150) {
		t.Fatalf("first field: %v", first)
	}
	if body["error"] == nil {
		t.Fatalf("expected probe error for trailing tag: %v", body)
	}

	rr, _ = do(t, s, http.MethodPost, "/probe", `{"hex":"0"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("probe malformed: %d", rr.Code)
	}
}

func TestDecodePublishesAndMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := stream.NewHub()
	go hub.Run(ctx)
	events := hub.SubscribeWithBuffer(4)

	s := newTestServer(t, hub)
	if rr, _ := do(t, s, http.MethodPost, "/decode", `{"hex":"0400686921"}`); rr.Code != http.StatusOK {
		t.Fatalf("decode: %d", rr.Code)
	}
	select {
	case ev := <-events:
		if ev.Source != "http" || ev.Packet == nil {
			t.Fatalf("event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("decode was not published")
	}

	rr, _ := do(t, s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "meshdecode_packets_total") {
		t.Fatalf("metrics missing packet counter")
	}

	routes := map[string]bool{}
	for _, r := range s.HTTPRouter().Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	if !routes["GET /ws"] {
		t.Fatalf("ws route not registered: %v", routes)
	}
}

type recordingSink struct{ hexes []string }

func (r *recordingSink) Write(ev stream.Event) error {
	r.hexes = append(r.hexes, ev.Hex)
	return nil
}

func TestDecodeWritesSinks(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	sink := &recordingSink{}
	s := New(config.DefaultConfig(), nil, sink)
	s.RegisterRoutes()

	do(t, s, http.MethodPost, "/decode", `{"hex":"0400686921"}`)
	do(t, s, http.MethodPost, "/decode", `{"hex":"zz"}`)
	do(t, s, http.MethodPost, "/decode/detailed", `{"hex":"1100"}`)
	if len(sink.hexes) != 2 || sink.hexes[0] != "0400686921" || sink.hexes[1] != "1100" {
		t.Fatalf("sink saw %v", sink.hexes)
	}
}
