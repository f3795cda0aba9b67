package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/meshdecode/internal/protocol"
	"github.com/danmuck/meshdecode/internal/protocol/frame"
	"github.com/danmuck/meshdecode/internal/stream"
	"github.com/danmuck/meshdecode/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func TestPipelineRunCountsLines(t *testing.T) {
	testlog.Start(t)

	in := strings.Join([]string{
		"# capture",
		"0400686921",
		"",
		"1100",
		"not-hex",
		strings.Repeat("AB", 40),
		"0x0201AA0102",
	}, "\n")

	p := &Pipeline{Limits: frame.Limits{MaxLineBytes: 64}, Logger: zerolog.Nop()}
	stats, err := p.Run(context.Background(), strings.NewReader(in), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := Stats{Lines: 5, Decoded: 3, Invalid: 1, Rejected: 2}
	if stats != want {
		t.Fatalf("stats=%+v want %+v", stats, want)
	}
}

func TestPipelineRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Pipeline{Logger: zerolog.Nop()}
	if _, err := p.Run(ctx, strings.NewReader("0400686921\n"), "test"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPipelinePublishesAndSinks(t *testing.T) {
	testlog.Start(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := stream.NewHub()
	go hub.Run(ctx)
	events := hub.SubscribeWithBuffer(8)

	var out bytes.Buffer
	fixed := time.Date(2025, 9, 21, 12, 0, 0, 0, time.UTC)
	p := &Pipeline{
		Options: []protocol.Option{protocol.WithStructure()},
		Hub:     hub,
		Sinks:   []Sink{NewJSONLWriter(&out)},
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return fixed },
	}

	ev, err := p.Handle("serial", "0400686921")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if ev.Packet == nil || ev.Packet.Structure == nil {
		t.Fatalf("options not applied: %+v", ev.Packet)
	}
	if _, err := p.Handle("serial", "zz"); !errors.Is(err, protocol.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}

	select {
	case got := <-events:
		if got.Hex != "0400686921" {
			t.Fatalf("published=%+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not published")
	}

	if n := strings.Count(out.String(), "\n"); n != 1 {
		t.Fatalf("rejected line reached the sink: %s", out.String())
	}
	sc := bufio.NewScanner(&out)
	if !sc.Scan() {
		t.Fatalf("no jsonl line")
	}
	var rec map[string]any
	if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["ts"] != "2025-09-21T12:00:00Z" || rec["source"] != "serial" || rec["hex"] != "0400686921" {
		t.Fatalf("record=%v", rec)
	}
	pkt, ok := rec["packet"].(map[string]any)
	if !ok || pkt["isValid"] != true {
		t.Fatalf("packet=%v", rec["packet"])
	}
}

func TestPipelineSinksKeepEveryEventUnderBurst(t *testing.T) {
	testlog.Start(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := stream.NewHub(stream.WithBroadcastBuffer(1), stream.WithClientBuffer(1))
	go hub.Run(ctx)
	// Nobody reads this subscriber, so the hub drops nearly everything.
	_ = hub.Subscribe()

	const lines = 5000
	in := strings.Repeat("0400686921\n", lines)

	var out bytes.Buffer
	p := &Pipeline{Hub: hub, Sinks: []Sink{NewJSONLWriter(&out)}, Logger: zerolog.Nop()}
	stats, err := p.Run(ctx, strings.NewReader(in), "burst")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Decoded != lines {
		t.Fatalf("decoded=%d want %d", stats.Decoded, lines)
	}
	if n := strings.Count(out.String(), "\n"); n != lines {
		t.Fatalf("sink lines=%d want %d", n, lines)
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Write(stream.Event) error {
	f.calls++
	return errors.New("disk full")
}

func TestPipelineSinkErrorDoesNotRejectPacket(t *testing.T) {
	bad := &failingSink{}
	var out bytes.Buffer
	p := &Pipeline{Sinks: []Sink{bad, NewJSONLWriter(&out)}, Logger: zerolog.Nop()}
	if _, err := p.Handle("test", "0400686921"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if bad.calls != 1 || out.Len() == 0 {
		t.Fatalf("calls=%d out=%q", bad.calls, out.String())
	}
}

func TestJSONLWriterNullPacket(t *testing.T) {
	var out bytes.Buffer
	w := NewJSONLWriter(&out)
	if err := w.Write(stream.Event{Source: "a", Hex: "00"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(out.String(), `"packet":null`) {
		t.Fatalf("missing null packet: %s", out.String())
	}
}
