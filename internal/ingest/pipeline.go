// Package ingest turns line-oriented hex sources into decoded stream events.
package ingest

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/danmuck/meshdecode/internal/observability"
	"github.com/danmuck/meshdecode/internal/protocol"
	"github.com/danmuck/meshdecode/internal/protocol/frame"
	"github.com/danmuck/meshdecode/internal/stream"
	"github.com/rs/zerolog"
)

// Sink receives every decoded event synchronously, in order.
type Sink interface {
	Write(ev stream.Event) error
}

// Pipeline decodes packets, records metrics and logs, writes the result to
// each Sink and publishes it to Hub when one is set. Sinks see every event;
// hub subscribers may miss some under load. A zero Pipeline is usable.
type Pipeline struct {
	Options []protocol.Option
	Limits  frame.Limits
	Hub     *stream.Hub
	Sinks   []Sink
	Logger  zerolog.Logger
	Now     func() time.Time
}

type Stats struct {
	Lines    int `json:"lines"`
	Decoded  int `json:"decoded"`
	Invalid  int `json:"invalid"`
	Rejected int `json:"rejected"`
}

// Handle decodes one hex packet from source; extra options apply to this
// call only. The error is non-nil only when the input was rejected as
// malformed.
func (p *Pipeline) Handle(source, hexStr string, extra ...protocol.Option) (stream.Event, error) {
	ev := stream.Event{Time: p.now(), Source: source, Hex: hexStr}

	opts := p.Options
	if len(extra) > 0 {
		opts = append(append([]protocol.Option(nil), p.Options...), extra...)
	}
	pkt, err := protocol.Decode(hexStr, opts...)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrPacketTooLarge) {
			reason = "too_large"
		}
		observability.RecordReject(reason)
		p.Logger.Warn().Str("source", source).Str("reason", reason).Err(err).Msg("packet_rejected")
		return ev, err
	}
	ev.Packet = pkt

	payloadType := pkt.Header.PayloadType.String()
	observability.RecordPacket(payloadType, pkt.IsValid, pkt.TotalBytes)
	p.Logger.Debug().
		Str("source", source).
		Str("payload_type", payloadType).
		Bool("valid", pkt.IsValid).
		Int("bytes", pkt.TotalBytes).
		Int("issues", len(pkt.Issues)).
		Msg("packet_decoded")

	for _, sink := range p.Sinks {
		if err := sink.Write(ev); err != nil {
			p.Logger.Error().Str("source", source).Err(err).Msg("sink_write_failed")
		}
	}
	if p.Hub != nil {
		p.Hub.Publish(ev)
	}
	return ev, nil
}

// Run reads lines from r until EOF, a read error or ctx ends. Bad lines are
// counted and skipped; only transport errors stop the loop.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, source string) (Stats, error) {
	var stats Stats
	lr := frame.NewLineReader(r, p.Limits)
	p.Logger.Info().Str("source", source).Msg("ingest_started")
	defer func() {
		p.Logger.Info().
			Str("source", source).
			Int("lines", stats.Lines).
			Int("decoded", stats.Decoded).
			Int("invalid", stats.Invalid).
			Int("rejected", stats.Rejected).
			Msg("ingest_stopped")
	}()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line, err := lr.ReadLine()
		switch {
		case err == nil:
		case errors.Is(err, frame.ErrEmptyLine):
			continue
		case errors.Is(err, frame.ErrLineTooLong):
			stats.Lines++
			stats.Rejected++
			observability.RecordReject("line_too_long")
			p.Logger.Warn().Str("source", source).Msg("line_too_long")
			continue
		case errors.Is(err, io.EOF):
			return stats, nil
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			return stats, err
		}

		stats.Lines++
		ev, err := p.Handle(source, line)
		if err != nil {
			stats.Rejected++
			continue
		}
		stats.Decoded++
		if !ev.Packet.IsValid {
			stats.Invalid++
		}
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
