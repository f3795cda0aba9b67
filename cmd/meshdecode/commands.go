package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/danmuck/meshdecode/internal/config"
	"github.com/danmuck/meshdecode/internal/ingest"
	"github.com/danmuck/meshdecode/internal/logging"
	"github.com/danmuck/meshdecode/internal/observability"
	"github.com/danmuck/meshdecode/internal/protocol"
	"github.com/danmuck/meshdecode/internal/protocol/wire"
	"github.com/danmuck/meshdecode/internal/server"
	"github.com/danmuck/meshdecode/internal/stream"
	"github.com/rs/zerolog/log"
)

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func isUsage(err error) bool {
	var u usageError
	return errors.As(err, &u) || errors.Is(err, flag.ErrHelp)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{err.Error()}
	}
	return nil
}

// hexArg joins positional args, or reads stdin when there are none.
func hexArg(fs *flag.FlagSet, stdin io.Reader) (string, error) {
	if fs.NArg() > 0 {
		return strings.Join(fs.Args(), ""), nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", usageError{"missing hex packet"}
	}
	return string(b), nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDecode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("decode")
	structure := fs.Bool("structure", false, "include the byte-level field breakdown")
	detailed := fs.Bool("detailed", false, "print the flat reference-compatible shape")
	minRun := fs.Int("min-run", protocol.DefaultMinTextRun, "shortest printable run to report")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	in, err := hexArg(fs, stdin)
	if err != nil {
		return err
	}

	opts := []protocol.Option{protocol.WithMinTextRun(*minRun)}
	if *structure {
		opts = append(opts, protocol.WithStructure())
	}
	pkt, err := protocol.Decode(in, opts...)
	if err != nil {
		return err
	}
	if *detailed {
		return writeJSON(stdout, pkt.Detailed())
	}
	return writeJSON(stdout, pkt)
}

func runProbe(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("probe")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	in, err := hexArg(fs, stdin)
	if err != nil {
		return err
	}
	buf, err := protocol.ParseHex(in, 0)
	if err != nil {
		return err
	}
	fields, perr := wire.ProbeFields(buf)
	if err := writeJSON(stdout, fields); err != nil {
		return err
	}
	return perr
}

func runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	path := fs.String("c", "", "config file (.toml or .yaml)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	logging.ConfigureRuntime()
	observability.InitLogger("meshdecode")

	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}
	log.Info().Str("path", *path).Str("addr", cfg.Server.Addr).Msg("loaded config")

	ctx, cancel := context.WithCancel(ctx)
	hub := stream.NewHub()
	go hub.Run(ctx)

	var (
		wg      sync.WaitGroup
		closers []func()
	)
	defer func() {
		cancel()
		wg.Wait()
		for _, c := range closers {
			c()
		}
	}()

	var sinks []ingest.Sink
	if cfg.Ingest.JSONLPath != "" {
		sink, closeSink, err := openJSONLSink(cfg.Ingest.JSONLPath)
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
		closers = append(closers, closeSink)
	}
	if cfg.Ingest.SerialDevice != "" {
		port, err := ingest.OpenSerial(ctx, cfg.Ingest.SerialDevice, cfg.Ingest.SerialBaud, cfg.Ingest.ReadTimeout)
		if err != nil {
			return err
		}
		closers = append(closers, func() { _ = port.Close() })
		p := &ingest.Pipeline{Options: cfg.DecodeOptions(), Limits: cfg.FrameLimits(), Hub: hub, Sinks: sinks, Logger: log.Logger}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(ctx, port, cfg.Ingest.SerialDevice); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("device", cfg.Ingest.SerialDevice).Msg("serial ingest stopped")
			}
		}()
	}

	return server.New(cfg, hub, sinks...).Serve(ctx)
}

// openJSONLSink appends to path. The returned func closes the file.
func openJSONLSink(path string) (*ingest.JSONLWriter, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open jsonl sink: %w", err)
	}
	return ingest.NewJSONLWriter(f), func() { _ = f.Close() }, nil
}

func runWatch(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("watch")
	path := fs.String("c", "", "config file (.toml or .yaml)")
	device := fs.String("serial", "", "serial device; stdin when empty")
	baud := fs.Int("baud", 0, "serial baud rate (config default when 0)")
	jsonl := fs.String("jsonl", "", "also append events to this JSONL file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	logging.ConfigureRuntime()
	observability.InitLogger("meshdecode")

	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}
	if *device != "" {
		cfg.Ingest.SerialDevice = *device
	}
	if *baud > 0 {
		cfg.Ingest.SerialBaud = *baud
	}
	if *jsonl != "" {
		cfg.Ingest.JSONLPath = *jsonl
	}

	sinks := []ingest.Sink{ingest.NewJSONLWriter(stdout)}
	if cfg.Ingest.JSONLPath != "" {
		sink, closeSink, err := openJSONLSink(cfg.Ingest.JSONLPath)
		if err != nil {
			return err
		}
		defer closeSink()
		sinks = append(sinks, sink)
	}

	src, name := stdin, "stdin"
	if cfg.Ingest.SerialDevice != "" {
		port, err := ingest.OpenSerial(ctx, cfg.Ingest.SerialDevice, cfg.Ingest.SerialBaud, cfg.Ingest.ReadTimeout)
		if err != nil {
			return err
		}
		defer port.Close()
		src, name = port, cfg.Ingest.SerialDevice
	}

	p := &ingest.Pipeline{Options: cfg.DecodeOptions(), Limits: cfg.FrameLimits(), Sinks: sinks, Logger: log.Logger}
	stats, err := p.Run(ctx, src, name)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Int("lines", stats.Lines).Int("rejected", stats.Rejected).Msg("watch finished")
	return err
}

func runPorts(stdout io.Writer) error {
	ports, err := ingest.SerialPorts()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func runConfig(args []string, stdout io.Writer) error {
	fs := newFlagSet("config")
	output := fs.String("output", "meshdecode.toml", "output path for the config template")
	validate := fs.Bool("validate", false, "validate an existing config file")
	input := fs.String("input", "", "config path for validation (defaults to -output)")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *validate {
		path := *input
		if path == "" {
			path = *output
		}
		if _, err := config.Load(path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "validated config at %s\n", path)
		return nil
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote config template to %s\n", *output)
	return nil
}
