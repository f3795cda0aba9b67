package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/meshdecode/internal/protocol"
	"github.com/danmuck/meshdecode/internal/protocol/frame"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Decoder DecoderConfig
	Server  ServerConfig
	Ingest  IngestConfig
}

type DecoderConfig struct {
	MinTextRun     int
	MaxPacketBytes int
	Structure      bool
}

type ServerConfig struct {
	Addr        string
	CorsOrigins []string
	EnableWS    bool
}

type IngestConfig struct {
	SerialDevice string
	SerialBaud   int
	ReadTimeout  time.Duration
	MaxLineBytes int
	JSONLPath    string
}

func DefaultConfig() Config {
	return Config{
		Decoder: DecoderConfig{
			MinTextRun:     protocol.DefaultMinTextRun,
			MaxPacketBytes: protocol.DefaultMaxPacketBytes,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			CorsOrigins: []string{"http://localhost:3000"},
			EnableWS:    true,
		},
		Ingest: IngestConfig{
			SerialBaud:   115200,
			ReadTimeout:  time.Second,
			MaxLineBytes: frame.DefaultLimits().MaxLineBytes,
		},
	}
}

// file key mapping shared by the TOML and YAML loaders.
type fileConfig struct {
	Decoder struct {
		MinTextRun     int  `toml:"min_text_run" yaml:"min_text_run"`
		MaxPacketBytes int  `toml:"max_packet_bytes" yaml:"max_packet_bytes"`
		Structure      bool `toml:"structure" yaml:"structure"`
	} `toml:"decoder" yaml:"decoder"`
	Server struct {
		Addr        string   `toml:"addr" yaml:"addr"`
		CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
		EnableWS    bool     `toml:"enable_ws" yaml:"enable_ws"`
	} `toml:"server" yaml:"server"`
	Ingest struct {
		SerialDevice string `toml:"serial_device" yaml:"serial_device"`
		SerialBaud   int    `toml:"serial_baud" yaml:"serial_baud"`
		ReadTimeout  string `toml:"read_timeout" yaml:"read_timeout"`
		MaxLineBytes int    `toml:"max_line_bytes" yaml:"max_line_bytes"`
		JSONLPath    string `toml:"jsonl_path" yaml:"jsonl_path"`
	} `toml:"ingest" yaml:"ingest"`
}

// Load reads a TOML or YAML file (by extension) over DefaultConfig and
// validates the result.
func Load(path string) (Config, error) {
	var (
		cfg Config
		err error
	)
	switch formatOf(path) {
	case "yaml":
		cfg, err = loadYAML(path)
	default:
		cfg, err = loadTOML(path)
	}
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

func loadTOML(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %s", path, undecoded[0])
	}

	if meta.IsDefined("decoder", "min_text_run") {
		cfg.Decoder.MinTextRun = raw.Decoder.MinTextRun
	}
	if meta.IsDefined("decoder", "max_packet_bytes") {
		cfg.Decoder.MaxPacketBytes = raw.Decoder.MaxPacketBytes
	}
	if meta.IsDefined("decoder", "structure") {
		cfg.Decoder.Structure = raw.Decoder.Structure
	}
	if meta.IsDefined("server", "addr") {
		cfg.Server.Addr = strings.TrimSpace(raw.Server.Addr)
	}
	if meta.IsDefined("server", "cors_origins") {
		cfg.Server.CorsOrigins = raw.Server.CorsOrigins
	}
	if meta.IsDefined("server", "enable_ws") {
		cfg.Server.EnableWS = raw.Server.EnableWS
	}
	if meta.IsDefined("ingest", "serial_device") {
		cfg.Ingest.SerialDevice = strings.TrimSpace(raw.Ingest.SerialDevice)
	}
	if meta.IsDefined("ingest", "serial_baud") {
		cfg.Ingest.SerialBaud = raw.Ingest.SerialBaud
	}
	if meta.IsDefined("ingest", "read_timeout") {
		d, err := parseDuration(raw.Ingest.ReadTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): ingest.read_timeout: %w", path, err)
		}
		cfg.Ingest.ReadTimeout = d
	}
	if meta.IsDefined("ingest", "max_line_bytes") {
		cfg.Ingest.MaxLineBytes = raw.Ingest.MaxLineBytes
	}
	if meta.IsDefined("ingest", "jsonl_path") {
		cfg.Ingest.JSONLPath = strings.TrimSpace(raw.Ingest.JSONLPath)
	}
	return cfg, nil
}

// loadYAML decodes onto a file struct seeded from the defaults; yaml.v3 leaves
// absent keys untouched, which gives the same overlay as IsDefined.
func loadYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	def := DefaultConfig()
	var raw fileConfig
	raw.Decoder.MinTextRun = def.Decoder.MinTextRun
	raw.Decoder.MaxPacketBytes = def.Decoder.MaxPacketBytes
	raw.Decoder.Structure = def.Decoder.Structure
	raw.Server.Addr = def.Server.Addr
	raw.Server.CorsOrigins = def.Server.CorsOrigins
	raw.Server.EnableWS = def.Server.EnableWS
	raw.Ingest.SerialBaud = def.Ingest.SerialBaud
	raw.Ingest.ReadTimeout = def.Ingest.ReadTimeout.String()
	raw.Ingest.MaxLineBytes = def.Ingest.MaxLineBytes

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	timeout, err := parseDuration(raw.Ingest.ReadTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): ingest.read_timeout: %w", path, err)
	}
	return Config{
		Decoder: DecoderConfig{
			MinTextRun:     raw.Decoder.MinTextRun,
			MaxPacketBytes: raw.Decoder.MaxPacketBytes,
			Structure:      raw.Decoder.Structure,
		},
		Server: ServerConfig{
			Addr:        strings.TrimSpace(raw.Server.Addr),
			CorsOrigins: raw.Server.CorsOrigins,
			EnableWS:    raw.Server.EnableWS,
		},
		Ingest: IngestConfig{
			SerialDevice: strings.TrimSpace(raw.Ingest.SerialDevice),
			SerialBaud:   raw.Ingest.SerialBaud,
			ReadTimeout:  timeout,
			MaxLineBytes: raw.Ingest.MaxLineBytes,
			JSONLPath:    strings.TrimSpace(raw.Ingest.JSONLPath),
		},
	}, nil
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Decoder.MinTextRun < 1 {
		return fmt.Errorf("decoder.min_text_run must be positive")
	}
	if c.Decoder.MaxPacketBytes < 1 {
		return fmt.Errorf("decoder.max_packet_bytes must be positive")
	}
	if c.Ingest.MaxLineBytes < 1 {
		return fmt.Errorf("ingest.max_line_bytes must be positive")
	}
	if c.Ingest.SerialDevice != "" && c.Ingest.SerialBaud < 1 {
		return fmt.Errorf("ingest.serial_baud must be positive when serial_device is set")
	}
	if c.Ingest.ReadTimeout < 0 {
		return fmt.Errorf("ingest.read_timeout must not be negative")
	}
	return nil
}

// DecodeOptions maps the decoder section onto protocol options.
func (c Config) DecodeOptions() []protocol.Option {
	opts := []protocol.Option{
		protocol.WithMinTextRun(c.Decoder.MinTextRun),
		protocol.WithMaxPacketBytes(c.Decoder.MaxPacketBytes),
	}
	if c.Decoder.Structure {
		opts = append(opts, protocol.WithStructure())
	}
	return opts
}

func (c Config) FrameLimits() frame.Limits {
	return frame.Limits{MaxLineBytes: c.Ingest.MaxLineBytes}
}
