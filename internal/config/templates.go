package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter config in the given format ("toml" or "yaml").
func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "toml":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

// WriteTemplate writes the template matching path's extension.
func WriteTemplate(path string, overwrite bool) error {
	template, err := Template(formatOf(path))
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `[decoder]
min_text_run = 4
max_packet_bytes = 1024
structure = false

[server]
addr = ":8080"
cors_origins = ["http://localhost:3000"]
enable_ws = true

[ingest]
# serial_device = "/dev/ttyUSB0"
serial_baud = 115200
read_timeout = "1s"
max_line_bytes = 4096
# jsonl_path = "packets.jsonl"
`

const yamlTemplate = `decoder:
  min_text_run: 4
  max_packet_bytes: 1024
  structure: false

server:
  addr: ":8080"
  cors_origins:
    - "http://localhost:3000"
  enable_ws: true

ingest:
  # serial_device: /dev/ttyUSB0
  serial_baud: 115200
  read_timeout: 1s
  max_line_bytes: 4096
  # jsonl_path: packets.jsonl
`
