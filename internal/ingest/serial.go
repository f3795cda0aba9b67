package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	serial "go.bug.st/serial"
)

// serialReader turns the port's read timeout into a poll so a blocked read
// notices ctx. A timed-out read returns (0, nil) from the port.
type serialReader struct {
	ctx  context.Context
	port serial.Port
}

// OpenSerial opens device at baud for line ingest. Reads return io.EOF once
// ctx is done; Close releases the port.
func OpenSerial(ctx context.Context, device string, baud int, readTimeout time.Duration) (io.ReadCloser, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serial %s read timeout: %w", device, err)
	}
	return &serialReader{ctx: ctx, port: port}, nil
}

func (s *serialReader) Read(p []byte) (int, error) {
	for {
		if s.ctx.Err() != nil {
			return 0, io.EOF
		}
		n, err := s.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (s *serialReader) Close() error {
	return s.port.Close()
}

// SerialPorts lists candidate devices for the watch command.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
