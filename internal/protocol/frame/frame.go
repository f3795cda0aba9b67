// Package frame reads newline-delimited hex packets with bounded memory.
package frame

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	ErrLineTooLong = errors.New("frame: line exceeds limit")
	ErrEmptyLine   = errors.New("frame: empty line")
)

// Limits constrains how much is buffered for a single line.
type Limits struct {
	MaxLineBytes int
}

// DefaultLimits fits a maximum-size packet in hex with room for a prefix and
// spacing.
func DefaultLimits() Limits {
	return Limits{MaxLineBytes: 4096}
}

// LineReader yields one trimmed line per call. It is not safe for concurrent
// use.
type LineReader struct {
	r      *bufio.Reader
	limits Limits
}

func NewLineReader(r io.Reader, limits Limits) *LineReader {
	if limits.MaxLineBytes <= 0 {
		limits = DefaultLimits()
	}
	// +2 leaves room for the line terminator.
	return &LineReader{r: bufio.NewReaderSize(r, limits.MaxLineBytes+2), limits: limits}
}

// ReadLine returns the next line without its terminator or surrounding
// space. Overlong lines are discarded through their newline and reported as
// ErrLineTooLong; blank lines and '#' comments as ErrEmptyLine. Both leave the
// reader positioned on the following line. io.EOF ends the stream.
func (lr *LineReader) ReadLine() (string, error) {
	line, err := lr.r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = lr.r.ReadSlice('\n')
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return "", ErrLineTooLong
	}
	if err != nil && (!errors.Is(err, io.EOF) || len(line) == 0) {
		return "", err
	}

	s := strings.TrimSpace(string(line))
	if len(s) > lr.limits.MaxLineBytes {
		return "", ErrLineTooLong
	}
	if s == "" || strings.HasPrefix(s, "#") {
		return "", ErrEmptyLine
	}
	return s, nil
}

// WriteLine writes line followed by a newline, refusing lines a LineReader
// with the same limits would reject.
func WriteLine(w io.Writer, line string, limits Limits) error {
	if limits.MaxLineBytes > 0 && len(line) > limits.MaxLineBytes {
		return ErrLineTooLong
	}
	if strings.TrimSpace(line) == "" {
		return ErrEmptyLine
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}
