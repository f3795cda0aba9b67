package ingest

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/danmuck/meshdecode/internal/stream"
)

// JSONLWriter appends one JSON object per event.
type JSONLWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

type jsonRecord struct {
	TS     string `json:"ts"`
	Source string `json:"source"`
	Hex    string `json:"hex"`
	Packet any    `json:"packet"`
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

func (j *JSONLWriter) Write(ev stream.Event) error {
	rec := jsonRecord{
		TS:     ev.Time.UTC().Format(time.RFC3339Nano),
		Source: ev.Source,
		Hex:    ev.Hex,
		Packet: ev.Packet,
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(rec)
}
