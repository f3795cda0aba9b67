package protocol

// Span is one field the decoder consumed, as seen by the structure analyzer.
// Offset is relative to the start of the packet.
type Span struct {
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	Label    string `json:"label"`
	ValueHex string `json:"valueHex"`
}

// tracer collects spans from cursor reads. A nil tracer records nothing, so
// the analyzer costs nothing unless a caller asks for it.
type tracer struct {
	spans []Span
}

func (t *tracer) record(offset int, label string, b []byte) {
	if t == nil {
		return
	}
	t.spans = append(t.spans, Span{
		Offset:   offset,
		Length:   len(b),
		Label:    label,
		ValueHex: upperHex(b),
	})
}

func (t *tracer) result() []Span {
	if t == nil {
		return nil
	}
	out := make([]Span, len(t.spans))
	copy(out, t.spans)
	return out
}
