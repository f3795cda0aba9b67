package protocol

// payloadDecoder interprets the payload under one type's layout. It always
// returns a non-nil record, partial when the error is non-nil.
type payloadDecoder func(c *cursor) (Decoded, *FieldError)

// payloadDecoders is the complete header-code to decoder mapping. Codes absent
// from it keep their raw bytes and decode to nothing.
var payloadDecoders = map[PayloadType]payloadDecoder{
	PayloadPosition:    func(c *cursor) (Decoded, *FieldError) { return decodePosition(c) },
	PayloadNodeInfo:    func(c *cursor) (Decoded, *FieldError) { return decodeNodeInfo(c) },
	PayloadTelemetry:   func(c *cursor) (Decoded, *FieldError) { return decodeTelemetry(c) },
	PayloadTextMessage: func(c *cursor) (Decoded, *FieldError) { return decodeTextMessage(c) },
}

func dispatch(pt PayloadType, c *cursor) (Decoded, *FieldError) {
	dec, ok := payloadDecoders[pt]
	if !ok {
		return nil, nil
	}
	return dec(c)
}
