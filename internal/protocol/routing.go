package protocol

import "fmt"

// MaxPathLength is the largest hop count the one-byte indicator can declare.
const MaxPathLength = 0xFF

// parseRouting reads the path-length byte and that many one-byte node ids.
// A path that runs off the end of the packet is returned as far as it was read.
func parseRouting(c *cursor) (Routing, *FieldError) {
	var r Routing

	n, ok := c.u8("path_length")
	if !ok {
		return r, truncated("routing", "path_length", c.pos())
	}
	r.PathLength = int(n)
	if n == 0 {
		return r, nil
	}

	r.Path = make([]NodeID, 0, n)
	for i := 0; i < int(n); i++ {
		hop, ok := c.u8(fmt.Sprintf("path[%d]", i))
		if !ok {
			return r, &FieldError{Stage: "routing", Field: fmt.Sprintf("path[%d]", i), Offset: c.pos(), Err: ErrPathTruncated}
		}
		r.Path = append(r.Path, NodeID(hop))
	}
	return r, nil
}
