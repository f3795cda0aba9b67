package protocol

// DefaultMinTextRun is the shortest printable run ExtractText reports.
const DefaultMinTextRun = 4

func isPrintableASCII(b byte) bool { return b >= 0x20 && b <= 0x7E }

// ExtractText returns every maximal run of printable ASCII in b that is at
// least minRun bytes long, in order. minRun below 1 uses DefaultMinTextRun.
func ExtractText(b []byte, minRun int) []string {
	if minRun < 1 {
		minRun = DefaultMinTextRun
	}
	var out []string
	start := -1
	for i, ch := range b {
		if isPrintableASCII(ch) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minRun {
			out = append(out, string(b[start:i]))
		}
		start = -1
	}
	if start >= 0 && len(b)-start >= minRun {
		out = append(out, string(b[start:]))
	}
	return out
}

// LongestText picks the longest string, the first one on ties. Handy as a
// device-name hint when the payload could not be decoded.
func LongestText(strs []string) string {
	best := ""
	for _, s := range strs {
		if len(s) > len(best) {
			best = s
		}
	}
	return best
}
