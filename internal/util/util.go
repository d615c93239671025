package util

import "strings"

// BitString renders a bit slice as a compact "0101" string, channel 1
// leftmost.
func BitString(bits []bool) string {
	var s strings.Builder
	for _, b := range bits {
		if b {
			s.WriteString("1")
		} else {
			s.WriteString("0")
		}
	}
	return s.String()
}
