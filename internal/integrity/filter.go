// Package integrity recovers well-formed records from batch files that may
// have been truncated mid-write.
package integrity

import "strings"

// Clean returns every flat brace group of raw, each followed by a newline.
//
// A group is a '{', one or more bytes that are neither '{' nor '}', and a
// closing '}'. Anything outside a group is dropped, so a fragment cut off by
// a crash never reaches the sink. Objects that nest braces, or carry braces
// inside string values, do not form a group and are dropped as well; callers
// that need them must ship the payload unfiltered.
func Clean(raw string) string {
	var b strings.Builder
	start := -1
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			start = i
		case '}':
			if start >= 0 && i-start > 1 {
				b.WriteString(raw[start : i+1])
				b.WriteByte('\n')
			}
			start = -1
		}
	}
	return b.String()
}
