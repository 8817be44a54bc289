package integrity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bft-labs/stageship/internal/domain"
)

// Encode serializes v as one structured record that Clean keeps intact.
//
// v must encode to a non-empty JSON object without nested objects and
// without braces in its keys or string values; anything else fails with
// ErrInvalidRecord. Map keys are written in sorted order and HTML characters
// are not escaped.
func Encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})

	switch {
	case len(out) < 2 || out[0] != '{' || out[len(out)-1] != '}':
		return "", fmt.Errorf("%w: not an object: %s", domain.ErrInvalidRecord, out)
	case len(out) == 2:
		return "", fmt.Errorf("%w: empty object", domain.ErrInvalidRecord)
	case bytes.ContainsAny(out[1:len(out)-1], "{}"):
		return "", fmt.Errorf("%w: nested braces in %s", domain.ErrInvalidRecord, out)
	case bytes.ContainsAny(out, "\r\n"):
		return "", fmt.Errorf("%w: line break in %s", domain.ErrInvalidRecord, out)
	}
	return string(out), nil
}
