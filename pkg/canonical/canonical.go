// Package canonical produces the RFC 8785 (JCS) serialization of validated
// documents. Logically equal documents, regardless of key order, whitespace
// or number spelling, serialize to identical bytes.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Marshal returns the canonical bytes of v.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical: pre-marshal failed: %w", err)
	}
	return Transform(buf.Bytes())
}

// Transform canonicalizes raw JSON text.
func Transform(raw []byte) ([]byte, error) {
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	return out, nil
}
