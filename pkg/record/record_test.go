package record

import (
	"bytes"
	"errors"
	"testing"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

func testObject() *ObjectV1 {
	body := []byte(`{"version":1}`)
	return &ObjectV1{
		Version:   1,
		ID:        "e5fa44f2b31c1fb553b6021e7360d07d5d91ff5e",
		CID:       core.CID{Bytes: []byte("cid1")},
		MediaType: MediaTypeJSON,
		Length:    uint64(len(body)),
		Body:      body,
	}
}

func TestRecordCodec(t *testing.T) {
	codec := NewCodec(core.LimitsConfig{MaxCanonicalBytes: 1024})

	t.Run("RoundTrip", func(t *testing.T) {
		o := testObject()
		b, err := codec.Encode(o)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		got, err := codec.Decode(b)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.ID != o.ID || !bytes.Equal(got.Body, o.Body) || got.MediaType != o.MediaType {
			t.Errorf("record mismatch: %+v", got)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, _ := codec.Encode(testObject())
		b, _ := codec.Encode(testObject())
		if !bytes.Equal(a, b) {
			t.Error("expected identical encodings for identical records")
		}
	})

	t.Run("InvalidVersion", func(t *testing.T) {
		o := testObject()
		o.Version = 2
		if _, err := codec.Encode(o); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		o := testObject()
		o.Length++
		raw, _ := cbor.Marshal(o)
		if _, err := codec.Decode(raw); !errors.Is(err, core.ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		o := testObject()
		o.Body = bytes.Repeat([]byte("a"), 2048)
		o.Length = 2048
		if _, err := codec.Encode(o); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := codec.Decode([]byte{0xff, 0x00}); !errors.Is(err, core.ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		o := testObject()
		o.ID = ""
		if _, err := codec.Encode(o); err == nil {
			t.Error("expected error for empty id")
		}
	})
}
