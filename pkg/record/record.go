// Package record defines the on-disk format of a stored object.
package record

import (
	"fmt"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

const MediaTypeJSON = "application/json"

// ObjectV1 is the persisted form of a stored object. It carries no
// timestamps: encoding the same identifier and body always yields the same
// bytes, so concurrent writers of one key write identical values.
type ObjectV1 struct {
	Version   uint16   `cbor:"version"`
	ID        string   `cbor:"id"`
	CID       core.CID `cbor:"cid"`
	MediaType string   `cbor:"media_type"`
	Length    uint64   `cbor:"length"`
	Body      []byte   `cbor:"body"`
}

// Codec encodes and validates stored records.
type Codec interface {
	Encode(o *ObjectV1) ([]byte, error)
	Decode(b []byte) (*ObjectV1, error)
}

type codec struct {
	limits  core.LimitsConfig
	encMode cbor.EncMode
	decMode cbor.DecMode
}

func NewCodec(limits core.LimitsConfig) Codec {
	// Core Deterministic Encoding Requirements (RFC 8949 §4.2.1).
	em, _ := cbor.CoreDetEncOptions().EncMode()
	dm, _ := cbor.DecOptions{MaxNestedLevels: 4}.DecMode()
	return &codec{
		limits:  limits,
		encMode: em,
		decMode: dm,
	}
}

func (c *codec) Encode(o *ObjectV1) ([]byte, error) {
	if err := c.validate(o); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return c.encMode.Marshal(o)
}

func (c *codec) Decode(b []byte) (*ObjectV1, error) {
	var o ObjectV1
	if err := c.decMode.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal record: %v", core.ErrCorrupt, err)
	}
	if err := c.validate(&o); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}
	return &o, nil
}

func (c *codec) validate(o *ObjectV1) error {
	if o.Version != 1 {
		return fmt.Errorf("unsupported record version %d", o.Version)
	}
	if o.ID == "" {
		return fmt.Errorf("record has empty id")
	}
	if len(o.CID.Bytes) == 0 {
		return fmt.Errorf("record %s has empty CID", o.ID)
	}
	if uint64(len(o.Body)) != o.Length {
		return fmt.Errorf("length mismatch: record says %d, body is %d", o.Length, len(o.Body))
	}
	if c.limits.MaxCanonicalBytes > 0 && len(o.Body) > c.limits.MaxCanonicalBytes {
		return fmt.Errorf("body too large: %d > %d", len(o.Body), c.limits.MaxCanonicalBytes)
	}
	return nil
}
