package cidutil

import (
	"bytes"
	"fmt"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Builder creates and verifies the CIDs that protect stored objects.
type Builder interface {
	// BodyCID addresses the canonical bytes of a document.
	BodyCID(body []byte) (core.CID, error)
	// RecordCID addresses an encoded stored record (dag-cbor).
	RecordCID(record []byte) (core.CID, error)
	Verify(c core.CID, data []byte) error
}

type builder struct{}

func NewBuilder() Builder {
	return &builder{}
}

func (b *builder) BodyCID(body []byte) (core.CID, error) {
	return b.build(cid.Raw, body)
}

func (b *builder) RecordCID(record []byte) (core.CID, error) {
	return b.build(cid.DagCBOR, record)
}

func (b *builder) build(codec uint64, data []byte) (core.CID, error) {
	hash, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return core.CID{}, fmt.Errorf("failed to compute multihash: %w", err)
	}
	return core.CID{Bytes: cid.NewCidV1(codec, hash).Bytes()}, nil
}

func (b *builder) Verify(c core.CID, data []byte) error {
	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return fmt.Errorf("%w: invalid CID bytes: %v", core.ErrCorrupt, err)
	}

	prefix := id.Prefix()
	hash, err := multihash.Sum(data, prefix.MhType, prefix.MhLength)
	if err != nil {
		return fmt.Errorf("failed to compute multihash for verification: %w", err)
	}

	if !bytes.Equal(id.Hash(), hash) {
		return fmt.Errorf("%w: CID mismatch", core.ErrCorrupt)
	}
	return nil
}

// String renders a CID in its default multibase form, or "<invalid>".
func String(c core.CID) string {
	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return "<invalid>"
	}
	return id.String()
}
