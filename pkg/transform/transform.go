// Package transform wraps encoded records before they reach a durable
// backend. Decoding is self-describing: any transform can read records
// written by any other, so a deployment may switch transforms without
// rewriting its store.
package transform

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/klauspost/compress/zstd"
)

const (
	Magic   = "ECAS"
	Version = 1

	headerLen = 7
)

const (
	FlagCompressed = 1 << 0
)

const (
	AlgZstd = 1
)

// Transform encodes and decodes stored record payloads.
type Transform interface {
	Name() string
	Encode(plain []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
}

// New returns the transform registered under name.
func New(name string, level int) (Transform, error) {
	switch name {
	case "none", "":
		return NewNone(), nil
	case "zstd":
		return NewZstd(level)
	default:
		return nil, fmt.Errorf("%w: unsupported transform %q", core.ErrInvalidInput, name)
	}
}

type noneTransform struct{}

func NewNone() Transform {
	return &noneTransform{}
}

func (t *noneTransform) Name() string                         { return "none" }
func (t *noneTransform) Encode(plain []byte) ([]byte, error)  { return plain, nil }
func (t *noneTransform) Decode(stored []byte) ([]byte, error) { return unwrap(stored) }

type zstdTransform struct {
	encoder *zstd.Encoder
}

// NewZstd returns a transform compressing payloads with zstd at level
// (see zstd.EncoderLevelFromZstd). Level 0 selects the library default.
func NewZstd(level int) (Transform, error) {
	opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
	if level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return &zstdTransform{encoder: enc}, nil
}

func (t *zstdTransform) Name() string { return "zstd" }

func (t *zstdTransform) Encode(plain []byte) ([]byte, error) {
	compressed := t.encoder.EncodeAll(plain, nil)

	envelope := make([]byte, 0, headerLen+len(compressed))
	envelope = append(envelope, Magic...)
	envelope = append(envelope, Version, FlagCompressed, AlgZstd)
	envelope = append(envelope, compressed...)
	return envelope, nil
}

func (t *zstdTransform) Decode(stored []byte) ([]byte, error) { return unwrap(stored) }

var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return decoder, decoderErr
}

// unwrap returns stored unchanged when it carries no envelope.
func unwrap(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, []byte(Magic)) {
		return stored, nil
	}
	if len(stored) < headerLen {
		return nil, fmt.Errorf("%w: record too small for envelope", core.ErrCorrupt)
	}
	if stored[4] != Version {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", core.ErrCorrupt, stored[4])
	}

	flags, alg, payload := stored[5], stored[6], stored[headerLen:]
	if flags&FlagCompressed == 0 {
		return payload, nil
	}
	if alg != AlgZstd {
		return nil, fmt.Errorf("%w: unsupported compression algorithm %d", core.ErrCorrupt, alg)
	}

	dec, err := sharedDecoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	plain, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}
	return plain, nil
}
