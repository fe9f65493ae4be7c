// Package ident derives object identifiers.
//
// Two policies exist and a deployment commits to one of them: content-hash
// identifiers are a pure function of the canonical bytes and enable
// deduplication; random-token identifiers are unique per ingest.
package ident

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/google/uuid"
	"github.com/multiformats/go-multihash"
)

const (
	PolicyContentHash = "content-hash"
	PolicyRandomToken = "random-token"
)

// Deriver turns canonical bytes into an identifier.
type Deriver interface {
	Name() string
	Derive(canonical []byte) (core.Identifier, error)
	// Deduplicates reports whether equal content always yields an equal identifier.
	Deduplicates() bool
}

// New returns the deriver for policy. An empty policy selects content-hash.
func New(policy string) (Deriver, error) {
	switch policy {
	case PolicyContentHash, "":
		return contentHash{}, nil
	case PolicyRandomToken:
		return randomToken{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown identifier policy %q", core.ErrInvalidInput, policy)
	}
}

type contentHash struct{}

func (contentHash) Name() string       { return PolicyContentHash }
func (contentHash) Deduplicates() bool { return true }

// Derive returns the lowercase hex SHA-1 digest (40 chars) of canonical.
func (contentHash) Derive(canonical []byte) (core.Identifier, error) {
	mh, err := multihash.Sum(canonical, multihash.SHA1, -1)
	if err != nil {
		return "", fmt.Errorf("failed to compute multihash: %w", err)
	}
	dec, err := multihash.Decode(mh)
	if err != nil {
		return "", fmt.Errorf("failed to decode multihash: %w", err)
	}
	return core.Identifier(hex.EncodeToString(dec.Digest)), nil
}

type randomToken struct{}

func (randomToken) Name() string       { return PolicyRandomToken }
func (randomToken) Deduplicates() bool { return false }

// Derive ignores its input and returns a UUIDv4 as 32 lowercase hex chars.
func (randomToken) Derive([]byte) (core.Identifier, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return core.Identifier(strings.ReplaceAll(u.String(), "-", "")), nil
}

var wellFormed = regexp.MustCompile(`^[0-9a-f]{32,64}$`)

// Valid reports whether s could have been produced by any policy. Retrieval
// accepts identifiers from either policy.
func Valid(s string) bool {
	return wellFormed.MatchString(s)
}
