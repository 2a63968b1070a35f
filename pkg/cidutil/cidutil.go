package cidutil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/agenthands/amane/pkg/core"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Builder defines the interface for computing and verifying payload content ids.
type Builder interface {
	ObjectCID(payload []byte) (cid.Cid, error)
	Verify(c cid.Cid, payload []byte) error
}

type builder struct{}

// NewBuilder returns a new CID builder implementation.
func NewBuilder() Builder {
	return &builder{}
}

func (b *builder) ObjectCID(payload []byte) (cid.Cid, error) {
	hash, err := multihash.Sum(payload, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to compute multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, hash), nil
}

func (b *builder) Verify(c cid.Cid, payload []byte) error {
	if !c.Defined() {
		return fmt.Errorf("%w: undefined CID", core.ErrCorrupt)
	}

	prefix := c.Prefix()
	hash, err := multihash.Sum(payload, prefix.MhType, prefix.MhLength)
	if err != nil {
		return fmt.Errorf("failed to compute multihash for verification: %w", err)
	}

	if !bytes.Equal(c.Hash(), hash) {
		return fmt.Errorf("%w: CID mismatch", core.ErrCorrupt)
	}
	return nil
}

// ETag renders a content id as a strong HTTP entity tag.
func ETag(c cid.Cid) string {
	return `"` + c.String() + `"`
}

// Parse decodes a content id from its string or entity-tag form.
func Parse(s string) (cid.Cid, error) {
	s = strings.Trim(strings.TrimPrefix(s, "W/"), `"`)
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: invalid CID %q: %v", core.ErrInvalidInput, s, err)
	}
	return c, nil
}
