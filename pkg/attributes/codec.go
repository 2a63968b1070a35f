package attributes

import (
	"fmt"

	"github.com/agenthands/amane/pkg/core"
)

// Codec encodes and decodes sidecars, validating them against limits.
type Codec interface {
	Encode(a *Attributes) ([]byte, error)
	Decode(b []byte) (*Attributes, error)
	Validate(a *Attributes) error
}

type codec struct {
	limits core.LimitsConfig
}

// NewCodec returns a Codec enforcing limits. Zero limits are unbounded.
func NewCodec(limits core.LimitsConfig) Codec {
	return &codec{limits: limits}
}

func (c *codec) Encode(a *Attributes) ([]byte, error) {
	if err := c.Validate(a); err != nil {
		return nil, err
	}
	return a.ToBytes()
}

// Decode does not re-apply limits: records written before a limit was
// tightened stay readable.
func (c *codec) Decode(b []byte) (*Attributes, error) {
	return FromBytes(b)
}

func (c *codec) Validate(a *Attributes) error {
	if a == nil {
		return fmt.Errorf("%w: nil attributes", core.ErrInvalidInput)
	}
	if len(a.Meta) > c.limits.MaxMetaEntries && c.limits.MaxMetaEntries > 0 {
		return fmt.Errorf("%w: too many meta entries: %d > %d", core.ErrInvalidInput, len(a.Meta), c.limits.MaxMetaEntries)
	}
	for k, v := range a.Meta {
		if k == "" {
			return fmt.Errorf("%w: empty meta key", core.ErrInvalidInput)
		}
		if len(k) > c.limits.MaxMetaKeyLen && c.limits.MaxMetaKeyLen > 0 {
			return fmt.Errorf("%w: meta key too long: %d > %d", core.ErrInvalidInput, len(k), c.limits.MaxMetaKeyLen)
		}
		if len(v) > c.limits.MaxMetaValLen && c.limits.MaxMetaValLen > 0 {
			return fmt.Errorf("%w: meta value too long: %d > %d", core.ErrInvalidInput, len(v), c.limits.MaxMetaValLen)
		}
	}
	return nil
}
