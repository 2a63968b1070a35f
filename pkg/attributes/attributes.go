// Package attributes models the metadata sidecar stored beside every object.
package attributes

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/agenthands/amane/pkg/core"
	jsoniter "github.com/json-iterator/go"
)

// SidecarExt is appended to an object identifier to name its sidecar.
const SidecarExt = ".json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Attributes is the metadata record persisted next to an object's payload.
type Attributes struct {
	Bucket string            `json:"bucket"`
	Name   string            `json:"name"` // original, unsanitized key
	Meta   map[string]string `json:"meta"`
}

// New returns a record with empty metadata.
func New(bucket, name string) *Attributes {
	return &Attributes{
		Bucket: bucket,
		Name:   name,
		Meta:   make(map[string]string),
	}
}

// SetMeta inserts or overwrites one metadata entry.
func (a *Attributes) SetMeta(key, value string) {
	if a.Meta == nil {
		a.Meta = make(map[string]string)
	}
	a.Meta[key] = value
}

// Merge applies every entry of meta, last write per key wins.
func (a *Attributes) Merge(meta map[string]string) {
	for k, v := range meta {
		a.SetMeta(k, v)
	}
}

func (a *Attributes) ToBytes() ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal attributes: %v", core.ErrInternal, err)
	}
	return b, nil
}

// FromBytes decodes a sidecar. Anything that is not a JSON object carrying
// at least the bucket and name fields is rejected with core.ErrCorrupt.
func FromBytes(b []byte) (*Attributes, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("%w: empty attributes", core.ErrCorrupt)
	}
	var raw struct {
		Bucket *string           `json:"bucket"`
		Name   *string           `json:"name"`
		Meta   map[string]string `json:"meta"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal attributes: %v", core.ErrCorrupt, err)
	}
	if raw.Bucket == nil || raw.Name == nil {
		return nil, fmt.Errorf("%w: attributes missing bucket or name", core.ErrCorrupt)
	}
	a := &Attributes{Bucket: *raw.Bucket, Name: *raw.Name, Meta: raw.Meta}
	if a.Meta == nil {
		a.Meta = make(map[string]string)
	}
	return a, nil
}

// DerivePath names the sidecar of the object stored under id.
func DerivePath(id core.ObjectID) string {
	return string(id) + SidecarExt
}

// IsSidecar reports whether a directory entry is a sidecar.
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, SidecarExt)
}

// ObjectIDOf returns the object identifier a sidecar belongs to.
func ObjectIDOf(sidecar string) core.ObjectID {
	return core.ObjectID(strings.TrimSuffix(sidecar, SidecarExt))
}
