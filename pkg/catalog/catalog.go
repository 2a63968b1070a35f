package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/naming"
	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"
)

var (
	PrefixObjects = []byte("obj:")
)

// Entry is the indexed view of one stored object. It is keyed by ID, so
// keys that sanitize to the same identifier share one entry, named after the
// last writer.
type Entry struct {
	ID        core.ObjectID `cbor:"id"`
	Bucket    string        `cbor:"bucket"`
	Name      string        `cbor:"name"`
	Size      int64         `cbor:"size"`
	UpdatedAt time.Time     `cbor:"updated_at"`
}

// Catalog defines the interface for the embedded name index.
type Catalog interface {
	GetEntry(ctx context.Context, id core.ObjectID) (Entry, bool, error)
	PutEntry(batch *pebble.Batch, e Entry) error
	DeleteEntry(batch *pebble.Batch, id core.ObjectID) error

	// IteratePrefix visits, in identifier order, every entry of bucket whose
	// name starts with prefix.
	IteratePrefix(ctx context.Context, bucket, prefix string, fn func(e Entry) error) error

	// Reset drops every indexed entry.
	Reset() error

	NewBatch() *pebble.Batch
	Close() error
}

type pebbleCatalog struct {
	db      *pebble.DB
	encMode cbor.EncMode
}

// Open opens a Pebble-based catalog in the specified directory.
func Open(dir string) (Catalog, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build cbor encoder: %w", err)
	}
	return &pebbleCatalog{db: db, encMode: em}, nil
}

func (c *pebbleCatalog) Close() error {
	return c.db.Close()
}

func (c *pebbleCatalog) NewBatch() *pebble.Batch {
	return c.db.NewBatch()
}

func (c *pebbleCatalog) GetEntry(ctx context.Context, id core.ObjectID) (Entry, bool, error) {
	val, closer, err := c.db.Get(encodeKey(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	defer closer.Close()

	e, err := decodeEntry(val)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (c *pebbleCatalog) PutEntry(batch *pebble.Batch, e Entry) error {
	if !naming.IsObjectID(string(e.ID)) {
		return fmt.Errorf("%w: invalid object id %q", core.ErrInvalidInput, e.ID)
	}
	val, err := c.encMode.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode index entry: %w", err)
	}
	k := encodeKey(e.ID)
	if batch != nil {
		return batch.Set(k, val, nil)
	}
	return c.db.Set(k, val, pebble.Sync)
}

func (c *pebbleCatalog) DeleteEntry(batch *pebble.Batch, id core.ObjectID) error {
	k := encodeKey(id)
	if batch != nil {
		return batch.Delete(k, nil)
	}
	return c.db.Delete(k, pebble.Sync)
}

func (c *pebbleCatalog) IteratePrefix(ctx context.Context, bucket, prefix string, fn func(e Entry) error) error {
	lower := append(append([]byte{}, PrefixObjects...), naming.BucketPrefix(bucket)...)

	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: incrementByte(lower),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := decodeEntry(iter.Value())
		if err != nil {
			return err
		}
		if !strings.HasPrefix(e.Name, prefix) {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (c *pebbleCatalog) Reset() error {
	return c.db.DeleteRange(PrefixObjects, incrementByte(PrefixObjects), pebble.Sync)
}

func decodeEntry(val []byte) (Entry, error) {
	var e Entry
	if err := cbor.Unmarshal(val, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: invalid index entry: %v", core.ErrCorrupt, err)
	}
	return e, nil
}

// encodeKey lays keys out as obj:<id>. Identifiers start with the bucket
// digest, so one bucket is one contiguous key range.
func encodeKey(id core.ObjectID) []byte {
	k := make([]byte, 0, len(PrefixObjects)+len(id))
	k = append(k, PrefixObjects...)
	return append(k, id...)
}

func incrementByte(b []byte) []byte {
	res := make([]byte, len(b))
	copy(res, b)
	for i := len(res) - 1; i >= 0; i-- {
		res[i]++
		if res[i] != 0 {
			return res
		}
	}
	return nil
}
