// Package bucket implements object operations for one bucket on top of a
// flat accessor: every object is a payload file plus a JSON sidecar, both
// named after naming.Derive(bucket, key).
//
// Writes are not atomic across the two files. A crash between them leaves a
// payload without a sidecar (or the reverse); pkg/sweep reports such pairs.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/attributes"
	"github.com/agenthands/amane/pkg/catalog"
	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/naming"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
)

// Bucket is a named namespace of keys. It holds no state of its own.
type Bucket struct {
	name  string
	store *Store
}

// Info describes a stored object without its payload.
type Info struct {
	Key        string
	ID         core.ObjectID
	Size       int64
	CID        cid.Cid
	Attributes *attributes.Attributes
}

// New returns a bucket over acc with a private Store.
func New(acc accessor.Accessor, name string, opts ...Option) *Bucket {
	return NewStore(acc, opts...).Bucket(name)
}

func (b *Bucket) Name() string { return b.name }

func (b *Bucket) logger() *zap.Logger {
	return b.store.log.With(zap.String("bucket", b.name))
}

// GetObject returns the payload and attributes stored under key.
func (b *Bucket) GetObject(ctx context.Context, key string) (data []byte, attrs *attributes.Attributes, err error) {
	defer func() { b.store.metrics.ObserveOp("get", err) }()

	id := naming.Derive(b.name, key)
	unlock := b.store.locks.RLock(id)
	defer unlock()

	data, err = b.store.acc.Read(ctx, string(id))
	if err != nil {
		return nil, nil, b.payloadErr("get", key, err)
	}
	attrs, err = b.readSidecar(ctx, id)
	if err != nil {
		return nil, nil, b.sidecarErr("get", key, err)
	}
	return data, attrs, nil
}

// PutObject stores data under key and replaces its sidecar with a fresh
// record. Metadata set before the put is discarded.
func (b *Bucket) PutObject(ctx context.Context, key string, data []byte) (err error) {
	defer func() { b.store.metrics.ObserveOp("put", err) }()

	id := naming.Derive(b.name, key)
	unlock := b.store.locks.Lock(id)
	defer unlock()

	if err := b.store.acc.Write(ctx, string(id), data); err != nil {
		return b.internal("put", key, "write payload", err)
	}
	if err := b.writeSidecar(ctx, id, attributes.New(b.name, key)); err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return err
		}
		return b.internal("put", key, "write sidecar", err)
	}
	if cat := b.store.catalog; cat != nil {
		e := catalog.Entry{ID: id, Bucket: b.name, Name: key, Size: int64(len(data)), UpdatedAt: time.Now().UTC()}
		if err := cat.PutEntry(nil, e); err != nil {
			return b.internal("put", key, "index", err)
		}
	}
	b.logger().Debug("object stored", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

// UpdateMeta merges entries into the sidecar of key, creating a fresh record
// when none is readable, and returns the record as written.
func (b *Bucket) UpdateMeta(ctx context.Context, key string, entries map[string]string) (attrs *attributes.Attributes, err error) {
	defer func() { b.store.metrics.ObserveOp("update_meta", err) }()

	id := naming.Derive(b.name, key)
	unlock := b.store.locks.Lock(id)
	defer unlock()

	attrs, err = b.readSidecar(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotFound):
		attrs = attributes.New(b.name, key)
	case errors.Is(err, core.ErrCorrupt):
		b.logger().Warn("replacing unreadable sidecar", zap.String("key", key), zap.Error(err))
		attrs = attributes.New(b.name, key)
	default:
		return nil, b.internal("update_meta", key, "read sidecar", err)
	}

	attrs.Merge(entries)
	if err := b.writeSidecar(ctx, id, attrs); err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return nil, err
		}
		return nil, b.internal("update_meta", key, "write sidecar", err)
	}
	if err := b.indexSidecar(ctx, id, attrs); err != nil {
		return nil, b.internal("update_meta", key, "index", err)
	}
	return attrs, nil
}

// indexSidecar records attrs in the index when a payload backs them. A
// sidecar without a payload is not an object and stays unindexed.
func (b *Bucket) indexSidecar(ctx context.Context, id core.ObjectID, attrs *attributes.Attributes) error {
	cat := b.store.catalog
	if cat == nil {
		return nil
	}
	size, err := b.store.acc.Size(ctx, string(id))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	e := catalog.Entry{ID: id, Bucket: attrs.Bucket, Name: attrs.Name, Size: size, UpdatedAt: time.Now().UTC()}
	return cat.PutEntry(nil, e)
}

// DeleteObject removes the payload, then the sidecar. A sidecar that is
// already gone is not an error.
func (b *Bucket) DeleteObject(ctx context.Context, key string) (err error) {
	defer func() { b.store.metrics.ObserveOp("delete", err) }()

	id := naming.Derive(b.name, key)
	unlock := b.store.locks.Lock(id)
	defer unlock()

	if err := b.store.acc.Remove(ctx, string(id)); err != nil {
		return b.payloadErr("delete", key, err)
	}

	if err := b.store.acc.Remove(ctx, attributes.DerivePath(id)); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return b.internal("delete", key, "remove sidecar", err)
		}
		b.logger().Warn("sidecar already absent", zap.String("key", key), zap.String("id", id.String()))
	}

	if cat := b.store.catalog; cat != nil {
		if err := cat.DeleteEntry(nil, id); err != nil {
			return b.internal("delete", key, "index", err)
		}
	}
	return nil
}

// ListObjects returns the keys of this bucket starting with prefix, in no
// particular order. Only keys with a payload are listed. An empty result is
// an empty slice.
func (b *Bucket) ListObjects(ctx context.Context, prefix string) (keys []string, err error) {
	defer func() { b.store.metrics.ObserveOp("list", err) }()

	if cat := b.store.catalog; cat != nil {
		keys = []string{}
		err := cat.IteratePrefix(ctx, b.name, prefix, func(e catalog.Entry) error {
			keys = append(keys, e.Name)
			return nil
		})
		if err != nil {
			return nil, b.internal("list", prefix, "index", err)
		}
		return keys, nil
	}

	return b.scan(ctx, prefix)
}

func (b *Bucket) scan(ctx context.Context, prefix string) ([]string, error) {
	entries, err := b.store.acc.List(ctx)
	if err != nil {
		return nil, b.internal("list", prefix, "list directory", err)
	}

	bucketPrefix := naming.BucketPrefix(b.name)
	keys := []string{}
	skipped := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry, bucketPrefix) || !naming.IsObjectID(entry) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := b.store.acc.Read(ctx, attributes.DerivePath(core.ObjectID(entry)))
		if err != nil {
			skipped++
			continue
		}
		attrs, err := b.store.codec.Decode(raw)
		if err != nil {
			skipped++
			continue
		}
		if strings.HasPrefix(attrs.Name, prefix) {
			keys = append(keys, attrs.Name)
		}
	}

	if skipped > 0 {
		b.logger().Warn("sidecars skipped during listing", zap.String("prefix", prefix), zap.Int("skipped", skipped))
		b.store.metrics.AddSkippedSidecars(skipped)
	}
	return keys, nil
}

// Stat reports size, content id and attributes of key.
func (b *Bucket) Stat(ctx context.Context, key string) (info Info, err error) {
	defer func() { b.store.metrics.ObserveOp("stat", err) }()

	id := naming.Derive(b.name, key)
	unlock := b.store.locks.RLock(id)
	defer unlock()

	data, err := b.store.acc.Read(ctx, string(id))
	if err != nil {
		return Info{}, b.payloadErr("stat", key, err)
	}
	attrs, err := b.readSidecar(ctx, id)
	if err != nil {
		return Info{}, b.sidecarErr("stat", key, err)
	}
	c, err := b.store.cids.ObjectCID(data)
	if err != nil {
		return Info{}, b.internal("stat", key, "content id", err)
	}
	return Info{Key: key, ID: id, Size: int64(len(data)), CID: c, Attributes: attrs}, nil
}

func (b *Bucket) readSidecar(ctx context.Context, id core.ObjectID) (*attributes.Attributes, error) {
	raw, err := b.store.acc.Read(ctx, attributes.DerivePath(id))
	if err != nil {
		return nil, err
	}
	return b.store.codec.Decode(raw)
}

func (b *Bucket) writeSidecar(ctx context.Context, id core.ObjectID, attrs *attributes.Attributes) error {
	raw, err := b.store.codec.Encode(attrs)
	if err != nil {
		return err
	}
	return b.store.acc.Write(ctx, attributes.DerivePath(id), raw)
}

// payloadErr keeps NotFound for a missing payload and folds the rest into
// ErrInternal.
func (b *Bucket) payloadErr(op, key string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: %s %q in bucket %q", core.ErrNotFound, op, key, b.name)
	}
	return b.internal(op, key, "payload", err)
}

// sidecarErr reports any sidecar failure behind an existing payload as
// ErrInternal, including a missing or corrupt sidecar.
func (b *Bucket) sidecarErr(op, key string, err error) error {
	b.logger().Error("sidecar unreadable", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return b.internal(op, key, "sidecar", err)
}

// internal flattens err into an ErrInternal so that a NotFound from a
// secondary file never reaches the caller as NotFound.
func (b *Bucket) internal(op, key, what string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s %q in bucket %q: %s: %v", core.ErrInternal, op, key, b.name, what, err)
}
