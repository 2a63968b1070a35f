package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/attributes"
	"github.com/agenthands/amane/pkg/catalog"
	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/naming"
)

// RebuildResult counts what Rebuild indexed and what it had to leave out.
type RebuildResult struct {
	Indexed int
	Skipped int
}

// Rebuild drops every entry of cat and re-creates it from the payloads in
// acc, the same set ListObjects scans. A payload whose sidecar is missing or
// does not decode is skipped. The new entries are committed in a single
// batch.
func Rebuild(ctx context.Context, acc accessor.Accessor, cat catalog.Catalog) (RebuildResult, error) {
	var res RebuildResult

	entries, err := acc.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list data directory: %w", err)
	}

	if err := cat.Reset(); err != nil {
		return res, fmt.Errorf("%w: failed to reset index: %v", core.ErrInternal, err)
	}

	batch := cat.NewBatch()
	defer batch.Close()

	now := time.Now().UTC()
	for _, name := range entries {
		if !naming.IsObjectID(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		id := core.ObjectID(name)
		raw, err := acc.Read(ctx, attributes.DerivePath(id))
		if err != nil {
			res.Skipped++
			continue
		}
		attrs, err := attributes.FromBytes(raw)
		if err != nil {
			res.Skipped++
			continue
		}
		size, err := acc.Size(ctx, string(id))
		if err != nil {
			res.Skipped++
			continue
		}

		e := catalog.Entry{ID: id, Bucket: attrs.Bucket, Name: attrs.Name, Size: size, UpdatedAt: now}
		if err := cat.PutEntry(batch, e); err != nil {
			return res, fmt.Errorf("%w: failed to stage index entry: %v", core.ErrInternal, err)
		}
		res.Indexed++
	}

	if err := batch.Commit(nil); err != nil {
		return res, fmt.Errorf("%w: failed to commit index: %v", core.ErrInternal, err)
	}
	return res, nil
}
