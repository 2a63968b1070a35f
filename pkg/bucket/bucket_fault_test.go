package bucket_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agenthands/amane/internal/testkit"
	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/attributes"
	"github.com/agenthands/amane/pkg/bucket"
	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/naming"
)

func newFaultyBucket(t *testing.T) (*bucket.Bucket, *testkit.FaultyAccessor) {
	t.Helper()
	acc, err := accessor.NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fa := testkit.NewFaultyAccessor(acc)
	return bucket.New(fa, "images"), fa
}

func TestBucketFault_PutPayloadWrite(t *testing.T) {
	b, fa := newFaultyBucket(t)
	id := string(naming.Derive("images", "k"))
	fa.Fail(testkit.OpWrite, id, nil)

	err := b.PutObject(context.Background(), "k", []byte("x"))
	if !errors.Is(err, core.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if fa.Calls(testkit.OpWrite) != 1 {
		t.Errorf("sidecar must not be written after a payload failure, writes=%d", fa.Calls(testkit.OpWrite))
	}
}

func TestBucketFault_PutSidecarWrite(t *testing.T) {
	ctx := context.Background()
	b, fa := newFaultyBucket(t)
	id := naming.Derive("images", "k")
	fa.Fail(testkit.OpWrite, attributes.DerivePath(id), nil)

	if err := b.PutObject(ctx, "k", []byte("x")); !errors.Is(err, core.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}

	// The payload landed without a sidecar; reads report the inconsistency.
	fa.Heal()
	if _, _, err := b.GetObject(ctx, "k"); !errors.Is(err, core.ErrInternal) {
		t.Errorf("expected ErrInternal, got %v", err)
	}
}

func TestBucketFault_GetPayloadRead(t *testing.T) {
	ctx := context.Background()
	b, fa := newFaultyBucket(t)
	if err := b.PutObject(ctx, "k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	fa.Fail(testkit.OpRead, string(naming.Derive("images", "k")), nil)

	_, _, err := b.GetObject(ctx, "k")
	if !errors.Is(err, core.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if !strings.Contains(err.Error(), testkit.ErrInjectedFault.Error()) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestBucketFault_UpdateMetaRead(t *testing.T) {
	ctx := context.Background()
	b, fa := newFaultyBucket(t)
	if _, err := b.UpdateMeta(ctx, "k", map[string]string{"a": "1"}); err != nil {
		t.Fatal(err)
	}
	fa.Fail(testkit.OpRead, attributes.DerivePath(naming.Derive("images", "k")), nil)

	if _, err := b.UpdateMeta(ctx, "k", map[string]string{"b": "2"}); !errors.Is(err, core.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if fa.Calls(testkit.OpWrite) != 1 {
		t.Errorf("an unreadable sidecar must not be overwritten, writes=%d", fa.Calls(testkit.OpWrite))
	}
}

func TestBucketFault_DeleteSidecarRemove(t *testing.T) {
	ctx := context.Background()
	b, fa := newFaultyBucket(t)
	if err := b.PutObject(ctx, "k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	fa.Fail(testkit.OpRemove, attributes.DerivePath(naming.Derive("images", "k")), nil)

	if err := b.DeleteObject(ctx, "k"); !errors.Is(err, core.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	// The payload is gone even though the call failed.
	fa.Heal()
	if _, _, err := b.GetObject(ctx, "k"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBucketFault_DeletePayloadRemove(t *testing.T) {
	ctx := context.Background()
	b, fa := newFaultyBucket(t)
	if err := b.PutObject(ctx, "k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	fa.Fail(testkit.OpRemove, string(naming.Derive("images", "k")), nil)

	if err := b.DeleteObject(ctx, "k"); !errors.Is(err, core.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if fa.Calls(testkit.OpRemove) != 1 {
		t.Errorf("sidecar must survive a failed payload removal, removes=%d", fa.Calls(testkit.OpRemove))
	}
}

func TestBucketFault_ListDirectory(t *testing.T) {
	b, fa := newFaultyBucket(t)
	fa.Fail(testkit.OpList, "", nil)

	if _, err := b.ListObjects(context.Background(), ""); !errors.Is(err, core.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestBucketFault_ListSkipsUnreadableSidecar(t *testing.T) {
	ctx := context.Background()
	b, fa := newFaultyBucket(t)
	for _, k := range []string{"a", "b"} {
		if err := b.PutObject(ctx, k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	fa.Fail(testkit.OpRead, attributes.DerivePath(naming.Derive("images", "a")), nil)

	keys, err := b.ListObjects(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "b" {
		t.Errorf("got %v, want [b]", keys)
	}
}
