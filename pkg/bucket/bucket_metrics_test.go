package bucket_test

import (
	"context"
	"strings"
	"testing"

	"github.com/agenthands/amane/internal/testkit"
	"github.com/agenthands/amane/pkg/attributes"
	"github.com/agenthands/amane/pkg/bucket"
	"github.com/agenthands/amane/pkg/metrics"
	"github.com/agenthands/amane/pkg/naming"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBucket_ObservesOperations(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	core, logs := observer.New(zap.WarnLevel)

	b, dir := newDirBucket(t, "images",
		bucket.WithMetrics(metrics.New(reg)),
		bucket.WithLogger(zap.New(core)))

	if err := b.PutObject(ctx, "a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := b.PutObject(ctx, "b", []byte("y")); err != nil {
		t.Fatal(err)
	}
	_, _, _ = b.GetObject(ctx, "missing")
	if err := testkit.CorruptFile(dir, attributes.DerivePath(naming.Derive("images", "b"))); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ListObjects(ctx, ""); err != nil {
		t.Fatal(err)
	}

	expected := `
# HELP amane_bucket_list_skipped_sidecars_total Sidecars dropped from listings because they could not be read or decoded
# TYPE amane_bucket_list_skipped_sidecars_total counter
amane_bucket_list_skipped_sidecars_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "amane_bucket_list_skipped_sidecars_total"); err != nil {
		t.Error(err)
	}

	expected = `
# HELP amane_bucket_operations_total Bucket operations by operation and outcome
# TYPE amane_bucket_operations_total counter
amane_bucket_operations_total{op="get",outcome="not_found"} 1
amane_bucket_operations_total{op="list",outcome="ok"} 1
amane_bucket_operations_total{op="put",outcome="ok"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "amane_bucket_operations_total"); err != nil {
		t.Error(err)
	}

	if n := logs.FilterMessage("sidecars skipped during listing").Len(); n != 1 {
		t.Errorf("expected one skip warning, got %d", n)
	}
}
