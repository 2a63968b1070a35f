package sweep_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agenthands/amane/internal/testkit"
	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/attributes"
	"github.com/agenthands/amane/pkg/bucket"
	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/metrics"
	"github.com/agenthands/amane/pkg/naming"
	"github.com/agenthands/amane/pkg/sweep"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// seed writes one healthy object, one sidecar-only object, one payload-only
// object, one corrupt sidecar and one foreign file.
func seed(t *testing.T) (accessor.Accessor, string) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	acc, err := accessor.NewDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	b := bucket.New(acc, "images")

	if err := b.PutObject(ctx, "healthy", []byte("ok")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.UpdateMeta(ctx, "sidecar-only", map[string]string{"a": "1"}); err != nil {
		t.Fatal(err)
	}
	if err := b.PutObject(ctx, "payload-only", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := acc.Remove(ctx, attributes.DerivePath(naming.Derive("images", "payload-only"))); err != nil {
		t.Fatal(err)
	}
	if err := b.PutObject(ctx, "corrupt", []byte("y")); err != nil {
		t.Fatal(err)
	}
	if err := testkit.CorruptFile(dir, attributes.DerivePath(naming.Derive("images", "corrupt"))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}
	return acc, dir
}

func TestRunOnce_Classifies(t *testing.T) {
	acc, dir := seed(t)
	reg := prometheus.NewRegistry()
	r := sweep.NewRunner(core.SweepConfig{}, acc, sweep.WithMetrics(metrics.New(reg)))

	res, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if res.Scanned != 7 {
		t.Errorf("Scanned = %d, want 7", res.Scanned)
	}
	if len(res.OrphanSidecars) != 1 || res.OrphanSidecars[0] != naming.Derive("images", "sidecar-only") {
		t.Errorf("OrphanSidecars = %v", res.OrphanSidecars)
	}
	if len(res.OrphanPayloads) != 1 || res.OrphanPayloads[0] != naming.Derive("images", "payload-only") {
		t.Errorf("OrphanPayloads = %v", res.OrphanPayloads)
	}
	if len(res.Corrupt) != 1 || res.Corrupt[0] != naming.Derive("images", "corrupt") {
		t.Errorf("Corrupt = %v", res.Corrupt)
	}
	if len(res.Foreign) != 1 || res.Foreign[0] != "README" {
		t.Errorf("Foreign = %v", res.Foreign)
	}
	if res.Removed != 0 || res.Clean() {
		t.Errorf("unexpected result: %+v", res)
	}

	// Report only: nothing was touched.
	payloads, sidecars, _ := testkit.DirEntries(dir)
	if len(payloads) != 4 || len(sidecars) != 3 {
		t.Errorf("payloads=%d sidecars=%d", len(payloads), len(sidecars))
	}

	expected := `
# HELP amane_sweep_orphan_sidecars Sidecars without a payload found by the last sweep
# TYPE amane_sweep_orphan_sidecars gauge
amane_sweep_orphan_sidecars 1
# HELP amane_sweep_runs_total Completed consistency sweeps
# TYPE amane_sweep_runs_total counter
amane_sweep_runs_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"amane_sweep_orphan_sidecars", "amane_sweep_runs_total"); err != nil {
		t.Error(err)
	}
}

func TestRunOnce_RemoveOrphans(t *testing.T) {
	ctx := context.Background()
	acc, dir := seed(t)
	r := sweep.NewRunner(core.SweepConfig{RemoveOrphans: true}, acc, sweep.WithLocks(bucket.NewKeyLocks()))

	res, err := r.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", res.Removed)
	}

	if _, err := os.Stat(filepath.Join(dir, attributes.DerivePath(naming.Derive("images", "sidecar-only")))); !os.IsNotExist(err) {
		t.Errorf("orphan sidecar still present: %v", err)
	}
	// Payload-only and corrupt objects are reported, never deleted.
	for _, key := range []string{"payload-only", "corrupt"} {
		if _, err := os.Stat(filepath.Join(dir, string(naming.Derive("images", key)))); err != nil {
			t.Errorf("%s payload removed: %v", key, err)
		}
	}

	res, err = r.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.OrphanSidecars) != 0 || res.Removed != 0 {
		t.Errorf("second pass: %+v", res)
	}
}

func TestRunOnce_EmptyDir(t *testing.T) {
	acc, err := accessor.NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	res, err := sweep.NewRunner(core.SweepConfig{}, acc).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Clean() || res.Scanned != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRunOnce_ListFault(t *testing.T) {
	acc, _ := seed(t)
	fa := testkit.NewFaultyAccessor(acc)
	fa.Fail(testkit.OpList, "", nil)

	_, err := sweep.NewRunner(core.SweepConfig{}, fa).RunOnce(context.Background())
	if !errors.Is(err, testkit.ErrInjectedFault) {
		t.Fatalf("expected injected fault, got %v", err)
	}
}

func TestRunOnce_RemoveFault(t *testing.T) {
	acc, _ := seed(t)
	fa := testkit.NewFaultyAccessor(acc)
	fa.Fail(testkit.OpRemove, "", nil)

	_, err := sweep.NewRunner(core.SweepConfig{RemoveOrphans: true}, fa).RunOnce(context.Background())
	if !errors.Is(err, core.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestRunner_StartStop(t *testing.T) {
	acc, _ := seed(t)
	reg := prometheus.NewRegistry()
	r := sweep.NewRunner(core.SweepConfig{Enabled: true, RunEvery: 10 * time.Millisecond}, acc,
		sweep.WithMetrics(metrics.New(reg)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	r.Start(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mfs, err := reg.Gather()
		if err != nil {
			t.Fatal(err)
		}
		if runs(mfs) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	r.Stop()
	r.Stop()

	mfs, _ := reg.Gather()
	if runs(mfs) == 0 {
		t.Fatal("no sweep ran")
	}
}

func TestRunner_DisabledStartIsNoop(t *testing.T) {
	acc, _ := seed(t)
	r := sweep.NewRunner(core.SweepConfig{RunEvery: time.Millisecond}, acc)
	r.Start(context.Background())
	r.Stop()
}
