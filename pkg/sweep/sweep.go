// Package sweep checks a data directory for objects whose payload and
// sidecar disagree, which is what an interrupted two-file write leaves
// behind.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/attributes"
	"github.com/agenthands/amane/pkg/bucket"
	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/metrics"
	"github.com/agenthands/amane/pkg/naming"
	"go.uber.org/zap"
)

// Result lists what one pass found. Identifiers are sorted.
type Result struct {
	Scanned        int
	OrphanSidecars []core.ObjectID // sidecar without payload
	OrphanPayloads []core.ObjectID // payload without sidecar
	Corrupt        []core.ObjectID // sidecar that does not decode
	Foreign        []string        // entries that are not object files
	Removed        int
}

// Clean reports whether the pass found nothing to flag.
func (r Result) Clean() bool {
	return len(r.OrphanSidecars)+len(r.OrphanPayloads)+len(r.Corrupt) == 0
}

// Runner defines the sweep interface.
type Runner interface {
	RunOnce(ctx context.Context) (Result, error)
	Start(ctx context.Context)
	Stop()
}

type Option func(*runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *runner) { r.metrics = m }
}

// WithLocks makes removals take the same per-key locks as the buckets
// writing to acc.
func WithLocks(l *bucket.KeyLocks) Option {
	return func(r *runner) { r.locks = l }
}

type runner struct {
	cfg     core.SweepConfig
	acc     accessor.Accessor
	locks   *bucket.KeyLocks
	metrics *metrics.Metrics
	log     *zap.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewRunner creates a sweeper over acc.
func NewRunner(cfg core.SweepConfig, acc accessor.Accessor, opts ...Option) Runner {
	if cfg.RunEvery <= 0 {
		cfg.RunEvery = time.Hour
	}
	r := &runner{
		cfg:    cfg,
		acc:    acc,
		log:    zap.NewNop(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *runner) RunOnce(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res Result

	entries, err := r.acc.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list data directory: %w", err)
	}
	res.Scanned = len(entries)

	payloads := make(map[core.ObjectID]struct{})
	sidecars := make(map[core.ObjectID]string)
	for _, name := range entries {
		switch {
		case naming.IsObjectID(name):
			payloads[core.ObjectID(name)] = struct{}{}
		case attributes.IsSidecar(name) && naming.IsObjectID(string(attributes.ObjectIDOf(name))):
			sidecars[attributes.ObjectIDOf(name)] = name
		default:
			res.Foreign = append(res.Foreign, name)
		}
	}

	for id := range payloads {
		if _, ok := sidecars[id]; !ok {
			res.OrphanPayloads = append(res.OrphanPayloads, id)
		}
	}

	for id, name := range sidecars {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw, err := r.acc.Read(ctx, name)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to read sidecar %s: %w", name, err)
		}
		if _, err := attributes.FromBytes(raw); err != nil {
			res.Corrupt = append(res.Corrupt, id)
			continue
		}
		if _, ok := payloads[id]; !ok {
			res.OrphanSidecars = append(res.OrphanSidecars, id)
		}
	}

	sortIDs(res.OrphanPayloads)
	sortIDs(res.OrphanSidecars)
	sortIDs(res.Corrupt)
	sort.Strings(res.Foreign)

	if r.cfg.RemoveOrphans {
		for _, id := range res.OrphanSidecars {
			removed, err := r.removeOrphan(ctx, id)
			if err != nil {
				return res, err
			}
			if removed {
				res.Removed++
			}
		}
	}

	r.metrics.ObserveSweep(len(res.OrphanSidecars), len(res.OrphanPayloads), len(res.Corrupt), res.Removed)
	fields := []zap.Field{
		zap.Int("scanned", res.Scanned),
		zap.Int("orphan_sidecars", len(res.OrphanSidecars)),
		zap.Int("orphan_payloads", len(res.OrphanPayloads)),
		zap.Int("corrupt", len(res.Corrupt)),
		zap.Int("foreign", len(res.Foreign)),
		zap.Int("removed", res.Removed),
	}
	if res.Clean() {
		r.log.Info("sweep finished", fields...)
	} else {
		r.log.Warn("sweep found inconsistent objects", fields...)
	}
	return res, nil
}

// removeOrphan deletes the sidecar of id unless a payload appeared since
// the listing.
func (r *runner) removeOrphan(ctx context.Context, id core.ObjectID) (bool, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	if _, err := r.acc.Size(ctx, string(id)); err == nil {
		return false, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return false, fmt.Errorf("failed to stat payload %s: %w", id, err)
	}

	if err := r.acc.Remove(ctx, attributes.DerivePath(id)); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove sidecar of %s: %w", id, err)
	}
	r.log.Debug("orphan sidecar removed", zap.String("id", id.String()))
	return true, nil
}

func (r *runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running || r.stopped || !r.cfg.Enabled {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.cfg.RunEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
					r.log.Error("sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop ends the periodic loop and waits for a pass in progress. A stopped
// runner cannot be restarted.
func (r *runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.stopped = true
	close(r.stopCh)
	r.mu.Unlock()
	<-r.done
}

func sortIDs(ids []core.ObjectID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
