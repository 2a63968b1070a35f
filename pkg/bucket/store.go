package bucket

import (
	"context"
	"fmt"

	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/attributes"
	"github.com/agenthands/amane/pkg/catalog"
	"github.com/agenthands/amane/pkg/cidutil"
	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/metrics"
	"go.uber.org/zap"
)

// Store owns what every bucket of one data directory shares: the accessor,
// the optional name index, the lock table and the observability sinks.
type Store struct {
	acc     accessor.Accessor
	catalog catalog.Catalog
	limits  core.LimitsConfig
	locks   *KeyLocks
	metrics *metrics.Metrics
	log     *zap.Logger

	codec attributes.Codec
	cids  cidutil.Builder

	ownsCatalog bool
}

// NewStore wraps acc. Without WithLocks a fresh lock table is used.
func NewStore(acc accessor.Accessor, opts ...Option) *Store {
	s := &Store{
		acc:   acc,
		locks: NewKeyLocks(),
		log:   zap.NewNop(),
		cids:  cidutil.NewBuilder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codec = attributes.NewCodec(s.limits)
	return s
}

// Open builds a Store for cfg.Dir. With the index enabled the catalog is
// opened under cfg.IndexDir() and rebuilt from the sidecars before use, so
// files written while the index was off are visible.
func Open(ctx context.Context, cfg core.Config, opts ...Option) (*Store, error) {
	acc, err := accessor.NewDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	base := []Option{WithLimits(cfg.Limits)}
	if cfg.Locking.Disabled {
		base = append(base, WithLocks(nil))
	}
	s := NewStore(acc, append(base, opts...)...)

	if !cfg.Index.Enabled {
		return s, nil
	}

	cat, err := catalog.Open(cfg.IndexDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	s.catalog = cat
	s.ownsCatalog = true

	res, err := Rebuild(ctx, acc, cat)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}
	s.log.Info("index rebuilt",
		zap.String("dir", cfg.IndexDir()),
		zap.Int("indexed", res.Indexed),
		zap.Int("skipped", res.Skipped))
	return s, nil
}

// Bucket returns a handle on the named bucket. Handles are cheap and share
// the store's locks.
func (s *Store) Bucket(name string) *Bucket {
	return &Bucket{name: name, store: s}
}

func (s *Store) Accessor() accessor.Accessor { return s.acc }

// Catalog returns the name index, or nil in scan mode.
func (s *Store) Catalog() catalog.Catalog { return s.catalog }

// Close releases the index when the store opened it.
func (s *Store) Close() error {
	if s.catalog != nil && s.ownsCatalog {
		return s.catalog.Close()
	}
	return nil
}
