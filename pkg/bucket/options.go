package bucket

import (
	"github.com/agenthands/amane/pkg/catalog"
	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/metrics"
	"go.uber.org/zap"
)

// Option configures a Store and the buckets it hands out.
type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCatalog switches listing from directory scans to the given index.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

func WithLimits(limits core.LimitsConfig) Option {
	return func(s *Store) { s.limits = limits }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLocks replaces the per-key lock table; nil disables in-process locking.
func WithLocks(l *KeyLocks) Option {
	return func(s *Store) { s.locks = l }
}
