package core

import (
	"path/filepath"
	"time"
)

type Config struct {
	Dir string // flat data directory holding payloads and sidecars

	Server  ServerConfig
	Index   IndexConfig
	Limits  LimitsConfig
	Sweep   SweepConfig
	Log     LogConfig
	Locking LockingConfig
}

type ServerConfig struct {
	Bind            string
	MetaPrefix      string // request/response header prefix for user metadata
	FileField       string // multipart field carrying the payload
	MaxObjectBytes  int64
	ShutdownTimeout time.Duration
}

type IndexConfig struct {
	Enabled bool
	Dir     string
}

type LimitsConfig struct {
	MaxMetaEntries int
	MaxMetaKeyLen  int
	MaxMetaValLen  int
}

type SweepConfig struct {
	Enabled       bool
	RunEvery      time.Duration
	RemoveOrphans bool
}

type LogConfig struct {
	Level string
}

type LockingConfig struct {
	Disabled bool
}

const (
	DefaultBind       = "0.0.0.0:8080"
	DefaultDir        = "./tmp"
	DefaultMetaPrefix = "x-amn-meta-"
	DefaultFileField  = "file"
	DefaultLogLevel   = "info"
)

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Dir: DefaultDir,
		Server: ServerConfig{
			Bind:            DefaultBind,
			MetaPrefix:      DefaultMetaPrefix,
			FileField:       DefaultFileField,
			MaxObjectBytes:  64 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Sweep: SweepConfig{
			RunEvery: time.Hour,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// IndexDir resolves the index directory. The index never lives inside the
// flat data directory.
func (c Config) IndexDir() string {
	if c.Index.Dir != "" {
		return c.Index.Dir
	}
	return filepath.Clean(c.Dir) + ".index"
}
