package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agenthands/amane/pkg/core"
	"github.com/spf13/viper"
)

const envPrefix = "AMANE"

// Configuration keys. Nested keys map to AMANE_<SECTION>_<NAME>.
const (
	keyConfig          = "config"
	keyBind            = "bind"
	keyDirectory       = "directory"
	keyLogLevel        = "log_level"
	keyMetaPrefix      = "meta_prefix"
	keyFileField       = "file_field"
	keyMaxObjectBytes  = "max_object_bytes"
	keyShutdownTimeout = "shutdown_timeout"
	keyIndex           = "index.enabled"
	keyIndexDir        = "index.dir"
	keySweepEvery      = "sweep.every"
	keyRemoveOrphans   = "sweep.remove_orphans"
	keyMaxMetaEntries  = "limits.max_meta_entries"
	keyMaxMetaKeyLen   = "limits.max_meta_key_len"
	keyMaxMetaValLen   = "limits.max_meta_val_len"
	keyNoLocks         = "locking.disabled"
)

func newViper() *viper.Viper {
	def := core.DefaultConfig()
	v := viper.New()
	v.SetDefault(keyBind, def.Server.Bind)
	v.SetDefault(keyDirectory, def.Dir)
	v.SetDefault(keyLogLevel, def.Log.Level)
	v.SetDefault(keyMetaPrefix, def.Server.MetaPrefix)
	v.SetDefault(keyFileField, def.Server.FileField)
	v.SetDefault(keyMaxObjectBytes, def.Server.MaxObjectBytes)
	v.SetDefault(keyShutdownTimeout, def.Server.ShutdownTimeout)
	v.SetDefault(keyIndex, false)
	v.SetDefault(keyIndexDir, "")
	v.SetDefault(keySweepEvery, 0)
	v.SetDefault(keyRemoveOrphans, false)
	v.SetDefault(keyMaxMetaEntries, 0)
	v.SetDefault(keyMaxMetaKeyLen, 0)
	v.SetDefault(keyMaxMetaValLen, 0)
	v.SetDefault(keyNoLocks, false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// readConfigFile loads an explicit file, or amane.yaml from the search path
// when one exists.
func readConfigFile(v *viper.Viper) error {
	if file := v.GetString(keyConfig); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("amane")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.amane")
		v.AddConfigPath("/etc/amane")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func configFrom(v *viper.Viper) (core.Config, error) {
	cfg := core.DefaultConfig()
	cfg.Dir = v.GetString(keyDirectory)
	cfg.Log.Level = v.GetString(keyLogLevel)

	cfg.Server.Bind = v.GetString(keyBind)
	cfg.Server.MetaPrefix = v.GetString(keyMetaPrefix)
	cfg.Server.FileField = v.GetString(keyFileField)
	cfg.Server.MaxObjectBytes = v.GetInt64(keyMaxObjectBytes)
	cfg.Server.ShutdownTimeout = v.GetDuration(keyShutdownTimeout)

	cfg.Index.Enabled = v.GetBool(keyIndex)
	cfg.Index.Dir = v.GetString(keyIndexDir)

	if every := v.GetDuration(keySweepEvery); every > 0 {
		cfg.Sweep.Enabled = true
		cfg.Sweep.RunEvery = every
	}
	cfg.Sweep.RemoveOrphans = v.GetBool(keyRemoveOrphans)

	cfg.Limits = core.LimitsConfig{
		MaxMetaEntries: v.GetInt(keyMaxMetaEntries),
		MaxMetaKeyLen:  v.GetInt(keyMaxMetaKeyLen),
		MaxMetaValLen:  v.GetInt(keyMaxMetaValLen),
	}
	cfg.Locking.Disabled = v.GetBool(keyNoLocks)

	if cfg.Dir == "" {
		return cfg, fmt.Errorf("%w: data directory must not be empty", core.ErrInvalidInput)
	}
	if cfg.Server.MetaPrefix == "" {
		return cfg, fmt.Errorf("%w: meta prefix must not be empty", core.ErrInvalidInput)
	}
	return cfg, nil
}
