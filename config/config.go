// Package config loads the engine's tunable defaults - heartbeat interval,
// the allow_lower_seqnum_logon bit, and the logger's compaction_size - from
// YAML/env via viper, centralizing config in one typed loader rather than
// scattering flag.Parse calls.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Engine holds the typed configuration values left as per-deployment
// choices rather than fixed constants.
type Engine struct {
	// HeartbeatInterval is the negotiated default heartbeat period; sessions
	// may override it during logon negotiation.
	HeartbeatInterval time.Duration

	// AllowLowerSeqNumLogon controls an open behavioral choice: when false
	// (the default), a Logon whose MsgSeqNum is below the expected value is
	// rejected rather than accepted as an implicit reset.
	AllowLowerSeqNumLogon bool

	// CompactionSize is the logger's cap on buffered payload bytes - buffer
	// position stays at or below this, since arrivals past it are
	// backpressured.
	CompactionSize int

	// SnowflakeNodeID distinguishes this process's idgen.ConnectionIDs
	// generator from siblings sharing a cluster.
	SnowflakeNodeID int64
}

const (
	defaultHeartbeatInterval           = 30 * time.Second
	defaultAllowLowerSeqNumLogon       = false
	defaultCompactionSize              = 64 * 1024
	defaultSnowflakeNodeID       int64 = 0
)

// Load reads configuration from the given file path (if non-empty),
// environment variables prefixed FIXENGINE_, and falls back to defaults for
// anything unset. A missing optional config file is not an error; a
// malformed one is.
func Load(path string) (*Engine, error) {
	v := viper.New()
	v.SetEnvPrefix("FIXENGINE")
	v.AutomaticEnv()

	v.SetDefault("heartbeat_interval", defaultHeartbeatInterval)
	v.SetDefault("allow_lower_seqnum_logon", defaultAllowLowerSeqNumLogon)
	v.SetDefault("compaction_size", defaultCompactionSize)
	v.SetDefault("snowflake_node_id", defaultSnowflakeNodeID)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	return &Engine{
		HeartbeatInterval:     v.GetDuration("heartbeat_interval"),
		AllowLowerSeqNumLogon: v.GetBool("allow_lower_seqnum_logon"),
		CompactionSize:        v.GetInt("compaction_size"),
		SnowflakeNodeID:       v.GetInt64("snowflake_node_id"),
	}, nil
}

// Default returns the engine configuration with no file or environment
// overrides applied, used by tests that don't care about configurability.
func Default() *Engine {
	eng, err := Load("")
	if err != nil {
		// Load("") never touches a real file, so this can't happen outside
		// a programmer error (e.g. a bad SetDefault type).
		panic(err)
	}
	return eng
}
