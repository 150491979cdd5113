// Package config holds notifio's runtime settings.
//
// Tunables (intervals, buffer sizes, the registry base directory) come from
// viper with NOTIFIO_-prefixed environment overrides. The user identity is
// deliberately not a viper key: LOGNAME selects the shared per-user registry
// directory and is part of the on-disk protocol, so it is read and validated
// directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvUser is the environment variable naming the per-user registry.
const EnvUser = "LOGNAME"

// Fatal configuration errors, reported before any registry interaction.
var (
	ErrUserUnset   = errors.New(EnvUser + " is unset")
	ErrUserInvalid = errors.New(EnvUser + " contains a slash")
)

// Settings is the resolved runtime configuration.
type Settings struct {
	// User is the validated LOGNAME value.
	User string
	// Dir is the per-user registry directory, e.g. /tmp/notifydb.alice.
	Dir string
	// HeartbeatInterval is the delay between presence-record refreshes.
	// A record older than twice this interval is considered stale.
	HeartbeatInterval time.Duration
	// PollInterval is how long the listener sleeps after an empty read.
	PollInterval time.Duration
	// ReadBuffer is the maximum number of notification bytes consumed
	// per read from the channel.
	ReadBuffer int
	// LogLevel controls the structured logger.
	LogLevel string
}

// SetDefaults registers default values for all configuration keys.
// Call before Load, typically from cobra.OnInitialize.
func SetDefaults() {
	viper.SetDefault("heartbeat_interval", 15*time.Second)
	viper.SetDefault("poll_interval", 50*time.Millisecond)
	viper.SetDefault("read_buffer", 16)
	viper.SetDefault("base_dir", "/tmp")
	viper.SetDefault("log_level", "WARN")
}

// Init wires viper to the environment. Keys become NOTIFIO_HEARTBEAT_INTERVAL,
// NOTIFIO_LOG_LEVEL, and so on.
func Init() {
	SetDefaults()
	viper.SetEnvPrefix("NOTIFIO")
	viper.AutomaticEnv()
}

// Load validates the user identity and resolves the full settings.
// Returns ErrUserUnset or ErrUserInvalid on a fatal misconfiguration.
func Load() (*Settings, error) {
	user := os.Getenv(EnvUser)
	if user == "" {
		return nil, ErrUserUnset
	}
	if strings.ContainsRune(user, os.PathSeparator) {
		return nil, ErrUserInvalid
	}

	s := &Settings{
		User:              user,
		Dir:               filepath.Join(viper.GetString("base_dir"), "notifydb."+user),
		HeartbeatInterval: viper.GetDuration("heartbeat_interval"),
		PollInterval:      viper.GetDuration("poll_interval"),
		ReadBuffer:        viper.GetInt("read_buffer"),
		LogLevel:          viper.GetString("log_level"),
	}

	if s.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("heartbeat_interval must be positive, got %s", s.HeartbeatInterval)
	}
	if s.PollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive, got %s", s.PollInterval)
	}
	if s.ReadBuffer <= 0 {
		return nil, fmt.Errorf("read_buffer must be positive, got %d", s.ReadBuffer)
	}

	return s, nil
}
