/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
	"gopkg.in/yaml.v3"
)

const defaultTileSize = 1024
const defaultMaxFrames = 300
const defaultStreamBufferSize = 30
const defaultStreamRetainedSessions = 1024
const defaultListenAddr = "0.0.0.0:8080"
const defaultLogOrigin = "provenance.local/log"

// Log is the configured logger
var Log *logger.Logger

// Config holds the runtime configuration for the provenance services; it is
// resolved from the environment and optionally overlaid with a yaml file
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	StoreProvider string `yaml:"store_provider"`
	SQLitePath    string `yaml:"sqlite_path"`

	TileSize      int    `yaml:"tile_size"`
	HashAlgorithm string `yaml:"hash_algorithm"`

	MaxFrames              int  `yaml:"max_frames"`
	StreamBufferSize       int  `yaml:"stream_buffer_size"`
	StreamStrictContinuity bool `yaml:"stream_strict_continuity"`
	StreamRetainedSessions int  `yaml:"stream_retained_sessions"`

	LogOrigin             string `yaml:"log_origin"`
	SigningKeyPath        string `yaml:"signing_key_path"`
	SigningKeyName        string `yaml:"signing_key_name"`
	SigningKeyAgeIdentity string `yaml:"signing_key_age_identity"`

	ZKPProvider      string `yaml:"zkp_provider"`
	ZKPCurve         string `yaml:"zkp_curve"`
	ZKPProvingScheme string `yaml:"zkp_proving_scheme"`

	DispatchNotifications bool `yaml:"dispatch_notifications"`
	ConsumeNotifications  bool `yaml:"consume_notifications"`
}

func init() {
	godotenv.Load()

	requireLogger()
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("provenance", lvl, endpoint)
}

// DefaultConfig returns the configuration used when nothing is set in the environment
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:             defaultListenAddr,
		StoreProvider:          "memory",
		TileSize:               defaultTileSize,
		HashAlgorithm:          "sha256",
		MaxFrames:              defaultMaxFrames,
		StreamBufferSize:       defaultStreamBufferSize,
		StreamRetainedSessions: defaultStreamRetainedSessions,
		LogOrigin:              defaultLogOrigin,
		SigningKeyName:         defaultLogOrigin,
		ZKPCurve:               "bn254",
		ZKPProvingScheme:       "groth16",
	}
}

// LoadConfig resolves the configuration from the environment; when
// PROVENANCE_CONFIG_PATH is set, the referenced yaml file is applied on top
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("PROVENANCE_CONFIG_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s; %s", path, err.Error())
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s; %s", path, err.Error())
		}
	}

	envString("LISTEN_ADDR", &cfg.ListenAddr)
	envString("STORE_PROVIDER", &cfg.StoreProvider)
	envString("SQLITE_PATH", &cfg.SQLitePath)
	envString("HASH_ALGORITHM", &cfg.HashAlgorithm)
	envString("LOG_ORIGIN", &cfg.LogOrigin)
	envString("SIGNING_KEY_PATH", &cfg.SigningKeyPath)
	envString("SIGNING_KEY_NAME", &cfg.SigningKeyName)
	envString("SIGNING_KEY_AGE_IDENTITY", &cfg.SigningKeyAgeIdentity)
	envString("ZKP_PROVIDER", &cfg.ZKPProvider)
	envString("ZKP_CURVE", &cfg.ZKPCurve)
	envString("ZKP_PROVING_SCHEME", &cfg.ZKPProvingScheme)

	for key, dst := range map[string]*int{
		"TILE_SIZE":                &cfg.TileSize,
		"MAX_FRAMES":               &cfg.MaxFrames,
		"STREAM_BUFFER_SIZE":       &cfg.StreamBufferSize,
		"STREAM_RETAINED_SESSIONS": &cfg.StreamRetainedSessions,
	} {
		if err := envInt(key, dst); err != nil {
			return nil, err
		}
	}

	cfg.StreamStrictContinuity = cfg.StreamStrictContinuity || envBool("STREAM_STRICT_CONTINUITY")
	cfg.DispatchNotifications = cfg.DispatchNotifications || envBool("DISPATCH_NATS_NOTIFICATIONS")
	cfg.ConsumeNotifications = cfg.ConsumeNotifications || envBool("CONSUME_NATS_STREAMING_SUBSCRIPTIONS")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration cannot be used
func (c *Config) Validate() error {
	if c.TileSize <= 0 {
		return fmt.Errorf("invalid tile size: %d", c.TileSize)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("invalid max frames: %d", c.MaxFrames)
	}
	if c.StreamBufferSize <= 0 {
		return fmt.Errorf("invalid stream buffer size: %d", c.StreamBufferSize)
	}
	if c.StreamRetainedSessions < 0 {
		return fmt.Errorf("invalid stream retained sessions: %d", c.StreamRetainedSessions)
	}

	switch strings.ToLower(c.StoreProvider) {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported store provider: %s", c.StoreProvider)
	}

	if strings.ToLower(c.StoreProvider) == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("sqlite store provider requires SQLITE_PATH")
	}

	return nil
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("failed to parse %s; %s", key, err.Error())
	}

	*dst = i
	return nil
}

func envBool(key string) bool {
	return strings.ToLower(os.Getenv(key)) == "true"
}
