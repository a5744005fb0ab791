// Package config loads application configuration from an optional YAML file
// and environment variables. Environment variables always override file
// values, and every setting has a working default, so a bare process starts
// with the local engine only.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"switchyard/internal/probe"
)

const (
	defaultListenAddr       = ":8080"
	defaultWorkerListenAddr = ":8081"
	defaultDBPath           = "switchyard.db"
	defaultProbeTimeout     = 5 * time.Second
	defaultClusterShards    = 4

	envConfigFile       = "SWITCHYARD_CONFIG"
	envListenAddr       = "SWITCHYARD_LISTEN_ADDR"
	envWorkerListenAddr = "SWITCHYARD_WORKER_LISTEN_ADDR"
	envDBPath           = "SWITCHYARD_DB_PATH"
	envLogLevel         = "SWITCHYARD_LOG_LEVEL"
	envClusterEndpoint  = "SWITCHYARD_CLUSTER_ENDPOINT"
	envClusterEnabled   = "SWITCHYARD_CLUSTER_ENABLED"
	envClusterShards    = "SWITCHYARD_CLUSTER_SHARDS"
	envProbeTimeoutS    = "SWITCHYARD_PROBE_TIMEOUT_S"
)

// CapCluster is the capability flag reported by the environment probe when
// the distributed engine is compiled into the selection order.
const CapCluster = "cluster"

// Config holds application configuration.
type Config struct {
	ListenAddr       string
	WorkerListenAddr string
	DBPath           string
	LogLevel         slog.Level
	ClusterEndpoint  string
	ClusterEnabled   bool
	ClusterShards    int
	ProbeTimeout     time.Duration
}

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// "absent" from zero values.
type fileConfig struct {
	ListenAddr       string `yaml:"listen_addr"`
	WorkerListenAddr string `yaml:"worker_listen_addr"`
	DBPath           string `yaml:"db_path"`
	LogLevel         string `yaml:"log_level"`
	ClusterEndpoint  string `yaml:"cluster_endpoint"`
	ClusterEnabled   *bool  `yaml:"cluster_enabled"`
	ClusterShards    int    `yaml:"cluster_shards"`
	ProbeTimeoutS    int    `yaml:"probe_timeout_s"`
}

// Load reads configuration from the optional YAML file named by
// SWITCHYARD_CONFIG, then applies environment variable overrides.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:       defaultListenAddr,
		WorkerListenAddr: defaultWorkerListenAddr,
		DBPath:           defaultDBPath,
		LogLevel:         slog.LevelInfo,
		ClusterEnabled:   true,
		ClusterShards:    defaultClusterShards,
		ProbeTimeout:     defaultProbeTimeout,
	}

	if path := os.Getenv(envConfigFile); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.WorkerListenAddr != "" {
		cfg.WorkerListenAddr = fc.WorkerListenAddr
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(fc.LogLevel)
	}
	if fc.ClusterEndpoint != "" {
		cfg.ClusterEndpoint = fc.ClusterEndpoint
	}
	if fc.ClusterEnabled != nil {
		cfg.ClusterEnabled = *fc.ClusterEnabled
	}
	if fc.ClusterShards > 0 {
		cfg.ClusterShards = fc.ClusterShards
	}
	if fc.ProbeTimeoutS > 0 {
		cfg.ProbeTimeout = time.Duration(fc.ProbeTimeoutS) * time.Second
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envWorkerListenAddr); v != "" {
		cfg.WorkerListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envClusterEndpoint); v != "" {
		cfg.ClusterEndpoint = v
	}
	if v := os.Getenv(envClusterEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ClusterEnabled = b
		}
	}
	if v := os.Getenv(envClusterShards); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClusterShards = n
		}
	}
	if v := os.Getenv(envProbeTimeoutS); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ProbeTimeout = time.Duration(n) * time.Second
		}
	}
}

// ProbeSettings derives the environment probe's view of this configuration.
func (c Config) ProbeSettings() probe.Settings {
	return probe.Settings{
		Endpoint: c.ClusterEndpoint,
		Capabilities: map[string]bool{
			CapCluster: c.ClusterEnabled,
		},
		DialTimeout: c.ProbeTimeout,
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
