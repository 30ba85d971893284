// SPDX-License-Identifier: AGPL-3.0-or-later
// tgnet-e2e - Terragraph end-to-end control plane
// Copyright (C) 2026 Terragraph Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package config holds the process-wide Config struct, loaded once from
// environment variables and published through an atomic singleton so every
// app goroutine can read it without a lock.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Config stores controller/minion process configuration. Both binaries share
// this struct; fields irrelevant to a given role are simply left at default.
type Config struct {
	NodeID string

	// Transport
	MinionRouterPort int
	AppRouterPort    int
	EventPubPort     int
	ControllerHost   string

	// Intervals
	StatusReportInterval     time.Duration
	FullStatusReportInterval time.Duration
	NodeAliveTimeout         time.Duration
	LinkUpInterval           time.Duration
	DampenInterval           time.Duration
	ExtendedDampenInterval   time.Duration
	ExtendedDampenFailure    time.Duration
	BackupCnLinkInterval     time.Duration
	BfTimeout                time.Duration
	P2mpAssocDelay           time.Duration
	TopologyInfoSyncInterval time.Duration
	RoutingAdjacenciesDump   time.Duration
	TopologyReportInterval   time.Duration
	CtrlSocketTimeout        time.Duration
	GoldenImageSweepInterval time.Duration

	IgnoreDampenIntervalAfterResp bool

	// Binary-star HA
	BstarEnabled  bool
	BstarPeerAddr string
	BstarPrimary  bool

	// Feature flags
	EnableAirtimeAutoAlloc        bool
	EnableCentralizedPrefixAlloc  bool
	EnableDeterministicPrefixAlloc bool

	ControllerConfigFile string

	// Ambient
	LogLevel     string
	OTLPEndpoint string
	HTTPPort     int
	MetricsPort  int
	PostgresDSN  string
	SQLitePath   string

	// Routing KV (per-minion Open/R KV store access)
	RedisEnabled bool
	RedisHost    string
	RedisPort    int
	RedisPassword string
}

var currentConfig atomic.Value //nolint:gochecknoglobals
var loaded atomic.Bool         //nolint:gochecknoglobals

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(secs) * time.Second
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func loadConfig() Config {
	return Config{
		NodeID:           os.Getenv("NODE_ID"),
		MinionRouterPort: intEnv("MINION_ROUTER_PORT", 7007),
		AppRouterPort:    intEnv("APP_ROUTER_PORT", 17077),
		EventPubPort:     intEnv("EVENT_PUB_PORT", 17078),
		ControllerHost:   os.Getenv("CONTROLLER_HOST"),

		StatusReportInterval:     durationEnv("STATUS_REPORT_INTERVAL", 5*time.Second),
		FullStatusReportInterval: durationEnv("FULL_STATUS_REPORT_INTERVAL", 3600*time.Second),
		NodeAliveTimeout:         durationEnv("NODE_ALIVE_TIMEOUT", 30*time.Second),
		LinkUpInterval:           durationEnv("LINK_UP_INTERVAL", 5*time.Second),
		DampenInterval:           durationEnv("DAMPEN_INTERVAL", 10*time.Second),
		ExtendedDampenInterval:   durationEnv("EXTENDED_DAMPEN_INTERVAL", 300*time.Second),
		ExtendedDampenFailure:    durationEnv("EXTENDED_DAMPEN_FAILURE_INTERVAL", 1800*time.Second),
		BackupCnLinkInterval:     durationEnv("BACKUP_CN_LINK_INTERVAL", 300*time.Second),
		BfTimeout:                durationEnv("BF_TIMEOUT", 15*time.Second),
		P2mpAssocDelay:           durationEnv("P2MP_ASSOC_DELAY", 2*time.Second),
		TopologyInfoSyncInterval: durationEnv("TOPOLOGY_INFO_SYNC_INTERVAL", 300*time.Second),
		RoutingAdjacenciesDump:   durationEnv("ROUTING_ADJACENCIES_DUMP_INTERVAL", 30*time.Second),
		TopologyReportInterval:   durationEnv("TOPOLOGY_REPORT_INTERVAL", 30*time.Second),
		CtrlSocketTimeout:        durationEnv("CTRL_SOCKET_TIMEOUT", 20*time.Second),
		GoldenImageSweepInterval: durationEnv("GOLDEN_IMAGE_SWEEP_INTERVAL", 3600*time.Second),

		IgnoreDampenIntervalAfterResp: boolEnv("IGNORE_DAMPEN_INTERVAL_AFTER_RESP", false),

		BstarEnabled:  boolEnv("BSTAR_ENABLED", false),
		BstarPeerAddr: os.Getenv("BSTAR_PEER_ADDR"),
		BstarPrimary:  boolEnv("BSTAR_PRIMARY", true),

		EnableAirtimeAutoAlloc:        boolEnv("ENABLE_AIRTIME_AUTO_ALLOC", false),
		EnableCentralizedPrefixAlloc:  boolEnv("ENABLE_CENTRALIZED_PREFIX_ALLOC", false),
		EnableDeterministicPrefixAlloc: boolEnv("ENABLE_DETERMINISTIC_PREFIX_ALLOC", false),

		ControllerConfigFile: os.Getenv("CONTROLLER_CONFIG_FILE"),

		LogLevel:     os.Getenv("LOG_LEVEL"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		HTTPPort:     intEnv("HTTP_PORT", 8080),
		MetricsPort:  intEnv("METRICS_PORT", 9090),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		SQLitePath:   os.Getenv("SQLITE_PATH"),

		RedisEnabled:  boolEnv("REDIS_ENABLED", false),
		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     intEnv("REDIS_PORT", 6379),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}
}

// GetConfig returns the process-wide config, loading it from the environment
// on first call.
func GetConfig() Config {
	if !loaded.Load() {
		currentConfig.Store(loadConfig())
		loaded.Store(true)
	}
	return currentConfig.Load().(Config)
}

// SetConfig overrides the process-wide config. Used by tests and by cobra
// command wiring once flags have been parsed.
func SetConfig(c Config) {
	currentConfig.Store(c)
	loaded.Store(true)
}
