// MIT License
//
// Copyright (c) 2023 kache.io
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package config

import "errors"

var (
	errNoRoutes          = errors.New("config: at least one route is required")
	errRouteMissingFrom  = errors.New("config: route is missing 'from'")
	errRouteMissingTo    = errors.New("config: route is missing 'to'")
	errMissingDBDir      = errors.New("config: db_directory is required")
	errUnknownStoreBack  = errors.New("config: unknown store backend")
	errMissingAdminPaths = errors.New("config: reload/clear/status url paths are required")
)

// Configuration is the root, immutable configuration snapshot loaded from
// TOML. A reload replaces the shared snapshot atomically; handlers always
// observe one consistent value for the life of a request.
type Configuration struct {
	ReloadConfigURLPath string `toml:"reload_config_url_path"`
	ClearCacheURLPath   string `toml:"clear_cache_url_path"`
	StatusURLPath       string `toml:"status_url_path"`

	DBDirectory string `toml:"db_directory"`

	IP          string `toml:"ip"`
	DefaultPort uint16 `toml:"default_port"`

	CacheEnabled               bool  `toml:"cache_enabled"`
	DefaultCacheValidity       int64 `toml:"default_cache_validity"`
	CacheStaleThresholdOnFail  int64 `toml:"cache_stale_threshold_on_fail"`
	Timeout                    int64 `toml:"timeout"`
	Verbose                    bool  `toml:"verbose"`

	Routes []Route `toml:"routes"`

	Logging Logging        `toml:"logging"`
	Store   StoreConfig    `toml:"store"`
	Metrics MetricsConfig  `toml:"metrics"`
	Cluster *ClusterConfig `toml:"cluster"`
}

// Route maps an inbound host+path+query prefix to an outbound URI base.
type Route struct {
	From     string `toml:"from"`
	To       string `toml:"to"`
	Validate *bool  `toml:"validate"`
}

// ValidateRequest reports whether this route wants the validator run on the
// routed suffix. Defaults to true.
func (r Route) ValidateRequest() bool {
	return r.Validate == nil || *r.Validate
}

// Logging configures the ambient zerolog/lumberjack logging stack.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Color  bool   `toml:"color"`

	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxAgeDays int    `toml:"max_age_days"`
	MaxBackups int    `toml:"max_backups"`
	Compress   bool   `toml:"compress"`
}

// StoreConfig selects and configures the persistent store backend.
type StoreConfig struct {
	Backend  string         `toml:"backend"`
	LevelDB  LevelDBConfig  `toml:"leveldb"`
	InMemory InMemoryConfig `toml:"inmemory"`
	Redis    RedisConfig    `toml:"redis"`
}

// LevelDBConfig configures the default embedded store backend.
type LevelDBConfig struct {
	Directory string `toml:"directory"`
}

// InMemoryConfig configures the bounded in-memory LRU backend.
type InMemoryConfig struct {
	MaxEntries int `toml:"max_entries"`
}

// RedisConfig configures the remote Redis-backed store.
type RedisConfig struct {
	Endpoint string `toml:"endpoint"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// MetricsConfig configures the separate debug/admin listener.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
	ACL        string `toml:"acl"`
}

// ClusterConfig configures cluster cache-invalidation broadcast.
type ClusterConfig struct {
	Discovery string `toml:"discovery"`
	Namespace string `toml:"namespace"`
	Service   string `toml:"service"`
	PortName  string `toml:"port_name"`
}

// Validate checks the invariants the rest of the system assumes hold.
func (c *Configuration) Validate() error {
	return errors.Join(
		c.validateAdminPaths(),
		c.validateRoutes(),
		c.validateStore(),
	)
}

func (c *Configuration) validateAdminPaths() error {
	if c.ReloadConfigURLPath == "" || c.ClearCacheURLPath == "" || c.StatusURLPath == "" {
		return errMissingAdminPaths
	}
	return nil
}

func (c *Configuration) validateRoutes() error {
	if len(c.Routes) == 0 {
		return errNoRoutes
	}
	for _, r := range c.Routes {
		if r.From == "" {
			return errRouteMissingFrom
		}
		if r.To == "" {
			return errRouteMissingTo
		}
	}
	return nil
}

func (c *Configuration) validateStore() error {
	switch c.Store.Backend {
	case "", "leveldb":
		if c.DBDirectory == "" && c.Store.LevelDB.Directory == "" {
			return errMissingDBDir
		}
	case "inmemory", "redis":
		// no directory requirement
	default:
		return errUnknownStoreBack
	}
	return nil
}

// ApplyDefaults fills in the documented defaults for optional tables
// that were absent from the TOML document.
func (c *Configuration) ApplyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "leveldb"
	}
	if c.Store.LevelDB.Directory == "" {
		c.Store.LevelDB.Directory = c.DBDirectory
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Verbose {
		c.Logging.Level = "debug"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}
