package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Refresh RefreshConfig `yaml:"refresh" mapstructure:"refresh"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SourcesConfig enumerates the four input datasets. Paths may be local files
// or http(s) URLs; remote sources are staged into StagingDir before loading.
type SourcesConfig struct {
	Imports     SourceConfig `yaml:"imports" mapstructure:"imports"`
	Logistics   SourceConfig `yaml:"logistics" mapstructure:"logistics"`
	Governance  SourceConfig `yaml:"governance" mapstructure:"governance"`
	Consumption SourceConfig `yaml:"consumption" mapstructure:"consumption"`
	StagingDir  string       `yaml:"staging_dir" mapstructure:"staging_dir"`
}

// SourceConfig locates a single tabular source.
type SourceConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Sheet    string `yaml:"sheet" mapstructure:"sheet"`       // xlsx only; empty = first sheet
	Encoding string `yaml:"encoding" mapstructure:"encoding"` // csv only; e.g. "windows-1252"
}

// FetchConfig configures downloads of remote sources.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`

	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// RefreshConfig configures snapshot rebuilds while serving.
type RefreshConfig struct {
	Watch      bool   `yaml:"watch" mapstructure:"watch"`
	DebounceMs int    `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	Schedule   string `yaml:"schedule" mapstructure:"schedule"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SUPPLY_RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.imports.path", "data/imports.csv")
	v.SetDefault("sources.logistics.path", "data/lpi.csv")
	v.SetDefault("sources.governance.path", "data/wgi.xlsx")
	v.SetDefault("sources.consumption.path", "data/consumption.xlsx")
	v.SetDefault("sources.imports.sheet", "")
	v.SetDefault("sources.logistics.sheet", "")
	v.SetDefault("sources.governance.sheet", "")
	v.SetDefault("sources.consumption.sheet", "")
	v.SetDefault("sources.imports.encoding", "")
	v.SetDefault("sources.logistics.encoding", "")
	v.SetDefault("sources.governance.encoding", "")
	v.SetDefault("sources.consumption.encoding", "")
	v.SetDefault("sources.staging_dir", "/tmp/supply-risk")
	v.SetDefault("fetch.user_agent", "supply-risk/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_cooldown_secs", 30)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_secs", 15)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("refresh.watch", false)
	v.SetDefault("refresh.debounce_ms", 500)
	v.SetDefault("refresh.schedule", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "supply-risk.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by a command scope are set.
// Known scopes: "sources", "store".
func (c *Config) Validate(scope string) error {
	var missing []string

	switch scope {
	case "sources":
		for name, src := range map[string]SourceConfig{
			"imports":     c.Sources.Imports,
			"logistics":   c.Sources.Logistics,
			"governance":  c.Sources.Governance,
			"consumption": c.Sources.Consumption,
		} {
			if strings.TrimSpace(src.Path) == "" {
				missing = append(missing, fmt.Sprintf("sources.%s.path", name))
			}
		}
	case "store":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			return eris.Errorf("config: store.driver must be sqlite or postgres (got %q)", c.Store.Driver)
		}
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url")
		}
	default:
		return eris.Errorf("config: unknown validation scope %q", scope)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return eris.Errorf("config: missing required fields for %s: %s", scope, strings.Join(missing, ", "))
	}
	return nil
}

// LocalSourcePaths returns the configured source paths that refer to local
// files, in imports/logistics/governance/consumption order.
func (s SourcesConfig) LocalSourcePaths() []string {
	var paths []string
	for _, src := range []SourceConfig{s.Imports, s.Logistics, s.Governance, s.Consumption} {
		if src.Path == "" || IsRemote(src.Path) {
			continue
		}
		paths = append(paths, src.Path)
	}
	return paths
}

// IsRemote reports whether path is an http(s) URL.
func IsRemote(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
