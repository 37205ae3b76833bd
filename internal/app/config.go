package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"github.com/spf13/viper"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/sheet"
	"github.com/tejashwikalptaru/orchestra/internal/service"
)

// EnvPrefix prefixes every environment variable override, e.g. ORCHESTRA_IPC_ADDR.
const EnvPrefix = "ORCHESTRA"

// Config holds application configuration.
type Config struct {
	// AppID is the unique application identifier, also the preference store name
	AppID string `mapstructure:"app_id"`

	// AppName is the display name
	AppName string `mapstructure:"app_name"`

	// Languages lists the catalog languages in load and search order
	Languages []string `mapstructure:"languages"`

	// TickInterval is how often the live signal is sampled
	TickInterval time.Duration `mapstructure:"tick_interval"`

	// LogLevel is DEBUG, INFO, WARN or ERROR
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is "text" or "json"
	LogFormat string `mapstructure:"log_format"`

	Catalog CatalogConfig `mapstructure:"catalog"`
	IPC     IPCConfig     `mapstructure:"ipc"`

	// Settings overrides display settings at startup, keyed like "porch settings"
	Settings map[string]string `mapstructure:"settings"`

	// Environment is the live host. nil runs against the in-memory simulator.
	Environment Environment `mapstructure:"-"`

	// ChatOutput receives chat lines (defaults to os.Stdout)
	ChatOutput io.Writer `mapstructure:"-"`

	// TestFyneApp allows injecting a test Fyne app for testing (nil for production)
	TestFyneApp fyne.App `mapstructure:"-"`
}

// CatalogConfig configures where song metadata comes from.
type CatalogConfig struct {
	// SheetURL is the remote sheet template; "{kind}" is replaced by the sheet kind
	SheetURL string `mapstructure:"sheet_url"`

	// Offline skips the remote source and loads only from the cache
	Offline bool `mapstructure:"offline"`

	// CacheDir holds the cached sheets
	CacheDir string `mapstructure:"cache_dir"`

	// FetchTimeout bounds each remote sheet request
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// Workers bounds concurrent sheet fetches (0 = one per sheet)
	Workers int `mapstructure:"workers"`

	// WatchCache reloads the catalog when the cached sheets are edited
	WatchCache bool `mapstructure:"watch_cache"`

	// WatchDebounce coalesces bursts of cache edits
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// IPCConfig configures the local notification server.
type IPCConfig struct {
	// Addr is the listen address; empty disables the server
	Addr string `mapstructure:"addr"`

	// Metrics exposes /metrics on the IPC server
	Metrics bool `mapstructure:"metrics"`

	// Debug puts gin in debug mode
	Debug bool `mapstructure:"debug"`
}

// DefaultConfig returns the default application configuration.
func DefaultConfig() Config {
	return Config{
		AppID:        "com.orchestra.app",
		AppName:      "Orchestra",
		Languages:    append([]string(nil), service.DefaultLanguages...),
		TickInterval: 100 * time.Millisecond,
		LogLevel:     "INFO",
		LogFormat:    "text",
		Catalog: CatalogConfig{
			SheetURL:      sheet.DefaultURLTemplate,
			CacheDir:      defaultCacheDir(),
			FetchTimeout:  10 * time.Second,
			WatchCache:    true,
			WatchDebounce: 500 * time.Millisecond,
		},
		IPC: IPCConfig{
			Addr:    "127.0.0.1:7878",
			Metrics: true,
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "orchestra")
}

// LoadConfig reads configuration from an optional file (YAML, TOML or JSON)
// and ORCHESTRA_* environment variables, on top of DefaultConfig.
// An empty path looks for orchestra.yaml in the working directory and
// tolerates its absence.
func LoadConfig(path string) (Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_id", def.AppID)
	v.SetDefault("app_name", def.AppName)
	v.SetDefault("languages", def.Languages)
	v.SetDefault("tick_interval", def.TickInterval)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("catalog.sheet_url", def.Catalog.SheetURL)
	v.SetDefault("catalog.offline", def.Catalog.Offline)
	v.SetDefault("catalog.cache_dir", def.Catalog.CacheDir)
	v.SetDefault("catalog.fetch_timeout", def.Catalog.FetchTimeout)
	v.SetDefault("catalog.workers", def.Catalog.Workers)
	v.SetDefault("catalog.watch_cache", def.Catalog.WatchCache)
	v.SetDefault("catalog.watch_debounce", def.Catalog.WatchDebounce)
	v.SetDefault("ipc.addr", def.IPC.Addr)
	v.SetDefault("ipc.metrics", def.IPC.Metrics)
	v.SetDefault("ipc.debug", def.IPC.Debug)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("orchestra")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values a bad file or environment could produce.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("invalid config: tick_interval must be positive, got %s", c.TickInterval)
	}
	if len(c.Languages) == 0 {
		return errors.New("invalid config: at least one language is required")
	}
	if c.Catalog.CacheDir == "" {
		return errors.New("invalid config: catalog.cache_dir is required")
	}
	if c.Catalog.FetchTimeout < 0 {
		return fmt.Errorf("invalid config: catalog.fetch_timeout must not be negative, got %s", c.Catalog.FetchTimeout)
	}
	return nil
}
