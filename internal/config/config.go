// Package config loads and validates warmer configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/autocache-warmer/internal/logging"
	"github.com/JakeFAU/autocache-warmer/internal/registry"
	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Enable    bool            `mapstructure:"enable"`
	AutoCache AutoCacheConfig `mapstructure:"auto_cache"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sites     SitesConfig     `mapstructure:"sites"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   logging.Config  `mapstructure:"logging"`
}

// AutoCacheConfig holds the auto-cache settings of the page cache.
type AutoCacheConfig struct {
	Enable     bool   `mapstructure:"enable"`
	SitemapURL string `mapstructure:"sitemap_url"`
	// OtherURLs is a whitespace-separated URL list.
	OtherURLs string `mapstructure:"other_urls"`
	MaxTime   int    `mapstructure:"max_time"`
	// Delay between URLs in milliseconds.
	Delay     int    `mapstructure:"delay"`
	UserAgent string `mapstructure:"user_agent"`
	Scheme    string `mapstructure:"scheme"`
}

// CacheConfig describes the page cache on disk.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
	// MaxAge is a Go duration or a phrase such as "7 days".
	MaxAge      string        `mapstructure:"max_age"`
	GetRequests bool          `mapstructure:"get_requests"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// SitesConfig locates the network home site and the child site registry.
type SitesConfig struct {
	HomeURL         string `mapstructure:"home_url"`
	registry.Config `mapstructure:",squash"`
}

// HTTPConfig configures sitemap and warming HTTP clients.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRedirects   int `mapstructure:"max_redirects"`
}

// DispatchConfig controls the asynchronous warming dispatcher.
type DispatchConfig struct {
	Parallelism  int           `mapstructure:"parallelism"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// ScheduleConfig controls the serve-mode trigger.
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WARMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("enable", true)
	v.SetDefault("auto_cache.enable", false)
	v.SetDefault("auto_cache.sitemap_url", "")
	v.SetDefault("auto_cache.other_urls", "")
	v.SetDefault("auto_cache.max_time", 900)
	v.SetDefault("auto_cache.delay", 500)
	v.SetDefault("auto_cache.user_agent", "WordPress")
	v.SetDefault("auto_cache.scheme", "http")
	v.SetDefault("cache.dir", "/var/cache/autocache-warmer")
	v.SetDefault("cache.max_age", "7 days")
	v.SetDefault("cache.get_requests", false)
	v.SetDefault("cache.lock_timeout", 30*time.Second)
	v.SetDefault("sites.home_url", "http://localhost/")
	v.SetDefault("sites.provider", registry.ProviderNone)
	v.SetDefault("sites.table", registry.DefaultTable)
	v.SetDefault("sites.dsn", "")
	v.SetDefault("sites.max_conns", 2)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_redirects", warmer.DefaultMaxRedirects)
	v.SetDefault("dispatch.parallelism", 4)
	v.SetDefault("dispatch.drain_timeout", 10*time.Second)
	v.SetDefault("schedule.interval", 15*time.Minute)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("http.max_redirects must be >= 0")
	}
	if c.Dispatch.Parallelism <= 0 {
		return fmt.Errorf("dispatch.parallelism must be > 0")
	}
	if c.AutoCache.Delay < 0 {
		return fmt.Errorf("auto_cache.delay must be >= 0")
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("schedule.interval must be >= 0")
	}
	switch c.AutoCache.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("auto_cache.scheme must be http or https, got %q", c.AutoCache.Scheme)
	}
	if _, err := ParseMaxAge(c.Cache.MaxAge); err != nil {
		return fmt.Errorf("cache.max_age: %w", err)
	}
	switch strings.ToLower(c.Sites.Provider) {
	case "", registry.ProviderNone, registry.ProviderStatic:
	case registry.ProviderPostgres, registry.ProviderSQLite:
		if c.Sites.DSN == "" {
			return fmt.Errorf("sites.dsn must be set when sites.provider is %s", c.Sites.Provider)
		}
	default:
		return fmt.Errorf("unknown sites.provider %q", c.Sites.Provider)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// WarmerOptions converts the loaded settings into run options.
func (c Config) WarmerOptions() (warmer.Options, error) {
	maxAge, err := ParseMaxAge(c.Cache.MaxAge)
	if err != nil {
		return warmer.Options{}, fmt.Errorf("cache.max_age: %w", err)
	}
	return warmer.Options{
		Enabled:           c.Enable,
		AutoCacheEnabled:  c.AutoCache.Enable,
		SitemapPath:       c.AutoCache.SitemapURL,
		OtherURLs:         warmer.SplitURLList(c.AutoCache.OtherURLs),
		MaxTimeSeconds:    c.AutoCache.MaxTime,
		Delay:             time.Duration(c.AutoCache.Delay) * time.Millisecond,
		UserAgent:         c.AutoCache.UserAgent,
		Scheme:            c.AutoCache.Scheme,
		AllowQueryStrings: c.Cache.GetRequests,
		CacheMaxAge:       maxAge,
	}, nil
}

// HTTPTimeout is the per-request timeout for sitemap and warming requests.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
