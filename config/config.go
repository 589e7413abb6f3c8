package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/prebid/openbid/errortypes"
	"github.com/spf13/viper"
)

// Configuration specifies the static application config.
type Configuration struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AdminPort int    `mapstructure:"admin_port"`

	EnableGzip bool `mapstructure:"enable_gzip"`
	// MaxRequestSize caps the bodies accepted by the openbid endpoints.
	MaxRequestSize int64 `mapstructure:"max_request_size"`
	// WrapperVersion is the release reported to the auction endpoints as "prebid_prebid_<version>".
	WrapperVersion string `mapstructure:"wrapper_version"`
	// StatusResponse is the body of GET /status. An empty value answers 204.
	StatusResponse string `mapstructure:"status_response"`

	AuctionTimeouts AuctionTimeouts    `mapstructure:"auction_timeouts_ms"`
	Client          HTTPClient         `mapstructure:"http_client"`
	RateLimit       RateLimit          `mapstructure:"rate_limit"`
	// RequestTimeoutHeaders names the headers a fronting queue uses to report how long an
	// auction waited before reaching this server.
	RequestTimeoutHeaders RequestTimeoutHeaders `mapstructure:"request_timeout_headers"`
	SyncContext     SyncContext        `mapstructure:"sync_context"`
	Metrics         Metrics            `mapstructure:"metrics"`
	Adapters        map[string]Adapter `mapstructure:"adapters"`
}

// RequestTimeoutHeaders holds header names. Both must be set for queued auctions to be dropped.
type RequestTimeoutHeaders struct {
	RequestTimeInQueue    string `mapstructure:"request_time_in_queue"`
	RequestTimeoutInQueue string `mapstructure:"request_timeout_in_queue"`
}

// AuctionTimeouts bounds the /auction endpoint. Callers may ask for less than Max through the
// "tmax" query parameter.
type AuctionTimeouts struct {
	Default uint64 `mapstructure:"default"`
	Max     uint64 `mapstructure:"max"`
}

// LimitAuctionTimeout returns the timeout to use for a request that asked for requested.
func (cfg *AuctionTimeouts) LimitAuctionTimeout(requested time.Duration) time.Duration {
	if requested == 0 && cfg.Default != 0 {
		return time.Duration(cfg.Default) * time.Millisecond
	}
	if cfg.Max > 0 {
		maxTimeout := time.Duration(cfg.Max) * time.Millisecond
		if requested > maxTimeout {
			return maxTimeout
		}
	}
	return requested
}

func (cfg *AuctionTimeouts) validate(errs []error) []error {
	if cfg.Max < cfg.Default {
		errs = append(errs, fmt.Errorf("auction_timeouts_ms.max cannot be less than auction_timeouts_ms.default. max=%d, default=%d", cfg.Max, cfg.Default))
	}
	return errs
}

type HTTPClient struct {
	MaxIdleConns        int `mapstructure:"max_idle_connections"`
	MaxIdleConnsPerHost int `mapstructure:"max_idle_connections_per_host"`
	IdleConnTimeout     int `mapstructure:"idle_connection_timeout_seconds"`
}

// RateLimit throttles the openbid endpoints per client IP.
type RateLimit struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

func (cfg *RateLimit) validate(errs []error) []error {
	if cfg.Enabled && cfg.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be positive when rate_limit.enabled is true. Got %f", cfg.RequestsPerSecond))
	}
	return errs
}

// SyncContext controls how long the publisher id of the last auction is kept for user syncs.
type SyncContext struct {
	TTLSeconds             int `mapstructure:"ttl_seconds"`
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds"`
}

func (cfg *SyncContext) TTL() time.Duration {
	return time.Duration(cfg.TTLSeconds) * time.Second
}

func (cfg *SyncContext) CleanupInterval() time.Duration {
	return time.Duration(cfg.CleanupIntervalSeconds) * time.Second
}

func (cfg *SyncContext) validate(errs []error) []error {
	if cfg.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("sync_context.ttl_seconds must be positive. Got %d", cfg.TTLSeconds))
	}
	if cfg.CleanupIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("sync_context.cleanup_interval_seconds must be >= 0. Got %d", cfg.CleanupIntervalSeconds))
	}
	return errs
}

type Metrics struct {
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
	// GoMetrics enables the rcrowley/go-metrics registry served as JSON on the admin port.
	GoMetrics GoMetrics `mapstructure:"go_metrics"`
}

type PrometheusMetrics struct {
	Port             int    `mapstructure:"port"`
	Namespace        string `mapstructure:"namespace"`
	Subsystem        string `mapstructure:"subsystem"`
	TimeoutMillisRaw int    `mapstructure:"timeout_ms"`
}

func (cfg *PrometheusMetrics) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMillisRaw) * time.Millisecond
}

func (cfg *PrometheusMetrics) validate(errs []error) []error {
	if cfg.Port > 0 && cfg.TimeoutMillisRaw <= 0 {
		errs = append(errs, fmt.Errorf("metrics.prometheus.timeout_ms must be positive if metrics.prometheus.port is defined. Got timeout=%d and port=%d", cfg.TimeoutMillisRaw, cfg.Port))
	}
	return errs
}

type GoMetrics struct {
	Enabled bool `mapstructure:"enabled"`
}

func (cfg *Configuration) validate() []error {
	var errs []error
	if cfg.MaxRequestSize < 0 {
		errs = append(errs, fmt.Errorf("cfg.max_request_size must be >= 0. Got %d", cfg.MaxRequestSize))
	}
	if _, err := semver.Parse(cfg.WrapperVersion); err != nil {
		errs = append(errs, fmt.Errorf("wrapper_version %q is not a semantic version: %v", cfg.WrapperVersion, err))
	}
	errs = cfg.AuctionTimeouts.validate(errs)
	errs = cfg.RateLimit.validate(errs)
	errs = cfg.SyncContext.validate(errs)
	errs = cfg.Metrics.Prometheus.validate(errs)
	errs = validateAdapters(cfg.Adapters, errs)
	return errs
}

// New uses viper to get our server configurations.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}

	// Bidder names are case sensitive but viper lowercases every key.
	c.Adapters = normalizeAdapterKeys(c.Adapters)

	if errs := c.validate(); len(errs) > 0 {
		return &c, errortypes.NewAggregateErrors("validation errors", errs)
	}

	return &c, nil
}

// SetupViper initializes the viper defaults and binds the PBS_ environment overrides. If a
// filename is given, the config file is read from the working directory or /etc/config.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("max_request_size", 1024*256)
	v.SetDefault("wrapper_version", "1.0.0")
	v.SetDefault("status_response", "")
	v.SetDefault("auction_timeouts_ms.default", 1000)
	v.SetDefault("auction_timeouts_ms.max", 3000)
	v.SetDefault("http_client.max_idle_connections", 50)
	v.SetDefault("http_client.max_idle_connections_per_host", 10)
	v.SetDefault("http_client.idle_connection_timeout_seconds", 60)
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 100)
	v.SetDefault("request_timeout_headers.request_time_in_queue", "")
	v.SetDefault("request_timeout_headers.request_timeout_in_queue", "")
	v.SetDefault("sync_context.ttl_seconds", 3600)
	v.SetDefault("sync_context.cleanup_interval_seconds", 600)
	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "openbid")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.prometheus.timeout_ms", 10000)
	v.SetDefault("metrics.go_metrics.enabled", true)

	setAdapterDefaults(v)

	v.SetEnvPrefix("PBS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.ReadInConfig()
}
