package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"photoshare.app/internal/cache"
	"photoshare.app/internal/obs"
	"photoshare.app/internal/store/pg"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	// TrustedProxies lists the CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies; bare addresses become host prefixes.
func (s Server) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, ErrConfig(fmt.Sprintf("server.trusted_proxies: %q is not an address or CIDR", raw))
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

type DB struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

func (d DB) AsOptions() pg.Options {
	return pg.Options{
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		QueryTimeout:    d.QueryTimeout,
	}
}

type Redis struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	// OpTimeout bounds each claims cache call.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
	// LocalSize is the LRU capacity used when URL is empty.
	LocalSize int `mapstructure:"local_size"`
}

func (r Redis) AsRedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:          r.URL,
		PoolSize:     r.PoolSize,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		MaxRetries:   r.MaxRetries,
	}
}

type Auth struct {
	Secret        string        `mapstructure:"secret"`
	Algorithm     string        `mapstructure:"algorithm"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	EmailTTL      time.Duration `mapstructure:"email_ttl"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type RateLimit struct {
	Enable bool    `mapstructure:"enable"`
	RPS    float64 `mapstructure:"rps"`
	Burst  int     `mapstructure:"burst"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Mail struct {
	From string `mapstructure:"from"`
	// ConfirmURL is the public prefix the email token is appended to.
	ConfirmURL string `mapstructure:"confirm_url"`
}

type Config struct {
	App       App       `mapstructure:"app"`
	Server    Server    `mapstructure:"server"`
	DB        DB        `mapstructure:"db"`
	Redis     Redis     `mapstructure:"redis"`
	Auth      Auth      `mapstructure:"auth"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	OTEL      OTEL      `mapstructure:"otel"`
	Log       Log       `mapstructure:"log"`
	Mail      Mail      `mapstructure:"mail"`
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return ErrConfig("auth.secret (SECRET_KEY) is required")
	}
	switch strings.ToUpper(c.Auth.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		return ErrConfig(fmt.Sprintf("auth.algorithm %q is not supported", c.Auth.Algorithm))
	}
	ttls := map[string]time.Duration{
		"auth.access_ttl":  c.Auth.AccessTTL,
		"auth.refresh_ttl": c.Auth.RefreshTTL,
		"auth.email_ttl":   c.Auth.EmailTTL,
		"auth.cache_ttl":   c.Auth.CacheTTL,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return ErrConfig(name + " must be positive")
		}
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return ErrConfig("auth.access_ttl must be shorter than auth.refresh_ttl")
	}
	if c.RateLimit.Enable && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return ErrConfig("ratelimit.rps and ratelimit.burst must be positive")
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}
