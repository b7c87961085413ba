package config

import (
	"strings"

	"github.com/spf13/viper"
)

// legacyEnv maps keys to the variable names older deployments still export.
var legacyEnv = map[string]string{
	"auth.secret":    "SECRET_KEY",
	"auth.algorithm": "ALGORITHM",
	"redis.url":      "REDIS_URL",
	"db.dsn":         "SQLALCHEMY_DATABASE_URL",
}

// Load reads the optional YAML file at path, then the environment
// (PHOTOSHARE_ prefixed, dots become underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	v.SetDefault("app.name", "photoshare")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", "15m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.query_timeout", "2s")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")
	v.SetDefault("redis.max_retries", 1)
	v.SetDefault("redis.op_timeout", "250ms")
	v.SetDefault("redis.local_size", 4096)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.email_ttl", "72h")
	v.SetDefault("auth.cache_ttl", "15m")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.prune_interval", "1h")

	v.SetDefault("ratelimit.enable", true)
	v.SetDefault("ratelimit.rps", 5.0)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.service_name", "photoshare-api")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("otel.otlp_endpoint", "localhost:4317")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("mail.from", "noreply@photoshare.app")
	v.SetDefault("mail.confirm_url", "http://localhost:8080/api/auth/confirmed_email/")

	v.SetEnvPrefix("PHOTOSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "PHOTOSHARE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
