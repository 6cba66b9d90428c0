package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`
	Engine EngineConfig `mapstructure:"engine"`
	Quotes QuotesConfig `mapstructure:"quotes"`
	Fiscal FiscalConfig `mapstructure:"fiscal"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PurchaseEngine string `mapstructure:"purchase_engine"`
	RunOnStart     bool   `mapstructure:"run_on_start"`
}

// EngineConfig tunes the allocation and rebalancing engine.
type EngineConfig struct {
	// DeviationThreshold is in percentage points and applies when a
	// rebalancing request does not carry a positive threshold.
	DeviationThreshold float64       `mapstructure:"deviation_threshold"`
	AttemptTimeout     time.Duration `mapstructure:"attempt_timeout"`
}

type QuotesConfig struct {
	Dir string `mapstructure:"dir"`
}

type FiscalConfig struct {
	Enabled   bool        `mapstructure:"enabled"`
	Stream    string      `mapstructure:"stream"`
	MaxLen    int64       `mapstructure:"max_len"`
	Websocket bool        `mapstructure:"websocket"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AuthConfig struct {
	Disabled  bool   `mapstructure:"disabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.purchase_engine", "@every 60m")
	v.SetDefault("cron.run_on_start", true)
	v.SetDefault("engine.deviation_threshold", 5.0)
	v.SetDefault("engine.attempt_timeout", "2m")
	v.SetDefault("quotes.dir", "cotacoes")

	// Fiscal delivery stays log-only until a redis address is configured.
	v.SetDefault("fiscal.enabled", false)
	v.SetDefault("fiscal.stream", "fiscal-events")
	v.SetDefault("fiscal.max_len", 100000)
	v.SetDefault("fiscal.websocket", true)
	v.SetDefault("fiscal.redis.addr", "localhost:6379")
	v.SetDefault("fiscal.redis.password", "")
	v.SetDefault("fiscal.redis.db", 0)
	v.SetDefault("fiscal.redis.write_timeout", "5s")

	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.jwt_secret", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
