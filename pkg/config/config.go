package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Metrics struct {
		DBEnabled bool `mapstructure:"DB_ENABLED"`
	} `mapstructure:"METRICS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Store struct {
		// Backend is either "memory" or "gorm".
		Backend string `mapstructure:"BACKEND"`
	} `mapstructure:"STORE"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Snowflake struct {
		Node int64 `mapstructure:"NODE"`
	} `mapstructure:"SNOWFLAKE"`
	Rewards Rewards `mapstructure:"REWARDS"`
}

type Rewards struct {
	SignupBonus        int64  `mapstructure:"SIGNUP_BONUS"`
	ReferralBonus      int64  `mapstructure:"REFERRAL_BONUS"`
	FallbackGameReward int64  `mapstructure:"FALLBACK_GAME_REWARD"`
	MaxGameReward      int64  `mapstructure:"MAX_GAME_REWARD"`
	Timezone           string `mapstructure:"TIMEZONE"`
	LaunchDate         string `mapstructure:"LAUNCH_DATE"`
}

// Location resolves Timezone, falling back to UTC.
func (r Rewards) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		zap.L().Warn("unknown rewards timezone, using UTC", zap.String("timezone", r.Timezone), zap.Error(err))
		return time.UTC
	}
	return loc
}

// Launch parses LaunchDate (YYYY-MM-DD). The zero time is returned when unset.
func (r Rewards) Launch() time.Time {
	if r.LaunchDate == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(time.DateOnly, r.LaunchDate, r.Location())
	if err != nil {
		zap.L().Warn("invalid launch date", zap.String("launch_date", r.LaunchDate), zap.Error(err))
		return time.Time{}
	}
	return t
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "dulpton-point")
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 0)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("STORE.BACKEND", "gorm")
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 10)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 50)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("SNOWFLAKE.NODE", 1)
	v.SetDefault("REWARDS.SIGNUP_BONUS", 1000)
	v.SetDefault("REWARDS.REFERRAL_BONUS", 500)
	v.SetDefault("REWARDS.FALLBACK_GAME_REWARD", 25)
	v.SetDefault("REWARDS.MAX_GAME_REWARD", 5000)
	v.SetDefault("REWARDS.TIMEZONE", "UTC")
}

// Load reads config.yaml from the working directory (optional) and overlays
// environment variables, e.g. REWARDS_SIGNUP_BONUS.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
