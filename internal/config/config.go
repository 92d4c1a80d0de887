package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"`
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Paths          RuntimePathsConfig    `yaml:"paths"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Timezone       string                `yaml:"timezone"`
	Socket         SocketConfig          `yaml:"socket"`
	Periphery      PeripheryConfig       `yaml:"periphery"`
	Notify         NotifyConfig          `yaml:"notify"`
	Movement       MovementConfig        `yaml:"movement"`
	Archive        ArchiveConfig         `yaml:"archive"`
	Admin          AdminConfig           `yaml:"admin"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// SocketConfig is handed to every connecting client as the suggested
// reporting frequency.
type SocketConfig struct {
	FrequencyMinutes int `yaml:"frequency_minutes"`
}

type PeripheryConfig struct {
	ParamsTimeout time.Duration     `yaml:"-"`
	ParamsHeaders map[string]string `yaml:"params_headers"`
}

type NotifyConfig struct {
	Timeout       time.Duration `yaml:"-"`
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 disables limiting
	Burst         int           `yaml:"burst"`
}

type MovementConfig struct {
	JobEnabled bool          `yaml:"job_enabled"`
	JobWorkers int           `yaml:"job_workers"`
	Lookback   time.Duration `yaml:"-"`
}

type ArchiveConfig struct {
	Enable          bool   `yaml:"enable"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathTemplate    string `yaml:"path_template"`
	PathStyle       bool   `yaml:"path_style"`
}

// AdminConfig is the single operator account allowed to mint admin tokens.
// PasswordHash is a bcrypt hash; an empty hash disables password login.
type AdminConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"`
	TokenTTL     time.Duration `yaml:"-"`
}

type rawAppConfig struct {
	Port           int               `yaml:"port"`
	DSN            string            `yaml:"dsn"`
	DatabaseURL    string            `yaml:"database_url"`
	RedisURL       string            `yaml:"redis_url"`
	Database       rawDatabaseConfig `yaml:"database"`
	Redis          rawRedisConfig    `yaml:"redis"`
	Env            string            `yaml:"env"`
	Paths          rawPathsConfig    `yaml:"paths"`
	LogDir         string            `yaml:"log_dir"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	JWTSecret      string            `yaml:"jwt_secret"`
	Timezone       string            `yaml:"timezone"`
	TZ             string            `yaml:"tz"`
	Socket         rawSocketConfig   `yaml:"socket"`
	Periphery      rawPeripheryCfg   `yaml:"periphery"`
	Notify         rawNotifyConfig   `yaml:"notify"`
	Movement       rawMovementConfig `yaml:"movement"`
	Archive        rawArchiveConfig  `yaml:"archive"`
	Admin          rawAdminConfig    `yaml:"admin"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawPathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawSocketConfig struct {
	FrequencyMinutes int `yaml:"frequency_minutes"`
}

type rawPeripheryCfg struct {
	ParamsTimeoutSeconds int               `yaml:"params_timeout_seconds"`
	ParamsHeaders        map[string]string `yaml:"params_headers"`
}

type rawNotifyConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
}

type rawMovementConfig struct {
	JobEnabled      *bool `yaml:"job_enabled"`
	JobWorkers      int   `yaml:"job_workers"`
	LookbackMinutes int   `yaml:"lookback_minutes"`
}

type rawArchiveConfig struct {
	Enable          *bool  `yaml:"enable"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathTemplate    string `yaml:"path_template"`
	PathStyle       *bool  `yaml:"path_style"`
}

type rawAdminConfig struct {
	Username      string `yaml:"username"`
	PasswordHash  string `yaml:"password_hash"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// Load reads the YAML config at configPath, applies GEOTRACK_* environment
// overrides and validates the result. A missing file at the default path is
// not an error: defaults plus environment are used instead.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		raw := rawAppConfig{}
		if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
		applyRawAppConfig(&cfg, raw)
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	applyEnvOverrides(&cfg, os.LookupEnv)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.Notify.RatePerSecond < 0 {
		return fmt.Errorf("invalid notify.rate_per_second %v, expected >= 0", c.Notify.RatePerSecond)
	}
	if c.Archive.Enable && c.Archive.Bucket == "" {
		return errors.New("archive.bucket is required when archive.enable is true")
	}
	if c.Admin.PasswordHash != "" && c.JWTSecret == "" {
		return errors.New("jwt_secret is required when admin.password_hash is set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Socket: SocketConfig{FrequencyMinutes: defaultSocketFrequency},
		Periphery: PeripheryConfig{
			ParamsTimeout: defaultParamsTimeoutSeconds * time.Second,
		},
		Notify: NotifyConfig{
			Timeout: defaultNotifyTimeoutSeconds * time.Second,
			Burst:   1,
		},
		Movement: MovementConfig{
			JobEnabled: true,
			JobWorkers: defaultJobWorkers,
			Lookback:   defaultJobLookbackMinutes * time.Minute,
		},
		Archive: ArchiveConfig{PathTemplate: defaultArchivePathTemplate},
		Admin: AdminConfig{
			Username: defaultAdminUsername,
			TokenTTL: defaultAdminTokenTTLHours * time.Hour,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	if raw.Socket.FrequencyMinutes > 0 {
		cfg.Socket.FrequencyMinutes = raw.Socket.FrequencyMinutes
	}
	if raw.Periphery.ParamsTimeoutSeconds > 0 {
		cfg.Periphery.ParamsTimeout = time.Duration(raw.Periphery.ParamsTimeoutSeconds) * time.Second
	}
	if raw.Periphery.ParamsHeaders != nil {
		cfg.Periphery.ParamsHeaders = copyStringMap(raw.Periphery.ParamsHeaders)
	}
	if raw.Notify.TimeoutSeconds > 0 {
		cfg.Notify.Timeout = time.Duration(raw.Notify.TimeoutSeconds) * time.Second
	}
	if raw.Notify.RatePerSecond != 0 {
		cfg.Notify.RatePerSecond = raw.Notify.RatePerSecond
	}
	if raw.Notify.Burst > 0 {
		cfg.Notify.Burst = raw.Notify.Burst
	}
	if raw.Movement.JobEnabled != nil {
		cfg.Movement.JobEnabled = *raw.Movement.JobEnabled
	}
	if raw.Movement.JobWorkers > 0 {
		cfg.Movement.JobWorkers = raw.Movement.JobWorkers
	}
	if raw.Movement.LookbackMinutes > 0 {
		cfg.Movement.Lookback = time.Duration(raw.Movement.LookbackMinutes) * time.Minute
	}
	cfg.Archive = applyRawArchiveConfig(cfg.Archive, raw.Archive)
	if v := strings.TrimSpace(raw.Admin.Username); v != "" {
		cfg.Admin.Username = v
	}
	if v := strings.TrimSpace(raw.Admin.PasswordHash); v != "" {
		cfg.Admin.PasswordHash = v
	}
	if raw.Admin.TokenTTLHours > 0 {
		cfg.Admin.TokenTTL = time.Duration(raw.Admin.TokenTTLHours) * time.Hour
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Env = normalizeEnv(cfg.Env)
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Database.Params != nil {
		cfg.Params = copyStringMap(raw.Database.Params)
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}

	return normalizeRedisConfig(cfg)
}

func applyRawArchiveConfig(current ArchiveConfig, raw rawArchiveConfig) ArchiveConfig {
	cfg := current
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if v := strings.TrimSpace(raw.Endpoint); v != "" {
		cfg.Endpoint = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.Region); v != "" {
		cfg.Region = v
	}
	if v := strings.TrimSpace(raw.Bucket); v != "" {
		cfg.Bucket = v
	}
	if v := strings.TrimSpace(raw.AccessKeyID); v != "" {
		cfg.AccessKeyID = v
	}
	if v := strings.TrimSpace(raw.SecretAccessKey); v != "" {
		cfg.SecretAccessKey = v
	}
	if v := strings.TrimSpace(raw.PathTemplate); v != "" {
		cfg.PathTemplate = v
	}
	if raw.PathStyle != nil {
		cfg.PathStyle = *raw.PathStyle
	}
	return cfg
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == "development" || c.Env == "dev" }

// LogDir returns the resolved native log directory.
func (c *AppConfig) LogDir() string { return ResolveRuntimePath(c.Paths.Logs, "logs") }
