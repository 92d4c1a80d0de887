package config

import (
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides lets deployments override secrets and endpoints without
// editing the YAML file. lookup is os.LookupEnv outside of tests.
func applyEnvOverrides(cfg *AppConfig, lookup func(string) (string, bool)) {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v, ok := get("ENV"); ok {
		cfg.Env = normalizeEnv(v)
	}
	if v, ok := get("DSN"); ok {
		cfg.Database.DSN = v
		cfg.DSN = v
	}
	if v, ok := get("REDIS_URL"); ok {
		cfg.Redis.URL = v
		cfg.RedisURL = v
	}
	if v, ok := get("JWT_SECRET"); ok {
		cfg.JWTSecret = v
	}
	if v, ok := get("TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = normalizeOrigins(strings.Split(v, ","))
	}
	if v, ok := get("SOCKET_FREQUENCY_MINUTES"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Socket.FrequencyMinutes = n
		}
	}
	if v, ok := get("JOB_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Movement.JobWorkers = n
		}
	}
	if v, ok := get("NOTIFY_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Notify.Timeout = d
		}
	}
	if v, ok := get("S3_ACCESS_KEY_ID"); ok {
		cfg.Archive.AccessKeyID = v
	}
	if v, ok := get("S3_SECRET_ACCESS_KEY"); ok {
		cfg.Archive.SecretAccessKey = v
	}
	if v, ok := get("S3_BUCKET"); ok {
		cfg.Archive.Bucket = v
	}
	if v, ok := get("ADMIN_USERNAME"); ok {
		cfg.Admin.Username = v
	}
	if v, ok := get("ADMIN_PASSWORD_HASH"); ok {
		cfg.Admin.PasswordHash = v
	}
}
