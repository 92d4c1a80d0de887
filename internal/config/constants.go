package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 8000
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "geotrack"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultSocketFrequency      = 5
	defaultParamsTimeoutSeconds = 10
	defaultNotifyTimeoutSeconds = 10
	defaultJobWorkers           = 4
	defaultJobLookbackMinutes   = 60
	defaultArchivePathTemplate  = "movement/{Y}/{m}/{d}/{H}/{filename}"
	defaultAdminUsername        = "admin"
	defaultAdminTokenTTLHours   = 24

	envPrefix = "GEOTRACK_"
)
