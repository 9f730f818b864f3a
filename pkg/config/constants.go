package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "FUELSTATION"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv           = "FUELSTATION_APP_ENV"
	EnvPort             = "FUELSTATION_APP_PORT"
	EnvDBDSN            = "FUELSTATION_DB_DSN"
	EnvDBHost           = "FUELSTATION_DB_HOST"
	EnvDBUser           = "FUELSTATION_DB_USER"
	EnvDBName           = "FUELSTATION_DB_NAME"
	EnvRedisURL         = "FUELSTATION_REDIS_URL"
	EnvJWTSecret        = "FUELSTATION_JWT_SECRET"
	EnvJWTIssuer        = "FUELSTATION_JWT_ISSUER"
	EnvUseSQLite        = "FUELSTATION_USE_SQLITE"
	EnvLedgerTolerance  = "FUELSTATION_LEDGER_BALANCE_TOLERANCE"
	EnvStationTimezone  = "FUELSTATION_STATION_TIMEZONE"
	EnvStationOpenTime  = "FUELSTATION_STATION_OPEN_TIME"
	EnvStationCloseTime = "FUELSTATION_STATION_CLOSE_TIME"
	EnvGCPProjectID     = "FUELSTATION_GCP_PROJECT_ID"
	EnvPubSubTopic      = "FUELSTATION_PUBSUB_NOTIFICATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
