package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Station      StationConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Station.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FUELSTATION_APP_ENV" required:"true"`
	Port         string `envconfig:"FUELSTATION_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FUELSTATION_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FUELSTATION_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FUELSTATION_LOG_FORMAT" default:"json"`
	// CORSOrigins is a comma separated list added to the local defaults.
	CORSOrigins []string `envconfig:"FUELSTATION_CORS_ORIGINS"`
}

// ConsoleLogs reports whether logs should use the human-readable writer.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FUELSTATION_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FUELSTATION_DB_DSN"`
	Driver string `envconfig:"FUELSTATION_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FUELSTATION_DB_HOST"`
	LegacyPort     int    `envconfig:"FUELSTATION_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FUELSTATION_DB_USER"`
	LegacyPassword string `envconfig:"FUELSTATION_DB_PASSWORD"`
	LegacyName     string `envconfig:"FUELSTATION_DB_NAME"`
	LegacySSLMode  string `envconfig:"FUELSTATION_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"FUELSTATION_SQLITE_PATH" default:"fuelstation.db"`

	MaxOpenConns    int           `envconfig:"FUELSTATION_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FUELSTATION_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FUELSTATION_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FUELSTATION_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQuery     time.Duration `envconfig:"FUELSTATION_DB_SLOW_QUERY" default:"500ms"`
	TxMaxAttempts int           `envconfig:"FUELSTATION_DB_TX_MAX_ATTEMPTS" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FUELSTATION_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FUELSTATION_REDIS_ADDR"`
	Password     string        `envconfig:"FUELSTATION_REDIS_PASSWORD"`
	DB           int           `envconfig:"FUELSTATION_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FUELSTATION_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FUELSTATION_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FUELSTATION_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FUELSTATION_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FUELSTATION_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies the bearer tokens minted by the identity collaborator.
type JWTConfig struct {
	Secret            string `envconfig:"FUELSTATION_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FUELSTATION_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FUELSTATION_JWT_EXPIRATION_MINUTES" default:"60"`
	LeewaySeconds     int    `envconfig:"FUELSTATION_JWT_LEEWAY_SECONDS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FUELSTATION_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FUELSTATION_AUTO_MIGRATE" default:"false"`
}

type LedgerConfig struct {
	BalanceTolerance string `envconfig:"FUELSTATION_LEDGER_BALANCE_TOLERANCE" default:"0.01"`
}

// Tolerance parses the configured debit/credit tolerance, falling back to one cent.
func (l LedgerConfig) Tolerance() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(l.BalanceTolerance))
	if err != nil || value.IsNegative() {
		return decimal.NewFromFloat(0.01)
	}
	return value
}

// StationConfig holds the defaults applied to gas stations created without hours.
type StationConfig struct {
	DefaultTimezone  string `envconfig:"FUELSTATION_STATION_TIMEZONE" default:"Asia/Jakarta"`
	DefaultOpenTime  string `envconfig:"FUELSTATION_STATION_OPEN_TIME" default:"05:00"`
	DefaultCloseTime string `envconfig:"FUELSTATION_STATION_CLOSE_TIME" default:"22:00"`
}

func (s StationConfig) validate() error {
	if _, err := time.LoadLocation(s.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvStationTimezone, err)
	}
	for env, value := range map[string]string{
		EnvStationOpenTime:  s.DefaultOpenTime,
		EnvStationCloseTime: s.DefaultCloseTime,
	} {
		if _, err := time.Parse("15:04", value); err != nil {
			return fmt.Errorf("invalid %s %q (expected HH:MM)", env, value)
		}
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"FUELSTATION_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"FUELSTATION_PUBSUB_NOTIFICATION_TOPIC" default:"fuelstation-notification-events"`
	NotificationSubscription string `envconfig:"FUELSTATION_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	// AlertTopic receives tank loss alerts; empty routes them to NotificationTopic.
	AlertTopic string `envconfig:"FUELSTATION_PUBSUB_ALERT_TOPIC"`
}

// AlertTopicOrDefault returns the topic tank loss alerts publish to.
func (p PubSubConfig) AlertTopicOrDefault() string {
	if t := strings.TrimSpace(p.AlertTopic); t != "" {
		return t
	}
	return p.NotificationTopic
}

// Topics lists the distinct configured topics.
func (p PubSubConfig) Topics() []string {
	var out []string
	for _, t := range []string{p.NotificationTopic, p.AlertTopicOrDefault()} {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FUELSTATION_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FUELSTATION_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FUELSTATION_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig tunes the cron-worker maintenance jobs.
type CronConfig struct {
	Tick                time.Duration `envconfig:"FUELSTATION_CRON_TICK" default:"1m"`
	OutboxRetentionDays int           `envconfig:"FUELSTATION_OUTBOX_RETENTION_DAYS" default:"30"`
	RetentionEvery      time.Duration `envconfig:"FUELSTATION_CRON_RETENTION_EVERY" default:"24h"`
	BacklogAge          time.Duration `envconfig:"FUELSTATION_CRON_BACKLOG_AGE" default:"48h"`
	BacklogEvery        time.Duration `envconfig:"FUELSTATION_CRON_BACKLOG_EVERY" default:"1h"`
	DLQReportEvery      time.Duration `envconfig:"FUELSTATION_CRON_DLQ_REPORT_EVERY" default:"1h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		db.Driver = DriverSQLite
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
