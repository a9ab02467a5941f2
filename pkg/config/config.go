package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Payments     PaymentsConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Bookings     BookingsConfig
	Outbox       OutboxConfig
	AdminEvents  AdminEventsConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLAYFUNIA_APP_ENV" required:"true"`
	Port         string `envconfig:"PLAYFUNIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLAYFUNIA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PLAYFUNIA_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PLAYFUNIA_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"PLAYFUNIA_CORS_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	return splitList(a.CORSOrigins)
}

type ServiceConfig struct {
	Kind string `envconfig:"PLAYFUNIA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PLAYFUNIA_DB_DSN"`
	Driver string `envconfig:"PLAYFUNIA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PLAYFUNIA_DB_HOST"`
	Port     int    `envconfig:"PLAYFUNIA_DB_PORT" default:"5432"`
	User     string `envconfig:"PLAYFUNIA_DB_USER"`
	Password string `envconfig:"PLAYFUNIA_DB_PASSWORD"`
	Name     string `envconfig:"PLAYFUNIA_DB_NAME"`
	SSLMode  string `envconfig:"PLAYFUNIA_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PLAYFUNIA_SQLITE_PATH" default:"playfunia.db"`

	MaxOpenConns    int           `envconfig:"PLAYFUNIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLAYFUNIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLAYFUNIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLAYFUNIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PLAYFUNIA_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PLAYFUNIA_REDIS_URL" required:"true"`
	Password     string        `envconfig:"PLAYFUNIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLAYFUNIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLAYFUNIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLAYFUNIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLAYFUNIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLAYFUNIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLAYFUNIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PLAYFUNIA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PLAYFUNIA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PLAYFUNIA_JWT_EXPIRATION_MINUTES" default:"60"`
	LeewaySeconds     int    `envconfig:"PLAYFUNIA_JWT_LEEWAY_SECONDS" default:"30"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// Leeway is the clock skew tolerated when checking token expiry.
func (j JWTConfig) Leeway() time.Duration {
	if j.LeewaySeconds < 0 {
		return 0
	}
	return time.Duration(j.LeewaySeconds) * time.Second
}

type FeatureFlagsConfig struct {
	UseSQLite    bool `envconfig:"PLAYFUNIA_USE_SQLITE" default:"false"`
	AutoMigrate  bool `envconfig:"PLAYFUNIA_AUTO_MIGRATE" default:"false"`
	MockPayments bool `envconfig:"PLAYFUNIA_MOCK_PAYMENTS" default:"false"`
}

type PaymentsConfig struct {
	Currency   string `envconfig:"PLAYFUNIA_PAYMENTS_CURRENCY" default:"usd"`
	PromoCodes string `envconfig:"PLAYFUNIA_PROMO_CODES" default:"PLAYFUN10:0.10,FAMILY15:0.15"`
}

// Promotions parses PromoCodes ("CODE:rate,CODE:rate") into a rate table
// keyed by upper-cased code.
func (p PaymentsConfig) Promotions() (map[string]float64, error) {
	out := map[string]float64{}
	for _, entry := range splitList(p.PromoCodes) {
		code, raw, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%s: entry %q must be CODE:rate", EnvPromoCodes, entry)
		}
		var rate float64
		if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%g", &rate); err != nil {
			return nil, fmt.Errorf("%s: rate for %q: %w", EnvPromoCodes, code, err)
		}
		if rate <= 0 || rate >= 1 {
			return nil, fmt.Errorf("%s: rate for %q must be between 0 and 1", EnvPromoCodes, code)
		}
		out[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	return out, nil
}

func (p PaymentsConfig) validate() error {
	_, err := p.Promotions()
	return err
}

type StripeConfig struct {
	APIKey        string `envconfig:"PLAYFUNIA_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"PLAYFUNIA_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"PLAYFUNIA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"PLAYFUNIA_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"PLAYFUNIA_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"PLAYFUNIA_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// Enabled reports whether the Square credentials are configured.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != "" && strings.TrimSpace(s.LocationID) != ""
}

type BookingsConfig struct {
	DepositPercent   int    `envconfig:"PLAYFUNIA_BOOKING_DEPOSIT_PERCENT" default:"50"`
	CleaningFeeCents int64  `envconfig:"PLAYFUNIA_BOOKING_CLEANING_FEE_CENTS" default:"5000"`
	Locations        string `envconfig:"PLAYFUNIA_BOOKING_LOCATIONS" default:"Albany"`
}

// LocationList returns the venues that accept party bookings.
func (b BookingsConfig) LocationList() []string {
	return splitList(b.Locations)
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PLAYFUNIA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PLAYFUNIA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PLAYFUNIA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type AdminEventsConfig struct {
	Channel    string        `envconfig:"PLAYFUNIA_ADMIN_EVENTS_CHANNEL" default:"admin-events"`
	BufferSize int           `envconfig:"PLAYFUNIA_ADMIN_EVENTS_BUFFER" default:"100"`
	Heartbeat  time.Duration `envconfig:"PLAYFUNIA_ADMIN_EVENTS_HEARTBEAT" default:"25s"`
}

// RateLimitConfig throttles the public checkout and waiver surfaces.
type RateLimitConfig struct {
	Window     time.Duration `envconfig:"PLAYFUNIA_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit    int           `envconfig:"PLAYFUNIA_RATE_LIMIT_IP" default:"30"`
	EmailLimit int           `envconfig:"PLAYFUNIA_RATE_LIMIT_EMAIL" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ClientConfig configures cmd/cartctl. It is loaded independently of Config so
// the client does not need server credentials.
type ClientConfig struct {
	APIBaseURL     string        `envconfig:"PLAYFUNIA_CLIENT_API_URL" default:"http://localhost:8080"`
	Token          string        `envconfig:"PLAYFUNIA_CLIENT_TOKEN"`
	Provider       string        `envconfig:"PLAYFUNIA_CLIENT_PROVIDER" default:"stripe"`
	CartPath       string        `envconfig:"PLAYFUNIA_CLIENT_CART_PATH"`
	CartRedisKey   string        `envconfig:"PLAYFUNIA_CLIENT_CART_REDIS_KEY"`
	RedisURL       string        `envconfig:"PLAYFUNIA_CLIENT_REDIS_URL"`
	Timeout        time.Duration `envconfig:"PLAYFUNIA_CLIENT_TIMEOUT" default:"30s"`
	DebounceWindow time.Duration `envconfig:"PLAYFUNIA_CLIENT_DEBOUNCE" default:"750ms"`
	LogLevel       string        `envconfig:"PLAYFUNIA_CLIENT_LOG_LEVEL" default:"warn"`
	LogFormat      string        `envconfig:"PLAYFUNIA_CLIENT_LOG_FORMAT" default:"console"`

	StripeSecretKey     string `envconfig:"PLAYFUNIA_CLIENT_STRIPE_KEY"`
	StripePaymentMethod string `envconfig:"PLAYFUNIA_CLIENT_STRIPE_PAYMENT_METHOD" default:"pm_card_visa"`
	SquareSourceToken   string `envconfig:"PLAYFUNIA_CLIENT_SQUARE_SOURCE" default:"cnon:card-nonce-ok"`
}

func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderStripe, ProviderSquare:
		cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	default:
		return nil, fmt.Errorf("%s must be %s or %s", EnvClientProvider, ProviderStripe, ProviderSquare)
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 750 * time.Millisecond
	}
	return &cfg, nil
}
