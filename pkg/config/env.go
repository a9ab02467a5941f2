package config

const (
	EnvPrefix = "PLAYFUNIA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ProviderStripe = "stripe"
	ProviderSquare = "square"
)

const (
	EnvAppEnv       = "PLAYFUNIA_APP_ENV"
	EnvPort         = "PLAYFUNIA_APP_PORT"
	EnvLogLevel     = "PLAYFUNIA_LOG_LEVEL"
	EnvDBDSN        = "PLAYFUNIA_DB_DSN"
	EnvDBHost       = "PLAYFUNIA_DB_HOST"
	EnvDBUser       = "PLAYFUNIA_DB_USER"
	EnvDBName       = "PLAYFUNIA_DB_NAME"
	EnvUseSQLite    = "PLAYFUNIA_USE_SQLITE"
	EnvMockPayments = "PLAYFUNIA_MOCK_PAYMENTS"
	EnvRedisURL     = "PLAYFUNIA_REDIS_URL"
	EnvJWTSecret    = "PLAYFUNIA_JWT_SECRET"
	EnvJWTIssuer    = "PLAYFUNIA_JWT_ISSUER"
	EnvPromoCodes   = "PLAYFUNIA_PROMO_CODES"
	EnvDepositPct   = "PLAYFUNIA_BOOKING_DEPOSIT_PERCENT"
	EnvSquareToken  = "PLAYFUNIA_SQUARE_ACCESS_TOKEN"
	EnvSquareLoc    = "PLAYFUNIA_SQUARE_LOCATION_ID"

	EnvClientProvider = "PLAYFUNIA_CLIENT_PROVIDER"
	EnvClientDebounce = "PLAYFUNIA_CLIENT_DEBOUNCE"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
