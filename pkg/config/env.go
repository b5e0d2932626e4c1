package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	SessionBackendMemory    = "memory"
	SessionBackendFile      = "file"
	SessionBackendEncrypted = "encrypted"
	SessionBackendRedis     = "redis"
)

const (
	CatalogCacheMemory = "memory"
	CatalogCacheRedis  = "redis"
	CatalogCacheOff    = "off"
)

const (
	EnvAppEnv            = "STOREFRONT_APP_ENV"
	EnvPort              = "STOREFRONT_APP_PORT"
	EnvLogLevel          = "STOREFRONT_LOG_LEVEL"
	EnvBackendURL        = "STOREFRONT_BACKEND_URL"
	EnvBackendTimeout    = "STOREFRONT_BACKEND_TIMEOUT"
	EnvSessionBackend    = "STOREFRONT_SESSION_BACKEND"
	EnvSessionFile       = "STOREFRONT_SESSION_FILE"
	EnvSessionPassphrase = "STOREFRONT_SESSION_PASSPHRASE"
	EnvRedisURL          = "STOREFRONT_REDIS_URL"
	EnvRedisAddr         = "STOREFRONT_REDIS_ADDR"
	EnvJWTSecret         = "STOREFRONT_JWT_SECRET"
	EnvCatalogCache      = "STOREFRONT_CATALOG_CACHE"
	EnvCatalogCacheTTL   = "STOREFRONT_CATALOG_CACHE_TTL"
	EnvNoticeTTL         = "STOREFRONT_NOTICE_TTL"
)
