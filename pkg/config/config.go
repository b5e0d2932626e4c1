package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	CORS     CORSConfig
	Backend  BackendConfig
	Session  SessionConfig
	Password PasswordConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Catalog  CatalogConfig
	Cart     CartConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Session.validate(cfg.Redis); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

// CORSConfig lists the UI origins allowed to call the agent API.
type CORSConfig struct {
	Origins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the storefront REST backend.
type BackendConfig struct {
	URL          string        `envconfig:"STOREFRONT_BACKEND_URL" required:"true"`
	Timeout      time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"0s"`
	ProductsPath string        `envconfig:"STOREFRONT_PRODUCTS_PATH" default:"/products"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.URL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackendURL)
	}
	if b.Timeout < 0 {
		return fmt.Errorf("%s cannot be negative", EnvBackendTimeout)
	}
	return nil
}

type SessionConfig struct {
	Backend    string `envconfig:"STOREFRONT_SESSION_BACKEND" default:"file"`
	File       string `envconfig:"STOREFRONT_SESSION_FILE" default:".storefront/session.json"`
	Passphrase string `envconfig:"STOREFRONT_SESSION_PASSPHRASE"`
}

// Kind returns the normalized backend name.
func (s SessionConfig) Kind() string {
	kind := strings.ToLower(strings.TrimSpace(s.Backend))
	if kind == "" {
		return SessionBackendFile
	}
	return kind
}

func (s SessionConfig) validate(redis RedisConfig) error {
	switch s.Kind() {
	case SessionBackendMemory:
		return nil
	case SessionBackendFile:
		if strings.TrimSpace(s.File) == "" {
			return fmt.Errorf("%s is required for the file session backend", EnvSessionFile)
		}
		return nil
	case SessionBackendEncrypted:
		if strings.TrimSpace(s.File) == "" {
			return fmt.Errorf("%s is required for the encrypted session backend", EnvSessionFile)
		}
		if s.Passphrase == "" {
			return fmt.Errorf("%s is required for the encrypted session backend", EnvSessionPassphrase)
		}
		return nil
	case SessionBackendRedis:
		if !redis.Configured() {
			return fmt.Errorf("redis session backend requires %s or %s", EnvRedisURL, EnvRedisAddr)
		}
		return nil
	}
	return fmt.Errorf("unknown %s %q", EnvSessionBackend, s.Backend)
}

// PasswordConfig tunes the argon2id derivation of the session file key.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyNamespace string        `envconfig:"STOREFRONT_REDIS_NAMESPACE" default:"sf"`
}

// Configured reports whether any redis endpoint was supplied.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig controls how bearer tokens are decoded into a session profile.
// An empty secret decodes claims without verifying the signature, the same
// trust level a browser client has.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER"`
}

type CatalogConfig struct {
	Cache    string        `envconfig:"STOREFRONT_CATALOG_CACHE" default:"memory"`
	CacheTTL time.Duration `envconfig:"STOREFRONT_CATALOG_CACHE_TTL" default:"5m"`
}

// CacheKind returns the normalized cache backend.
func (c CatalogConfig) CacheKind() string {
	kind := strings.ToLower(strings.TrimSpace(c.Cache))
	if kind == "" {
		return CatalogCacheMemory
	}
	return kind
}

type CartConfig struct {
	NoticeTTL time.Duration `envconfig:"STOREFRONT_NOTICE_TTL" default:"3s"`
}
