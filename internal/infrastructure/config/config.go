package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Supported identity providers.
const (
	ProviderKeycloak = "keycloak"
	ProviderCognito  = "cognito"
	ProviderLocal    = "local"
)

// Supported session cache backends.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

type Config struct {
	Port      string `env:"PORT,       default=8080"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	IDP      IDPConfig
	Keycloak KeycloakConfig
	Cognito  CognitoConfig
	Local    LocalIDPConfig
	Session  SessionConfig
	Mapping  MappingConfig
	Services ServicesConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Limits   LimitsConfig
}

type IDPConfig struct {
	Provider string        `env:"IDP_PROVIDER, default=keycloak"`
	Timeout  time.Duration `env:"IDP_TIMEOUT,  default=10s"`
}

type KeycloakConfig struct {
	ServerURL    string   `env:"KEYCLOAK_SERVER_URL"`
	Realm        string   `env:"KEYCLOAK_REALM"`
	ClientID     string   `env:"KEYCLOAK_CLIENT_ID"`
	ClientSecret string   `env:"KEYCLOAK_CLIENT_SECRET"`
	Scopes       []string `env:"KEYCLOAK_SCOPES, default=openid,profile,email"`
}

type CognitoConfig struct {
	Region       string `env:"COGNITO_REGION"`
	UserPoolID   string `env:"COGNITO_USER_POOL_ID"`
	ClientID     string `env:"COGNITO_CLIENT_ID"`
	ClientSecret string `env:"COGNITO_CLIENT_SECRET"`
	// Endpoint overrides https://cognito-idp.<region>.amazonaws.com/.
	Endpoint string `env:"COGNITO_ENDPOINT"`
}

type LocalIDPConfig struct {
	Issuer     string        `env:"LOCAL_IDP_ISSUER,      default=security-center"`
	Secret     string        `env:"LOCAL_IDP_SECRET"`
	AccessTTL  time.Duration `env:"LOCAL_IDP_ACCESS_TTL,  default=15m"`
	RefreshTTL time.Duration `env:"LOCAL_IDP_REFRESH_TTL, default=24h"`
}

type SessionConfig struct {
	Timeout           time.Duration `env:"SESSION_TIMEOUT,            default=30m"`
	SlidingExpiration bool          `env:"SESSION_SLIDING_EXPIRATION, default=true"`
	MaxTTL            time.Duration `env:"SESSION_MAX_TTL,            default=8h"`
	Cache             string        `env:"SESSION_CACHE,              default=redis"`
	CacheSize         int           `env:"SESSION_CACHE_SIZE,         default=10000"`
	CacheTimeout      time.Duration `env:"CACHE_TIMEOUT,              default=1s"`
	ResolverTimeout   time.Duration `env:"RESOLVER_TIMEOUT,           default=3s"`
}

type MappingConfig struct {
	LookupTimeout   time.Duration `env:"MAPPER_LOOKUP_TIMEOUT,     default=2s"`
	FallbackEnabled bool          `env:"IDENTITY_FALLBACK_ENABLED, default=true"`
}

type ServicesConfig struct {
	CustomerMgmtURL  string `env:"CUSTOMER_MGMT_URL"`
	ContractMgmtURL  string `env:"CONTRACT_MGMT_URL"`
	ProductMgmtURL   string `env:"PRODUCT_MGMT_URL"`
	ReferenceDataURL string `env:"REFERENCE_DATA_URL"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=security_center"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,      default=localhost:6379"`
	DB       int    `env:"REDIS_DB,        default=0"`
	Password string `env:"REDIS_PASSWORD"`
	PoolSize int    `env:"REDIS_POOL_SIZE, default=0"`
}

type LimitsConfig struct {
	LoginPerMinute    int `env:"LOGIN_RATE_PER_MINUTE, default=30"`
	LoginBurst        int `env:"LOGIN_RATE_BURST,      default=10"`
	DispatcherWorkers int `env:"DISPATCHER_WORKERS,    default=8"`
}

// Load reads configuration from environment variables using go-envconfig and
// validates it.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.IDP.Provider = strings.ToLower(strings.TrimSpace(cfg.IDP.Provider))
	cfg.Session.Cache = strings.ToLower(strings.TrimSpace(cfg.Session.Cache))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the block of the selected provider and the cross-field
// constraints.
func (c *Config) Validate() error {
	var errs []error
	switch c.IDP.Provider {
	case ProviderKeycloak:
		errs = append(errs, required(map[string]string{
			"KEYCLOAK_SERVER_URL": c.Keycloak.ServerURL,
			"KEYCLOAK_REALM":      c.Keycloak.Realm,
			"KEYCLOAK_CLIENT_ID":  c.Keycloak.ClientID,
		})...)
	case ProviderCognito:
		errs = append(errs, required(map[string]string{
			"COGNITO_REGION":       c.Cognito.Region,
			"COGNITO_USER_POOL_ID": c.Cognito.UserPoolID,
			"COGNITO_CLIENT_ID":    c.Cognito.ClientID,
		})...)
	case ProviderLocal:
		errs = append(errs, required(map[string]string{
			"LOCAL_IDP_SECRET": c.Local.Secret,
			"MONGO_URI":        c.Mongo.URI,
		})...)
	default:
		errs = append(errs, fmt.Errorf("IDP_PROVIDER %q is not one of keycloak, cognito, local", c.IDP.Provider))
	}

	switch c.Session.Cache {
	case CacheRedis, CacheMemory:
	default:
		errs = append(errs, fmt.Errorf("SESSION_CACHE %q is not one of redis, memory", c.Session.Cache))
	}
	if c.Session.Timeout <= 0 {
		errs = append(errs, errors.New("SESSION_TIMEOUT must be positive"))
	}
	if c.Session.MaxTTL < c.Session.Timeout {
		errs = append(errs, errors.New("SESSION_MAX_TTL must not be shorter than SESSION_TIMEOUT"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NeedsMongo reports whether a MongoDB connection is configured. The local
// provider cannot run without one.
func (c *Config) NeedsMongo() bool {
	return c.Mongo.URI != ""
}

// NeedsRedis reports whether a Redis connection is required.
func (c *Config) NeedsRedis() bool {
	return c.Session.Cache == CacheRedis || c.IDP.Provider == ProviderLocal
}

func required(fields map[string]string) []error {
	var errs []error
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	return errs
}
