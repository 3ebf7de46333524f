package config

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "ledgerd"
	defaultAppEnv         = "development"
	defaultListenAddress  = "0.0.0.0:6969"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultTokenTTL       = 24 * time.Hour
	defaultStoreTimeout   = 2 * time.Second
	defaultBodyLimit      = 1 << 20
	defaultLoginRateLimit = 5
	defaultAlgorithm      = "HS256"
	generatedSecretLen    = 32
	secretAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Auth holds the token signing settings. It is built once by Load and passed by
// value, so nothing downstream can mutate the process-wide secret.
type Auth struct {
	Algorithm string
	Secret    string
	TokenTTL  time.Duration
	// SecretGenerated is set when no AUTH_SECRET was provided; tokens will not
	// survive a restart.
	SecretGenerated bool
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	ListenAddress  string
	LogLevel       string
	LogFile        string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	StoreTimeout   time.Duration
	KeepAlive      time.Duration
	BodyLimit      int
	LoginRateLimit int
	AdminUsers     []string
	Auth           Auth
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		ListenAddress:  listenAddress(),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFile:        os.Getenv("LOG_FILE"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		AdminUsers:     splitList(os.Getenv("ADMIN_USERS")),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		StoreTimeout:   defaultStoreTimeout,
		BodyLimit:      defaultBodyLimit,
		LoginRateLimit: defaultLoginRateLimit,
		Auth: Auth{
			Algorithm: strings.ToUpper(getEnv("AUTH_ALGORITHM", defaultAlgorithm)),
			Secret:    os.Getenv("AUTH_SECRET"),
			TokenTTL:  defaultTokenTTL,
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = durationEnv("STORE_TIMEOUT", cfg.StoreTimeout); err != nil {
		return Config{}, err
	}
	if cfg.KeepAlive, err = durationEnv("KEEP_ALIVE", 0); err != nil {
		return Config{}, err
	}
	if cfg.Auth.TokenTTL, err = durationEnv("TOKEN_TTL", cfg.Auth.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.BodyLimit, err = intEnv("BODY_LIMIT", cfg.BodyLimit); err != nil {
		return Config{}, err
	}
	if cfg.LoginRateLimit, err = intEnv("LOGIN_RATE_LIMIT", cfg.LoginRateLimit); err != nil {
		return Config{}, err
	}

	if cfg.Auth.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL must be positive")
	}

	if cfg.Auth.Secret == "" {
		secret, err := randomSecret(generatedSecretLen)
		if err != nil {
			return Config{}, fmt.Errorf("generate auth secret: %w", err)
		}
		cfg.Auth.Secret = secret
		cfg.Auth.SecretGenerated = true
	}

	if cfg.RedisURL == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}

	return cfg, nil
}

// IsDev reports whether in-memory fallbacks are acceptable.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the identity key is configured as an administrator.
func (c Config) IsAdmin(key string) bool {
	for _, admin := range c.AdminUsers {
		if strings.EqualFold(admin, key) {
			return true
		}
	}
	return false
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.Contains(c.ListenAddress, ":") {
		return c.ListenAddress
	}
	return fmt.Sprintf(":%s", c.ListenAddress)
}

func listenAddress() string {
	if v := os.Getenv("LISTEN_ADDRESS"); v != "" {
		return v
	}
	if v := os.Getenv("PORT"); v != "" {
		return v
	}
	return defaultListenAddress
}

// durationEnv accepts either <KEY>_SECONDS as an integer or <KEY> as a Go duration.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func randomSecret(n int) (string, error) {
	max := big.NewInt(int64(len(secretAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(secretAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
