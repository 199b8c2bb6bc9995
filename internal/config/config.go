package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBDriver string // sqlite | pgx
	DBDSN    string
	LogFile  string
	SeedDemo bool

	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	SendGridAPIKey string
	MailFrom       string
	NotifyTimeout  time.Duration

	OrderPrefix       string
	CartSweepInterval time.Duration
	CORSOrigins       string
}

// Load reads the environment, after merging an optional .env file. Variables
// already set in the process win over .env entries.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] could not read .env: %v", err)
	}

	cfg := Config{
		Port:     env("PORT", "8080"),
		DBDriver: env("DB_DRIVER", "sqlite"),
		DBDSN:    env("DB_DSN", "autospa.db"), // sqlite file in project root
		LogFile:  env("LOG_FILE", "./autospa.log"),
		SeedDemo: envBool("SEED_DEMO", true),

		JWTSecret:        env("JWT_SECRET", "dev-access-secret"),
		JWTRefreshSecret: env("JWT_REFRESH_SECRET", "dev-refresh-secret"),
		AccessTokenTTL:   envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		MailFrom:       env("MAIL_FROM", "ventas@autospa.cl"),
		NotifyTimeout:  envDuration("NOTIFY_TIMEOUT", 10*time.Second),

		OrderPrefix:       env("ORDER_PREFIX", "ORD"),
		CartSweepInterval: envDuration("CART_SWEEP_INTERVAL", time.Hour),
		CORSOrigins:       env("CORS_ORIGINS", "*"),
	}

	log.Printf("[config] PORT=%s DB_DRIVER=%s DB_DSN=%s LOG_FILE=%s SENDGRID=%t ORDER_PREFIX=%s",
		cfg.Port, cfg.DBDriver, mask(cfg.DBDSN), cfg.LogFile, cfg.SendGridAPIKey != "", cfg.OrderPrefix)
	if cfg.JWTSecret == "dev-access-secret" {
		log.Printf("[config] JWT_SECRET not set, using development secret")
	}
	return cfg
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] %s=%q is not a bool, using %t", key, v, def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] %s=%q is not a positive duration, using %s", key, v, def)
		return def
	}
	return d
}

// mask hides credentials embedded in a postgres URL.
func mask(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
