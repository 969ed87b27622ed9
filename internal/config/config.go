package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// Portal database (profiles + clinic tables).
	DBURL       string
	AutoMigrate bool

	// External credential store (auth service).
	CredStoreURL     string
	CredStoreAnonKey string
	// Optional service-role key used by the reconciler's admin calls.
	CredStoreServiceKey string

	// Shared HS256 secret used to verify store-issued tokens and to mint
	// local tokens for fallback sessions.
	JWTSecret           string
	JWTAccessTTLMinutes int

	// Session mirror / fallback credential record.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Role assumed when a strategy succeeds but no profile row can be
	// resolved. Empty means: treat the login as unauthenticated.
	ProfileFallbackRole string

	// Optional first-admin bootstrap at startup.
	AdminEmail    string
	AdminPassword string
	AdminName     string

	// Password assigned to admin-created accounts until the user resets it.
	DefaultUserPassword string

	AllowedOrigins []string

	OTLPEndpoint string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load(".env")

	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 8080)
	dbURL := buildDBURL()

	return Config{
		Env:         env,
		Port:        port,
		DBURL:       dbURL,
		AutoMigrate: getEnvBool("AUTO_MIGRATE", env == "dev"),

		CredStoreURL:        getEnv("CREDSTORE_URL", ""),
		CredStoreAnonKey:    getEnv("CREDSTORE_ANON_KEY", ""),
		CredStoreServiceKey: getEnv("CREDSTORE_SERVICE_KEY", ""),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ProfileFallbackRole: getEnv("AUTH_PROFILE_FALLBACK_ROLE", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrador"),

		DefaultUserPassword: getEnv("DEFAULT_USER_PASSWORD", "nb@123"),

		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}
}

// CredStoreConfigured reports whether both required connection parameters
// for the credential store are present. Session bootstrap refuses to run
// without them.
func (c Config) CredStoreConfigured() bool {
	return c.CredStoreURL != "" && c.CredStoreAnonKey != ""
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "portal")
	pass := getEnv("DB_PASSWORD", "portal")
	name := getEnv("DB_NAME", "portal")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			return fallback
		}

		return b
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)

		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
