package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/joho/godotenv" // godotenv loads .env files into the environment
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBDriver       string // "mysql" (default) or "sqlite"
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	SQLitePath     string // database file when DBDriver is sqlite
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	HoldDefaultMin int    // hold duration used when a request omits hold_minutes
	HoldMaxMin     int    // upper bound accepted for hold_minutes
}

// LoadEnvFiles loads the given .env files (".env" when none are given)
// into the process environment.  Variables that are already set win and
// missing files are ignored.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Fatalf("load %s: %v", f, err)
		}
	}
}

// maxHoldMinutes is the longest hold a deployment may allow.
const maxHoldMinutes = 20

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The MySQL
// connection variables are only required when DB_DRIVER is mysql.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),                   // environment (dev/test/prod)
		Port:           must("APP_PORT"),                  // port to bind the HTTP server
		DBDriver:       envStr("DB_DRIVER", "mysql"),      // storage backend
		DBPass:         os.Getenv("DB_PASS"),              // database password (empty allowed)
		SQLitePath:     envStr("SQLITE_PATH", "data/ticketing.db"),
		JWTSecret:      must("JWT_SECRET"),                // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor
		HoldDefaultMin: envInt("HOLD_DEFAULT_MINUTES", 10),
		HoldMaxMin:     envInt("HOLD_MAX_MINUTES", maxHoldMinutes),
	}
	if cfg.DBDriver == "mysql" {
		cfg.DBUser = must("DB_USER") // database user
		cfg.DBHost = must("DB_HOST") // database host
		cfg.DBPort = must("DB_PORT") // database port
		cfg.DBName = must("DB_NAME") // database name
	}
	if cfg.HoldMaxMin < 1 || cfg.HoldMaxMin > maxHoldMinutes {
		cfg.HoldMaxMin = maxHoldMinutes
	}
	if cfg.HoldDefaultMin < 1 || cfg.HoldDefaultMin > cfg.HoldMaxMin {
		log.Fatalf("HOLD_DEFAULT_MINUTES must be between 1 and %d", cfg.HoldMaxMin)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
