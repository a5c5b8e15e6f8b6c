package config

import (
	"os"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	DatabaseURL   string // postgres DSN; empty means embedded sqlite
	SQLitePath    string // file path for the embedded backend
	JWTSigningKey string
	TxTimeout     time.Duration

	// BootstrapPassword, when set, creates the initial platform operator
	// account on first start. Ignored once the account exists.
	BootstrapUsername string
	BootstrapPassword string
	// SeedDemo creates a demo organisation with the default referring
	// institutions. Development only.
	SeedDemo bool
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("VETTINGHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "hub.db"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; must be overridden in production.
		jwtSigningKey = "dev-secret-change-me"
	}

	bootstrapUser := os.Getenv("VETTINGHUB_BOOTSTRAP_USER")
	if bootstrapUser == "" {
		bootstrapUser = "operator"
	}

	return Server{
		Addr:              addr,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        sqlitePath,
		JWTSigningKey:     jwtSigningKey,
		TxTimeout:         5 * time.Second,
		BootstrapUsername: bootstrapUser,
		BootstrapPassword: os.Getenv("VETTINGHUB_BOOTSTRAP_PASSWORD"),
		SeedDemo:          os.Getenv("VETTINGHUB_SEED_DEMO") == "true",
	}
}
