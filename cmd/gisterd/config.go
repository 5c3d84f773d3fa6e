package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mikolajkapica/gister/migrations"
)

// environment holds raw settings for the gisterd process. Everything has a
// usable default except the auth collaborator URL and JWT key material,
// which stay empty when the deployment does not use that path.
type environment struct {
	HTTPAddr        string        `env:"GISTER_HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"GISTER_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	DBDriver      string        `env:"GISTER_DB_DRIVER" envDefault:"sqlite3"`
	DBDSN         string        `env:"GISTER_DB_DSN" envDefault:"file:gister.db?cache=shared&_foreign_keys=on"`
	DBDebug       bool          `env:"GISTER_DB_DEBUG"`
	DBPingTimeout time.Duration `env:"GISTER_DB_PING_TIMEOUT" envDefault:"5s"`

	AuthBaseURL     string `env:"GISTER_AUTH_BASE_URL"`
	AuthSessionPath string `env:"GISTER_AUTH_SESSION_PATH" envDefault:"/api/auth/get-session"`

	JWTHMACSecret      string `env:"GISTER_JWT_HMAC_SECRET"`
	JWTIssuer          string `env:"GISTER_JWT_ISSUER"`
	JWTAudience        string `env:"GISTER_JWT_AUDIENCE"`
	JWTAllowUnverified bool   `env:"GISTER_JWT_ALLOW_UNVERIFIED"`

	UpstreamBaseURL string        `env:"GISTER_UPSTREAM_BASE_URL"`
	UpstreamTimeout time.Duration `env:"GISTER_UPSTREAM_TIMEOUT"`

	CredentialCacheTTL time.Duration `env:"GISTER_CREDENTIAL_CACHE_TTL" envDefault:"1m"`
}

func loadEnvironment() (environment, error) {
	var cfg environment
	if err := env.Parse(&cfg); err != nil {
		return environment{}, fmt.Errorf("gisterd: parse environment: %w", err)
	}
	if _, err := cfg.migrationDialect(); err != nil {
		return environment{}, err
	}
	return cfg, nil
}

func (e environment) migrationDialect() (string, error) {
	switch strings.TrimSpace(e.DBDriver) {
	case "sqlite3":
		return migrations.DialectSQLite, nil
	case "postgres":
		return migrations.DialectPostgres, nil
	default:
		return "", fmt.Errorf("gisterd: unsupported database driver %q", e.DBDriver)
	}
}

// persistenceConfig adapts the process environment to the persistence
// client's config contract.
type persistenceConfig struct {
	env environment
}

func (c persistenceConfig) GetDebug() bool {
	return c.env.DBDebug
}

func (c persistenceConfig) GetDriver() string {
	return c.env.DBDriver
}

func (c persistenceConfig) GetServer() string {
	return c.env.DBDSN
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return c.env.DBPingTimeout
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "gisterd"
}
