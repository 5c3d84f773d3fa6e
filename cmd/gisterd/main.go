package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/mikolajkapica/gister/command"
	"github.com/mikolajkapica/gister/core"
	"github.com/mikolajkapica/gister/gists"
	"github.com/mikolajkapica/gister/identity"
	"github.com/mikolajkapica/gister/inbound"
	"github.com/mikolajkapica/gister/migrations"
	"github.com/mikolajkapica/gister/query"
	sqlstore "github.com/mikolajkapica/gister/store/sql"
)

func main() {
	log.SetPrefix("[GISTERD] ")

	envCfg, err := loadEnvironment()
	if err != nil {
		log.Fatalf("load environment: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, envCfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

func run(ctx context.Context, envCfg environment) error {
	cfg, err := core.ResolveConfig(ctx, nil, nil, core.Config{
		Upstream: core.UpstreamConfig{
			BaseURL:        envCfg.UpstreamBaseURL,
			RequestTimeout: envCfg.UpstreamTimeout,
		},
	})
	if err != nil {
		return err
	}

	client, err := openPersistence(ctx, envCfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}

	credentialStore, err := buildCredentialStore(factory, envCfg)
	if err != nil {
		return err
	}

	resolver := identity.NewResolver(identity.Config{
		Verifier: buildSessionVerifier(envCfg),
		Fallback: identity.FallbackConfig{
			HMACSecret:      envCfg.JWTHMACSecret,
			Issuer:          envCfg.JWTIssuer,
			Audience:        envCfg.JWTAudience,
			AllowUnverified: envCfg.JWTAllowUnverified,
		},
	})

	registry := prometheus.NewRegistry()
	service, err := gists.NewService(cfg,
		gists.WithCredentialStore(credentialStore),
		gists.WithMetricsRecorder(inbound.NewPrometheusRecorder(registry)),
	)
	if err != nil {
		return err
	}

	handler := inbound.NewRouter(&inbound.RouterDeps{
		Resolver:        resolver,
		HealthCheck:     query.NewHealthCheckQuery(),
		ListGists:       query.NewListGistsQuery(service),
		GetGist:         query.NewGetGistQuery(service),
		CreateGist:      command.NewCreateGistCommand(service),
		UpdateGist:      command.NewUpdateGistCommand(service),
		DeleteGist:      command.NewDeleteGistCommand(service),
		MetricsGatherer: registry,
	})

	server := &http.Server{
		Addr:              envCfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", envCfg.HTTPAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), envCfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Printf("shutdown complete")
	return nil
}

func openPersistence(ctx context.Context, envCfg environment) (*persistence.Client, error) {
	dialect, err := envCfg.migrationDialect()
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(envCfg.DBDriver, envCfg.DBDSN)
	if err != nil {
		return nil, err
	}

	client, err := persistence.New(persistenceConfig{env: envCfg}, sqlDB, bunDialect(envCfg.DBDriver))
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	err = migrations.Register(ctx, func(_ context.Context, fsDialect string, fsys fs.FS) error {
		if fsDialect != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithValidationTargets(dialect))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func bunDialect(driver string) schema.Dialect {
	if strings.TrimSpace(driver) == "postgres" {
		return pgdialect.New()
	}
	return sqlitedialect.New()
}

func buildCredentialStore(factory *sqlstore.RepositoryFactory, envCfg environment) (core.CredentialStore, error) {
	cacheCfg := repositorycache.DefaultConfig()
	if envCfg.CredentialCacheTTL > 0 {
		cacheCfg.TTL = envCfg.CredentialCacheTTL
	}
	cacheService, err := repositorycache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewCachedLinkedCredentialStore(factory.LinkedCredentialStore(), cacheService)
}

func buildSessionVerifier(envCfg environment) core.SessionVerifier {
	baseURL := strings.TrimSpace(envCfg.AuthBaseURL)
	if baseURL == "" {
		return nil
	}
	return &identity.HTTPSessionVerifier{
		BaseURL:     baseURL,
		SessionPath: envCfg.AuthSessionPath,
	}
}
