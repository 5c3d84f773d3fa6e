package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/mikolajkapica/gister/core"
	gistermigrations "github.com/mikolajkapica/gister/migrations"
	sqlstore "github.com/mikolajkapica/gister/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "gister-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"linked_credentials",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "linked_credentials" {
		t.Fatalf("expected linked_credentials table, got %q", tableName)
	}
}

func TestLinkedCredentialStore_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.LinkedCredentialStore()
	if store == nil {
		t.Fatalf("expected linked credential store from factory")
	}

	saved, err := store.SaveLinked(ctx, core.LinkedCredential{
		UserID:      "usr_1",
		Provider:    core.ProviderGitHub,
		AccessToken: "gho_first",
	})
	if err != nil {
		t.Fatalf("save linked credential: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected generated credential id")
	}
	if saved.LinkedAt.IsZero() {
		t.Fatalf("expected linked_at to be set")
	}

	found, err := store.FindLinkedCredential(ctx, "usr_1", core.ProviderGitHub)
	if err != nil {
		t.Fatalf("find linked credential: %v", err)
	}
	if found.AccessToken != "gho_first" {
		t.Fatalf("expected stored token, got %q", found.AccessToken)
	}
	if found.UserID != "usr_1" || found.Provider != core.ProviderGitHub {
		t.Fatalf("unexpected credential identity: %+v", found)
	}
}

func TestLinkedCredentialStore_SaveLinked_ReplacesExistingRow(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.LinkedCredentialStore()

	if _, err := store.SaveLinked(ctx, core.LinkedCredential{
		UserID:      "usr_relink",
		Provider:    core.ProviderGitHub,
		AccessToken: "gho_old",
	}); err != nil {
		t.Fatalf("save first credential: %v", err)
	}
	if _, err := store.SaveLinked(ctx, core.LinkedCredential{
		UserID:      "usr_relink",
		Provider:    core.ProviderGitHub,
		AccessToken: "gho_new",
	}); err != nil {
		t.Fatalf("save replacement credential: %v", err)
	}

	found, err := store.FindLinkedCredential(ctx, "usr_relink", core.ProviderGitHub)
	if err != nil {
		t.Fatalf("find after relink: %v", err)
	}
	if found.AccessToken != "gho_new" {
		t.Fatalf("expected replacement token, got %q", found.AccessToken)
	}

	var rowCount int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM linked_credentials WHERE user_id = ? AND provider = ?",
		"usr_relink",
		string(core.ProviderGitHub),
	).Scan(ctx, &rowCount); err != nil {
		t.Fatalf("count credential rows: %v", err)
	}
	if rowCount != 1 {
		t.Fatalf("expected exactly 1 credential row after relink, got %d", rowCount)
	}
}

func TestLinkedCredentialStore_FindMissingReportsNotFound(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}

	_, err = factory.LinkedCredentialStore().FindLinkedCredential(ctx, "usr_missing", core.ProviderGitHub)
	if err == nil {
		t.Fatalf("expected not-found error for unlinked user")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error text, got %v", err)
	}
	if !core.IsNotFound(err) {
		t.Fatalf("expected typed not-found error, got %v", err)
	}
}

func TestLinkedCredentialStore_Unlink(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.LinkedCredentialStore()

	if _, err := store.SaveLinked(ctx, core.LinkedCredential{
		UserID:      "usr_unlink",
		Provider:    core.ProviderGitHub,
		AccessToken: "gho_gone",
	}); err != nil {
		t.Fatalf("save credential: %v", err)
	}
	if err := store.Unlink(ctx, "usr_unlink", core.ProviderGitHub); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := store.FindLinkedCredential(ctx, "usr_unlink", core.ProviderGitHub); err == nil {
		t.Fatalf("expected find to fail after unlink")
	}
	// Unlinking again is a no-op.
	if err := store.Unlink(ctx, "usr_unlink", core.ProviderGitHub); err != nil {
		t.Fatalf("repeat unlink: %v", err)
	}
}

func TestCachedLinkedCredentialStore_HitAndInvalidation(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	cacheService := newTestCacheService(t)
	cached, err := sqlstore.NewCachedLinkedCredentialStore(factory.LinkedCredentialStore(), cacheService)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, err := cached.SaveLinked(ctx, core.LinkedCredential{
		UserID:      "usr_cache",
		Provider:    core.ProviderGitHub,
		AccessToken: "gho_v1",
	}); err != nil {
		t.Fatalf("save credential: %v", err)
	}

	first, err := cached.FindLinkedCredential(ctx, "usr_cache", core.ProviderGitHub)
	if err != nil {
		t.Fatalf("first find: %v", err)
	}
	if first.AccessToken != "gho_v1" {
		t.Fatalf("expected gho_v1, got %q", first.AccessToken)
	}

	// Mutate the row behind the cache; the cached read keeps serving the
	// primed value until a write through the cached store invalidates it.
	if _, err := client.DB().NewUpdate().
		Table("linked_credentials").
		Set("access_token = ?", "gho_behind_cache").
		Where("user_id = ?", "usr_cache").
		Exec(ctx); err != nil {
		t.Fatalf("update behind cache: %v", err)
	}

	second, err := cached.FindLinkedCredential(ctx, "usr_cache", core.ProviderGitHub)
	if err != nil {
		t.Fatalf("second find: %v", err)
	}
	if second.AccessToken != "gho_v1" {
		t.Fatalf("expected cache hit to return gho_v1, got %q", second.AccessToken)
	}

	if _, err := cached.SaveLinked(ctx, core.LinkedCredential{
		UserID:      "usr_cache",
		Provider:    core.ProviderGitHub,
		AccessToken: "gho_v2",
	}); err != nil {
		t.Fatalf("save replacement: %v", err)
	}

	third, err := cached.FindLinkedCredential(ctx, "usr_cache", core.ProviderGitHub)
	if err != nil {
		t.Fatalf("third find: %v", err)
	}
	if third.AccessToken != "gho_v2" {
		t.Fatalf("expected invalidated read to return gho_v2, got %q", third.AccessToken)
	}
}

func TestLinkedCredentialCacheKey_EscapesSegments(t *testing.T) {
	key, err := sqlstore.LinkedCredentialCacheKey("usr/one", "github")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	want := "gister::linked_credential::v1::usr%2Fone::github"
	if key != want {
		t.Fatalf("expected %q, got %q", want, key)
	}

	if _, err := sqlstore.LinkedCredentialCacheKey("  ", "github"); err == nil {
		t.Fatalf("expected error for blank user")
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:gister-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	err = gistermigrations.Register(ctx, func(_ context.Context, dialect string, fsys fs.FS) error {
		if dialect != gistermigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, gistermigrations.WithValidationTargets(gistermigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
