package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"house-points-service/internal/app"
	"house-points-service/internal/domain"
	pgstore "house-points-service/internal/infra/postgres"
	pgmigrations "house-points-service/internal/infra/postgres/migrations"
	redisinfra "house-points-service/internal/infra/redis"
)

func TestPointsLedgerEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := pgstore.NewStore(pool)
	identity := pgstore.NewIdentity(pool)
	standings := redisinfra.NewStandingsCache(redisClient, store, 5*time.Minute)
	service := app.NewHouseService(store, identity, nil, standings, nil)

	student, err := service.Signup(ctx, app.SignupInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	house, err := service.SubmitQuiz(ctx, student.ID, []string{"1", "1", "1", "0"})
	if err != nil {
		t.Fatalf("submit quiz: %v", err)
	}
	if house != domain.Slytherin {
		t.Fatalf("expected Slytherin, got %s", house)
	}

	newTotal, err := service.ApplyPointsChange(ctx, student.ID, 10, "quiz bonus")
	if err != nil {
		t.Fatalf("apply points: %v", err)
	}
	if newTotal != 10 {
		t.Fatalf("expected total 10, got %d", newTotal)
	}

	dashboard, err := service.Dashboard(ctx, student.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.Profile.TotalPoints != 10 || dashboard.Profile.AssignedHouse != domain.Slytherin {
		t.Fatalf("unexpected profile %+v", dashboard.Profile)
	}
	if len(dashboard.Transactions) != 1 || dashboard.Transactions[0].Delta != 10 {
		t.Fatalf("expected one ledger entry of 10, got %+v", dashboard.Transactions)
	}
	if dashboard.Houses[0].Name != domain.Slytherin || dashboard.Houses[0].TotalPoints != 10 {
		t.Fatalf("expected Slytherin leading at 10, got %+v", dashboard.Houses)
	}

	// Repeat signup with the same email keeps the account and its points.
	again, err := service.Signup(ctx, app.SignupInput{
		Name:     "Alice Updated",
		Email:    "alice@example.com",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("repeat signup: %v", err)
	}
	if again.ID != student.ID || again.TotalPoints != 10 {
		t.Fatalf("expected same account with total 10, got %+v", again)
	}
}

func TestConcurrentHouseAdjustsOnPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewStore(pool)
	if err := store.EnsureHouse(ctx, domain.Gryffindor); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := store.AdjustHousePoints(ctx, domain.Gryffindor, 1); err != nil {
				t.Errorf("adjust: %v", err)
			}
		}()
	}
	wg.Wait()

	// Concurrent seeding must not reset the total or add rows.
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := store.EnsureHouse(ctx, domain.Gryffindor); err != nil {
				t.Errorf("ensure: %v", err)
			}
		}()
	}
	wg.Wait()

	standings, err := store.ListHouses(ctx)
	if err != nil {
		t.Fatalf("list houses: %v", err)
	}
	if len(standings) != 1 || standings[0].TotalPoints != n {
		t.Fatalf("expected one Gryffindor row at %d, got %+v", n, standings)
	}
}

func TestReconcileRebuildsTotals(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewStore(pool)
	identity := pgstore.NewIdentity(pool)
	service := app.NewHouseService(store, identity, nil, nil, nil)

	student, err := service.Signup(ctx, app.SignupInput{Name: "Bob", Email: "bob@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := service.SubmitQuiz(ctx, student.ID, []string{"0"}); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if _, err := service.ApplyPointsChange(ctx, student.ID, 25, "seed"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// Corrupt the projections out-of-band; the log stays authoritative.
	if _, err := pool.Exec(ctx, `UPDATE students SET total_points = 999`); err != nil {
		t.Fatalf("corrupt students: %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE houses SET total_points = -1`); err != nil {
		t.Fatalf("corrupt houses: %v", err)
	}

	db := openBun(pgURL)
	defer db.Close()
	if err := pgstore.Reconcile(ctx, db); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	fixed, err := store.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("get student: %v", err)
	}
	if fixed.TotalPoints != 25 {
		t.Fatalf("expected reconciled total 25, got %d", fixed.TotalPoints)
	}
	standings, err := store.RankedStandings(ctx)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if standings[0].Name != domain.Gryffindor || standings[0].TotalPoints != 25 {
		t.Fatalf("expected Gryffindor at 25, got %+v", standings)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "points", "POSTGRES_PASSWORD": "pointspass", "POSTGRES_DB": "pointsdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://points:pointspass@%s:%s/pointsdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	db := openBun(dsn)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
