package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"house-points-service/internal/app"
	"house-points-service/internal/config"
	"house-points-service/internal/infra/memory"
	pgstore "house-points-service/internal/infra/postgres"
	redisinfra "house-points-service/internal/infra/redis"
	transport "house-points-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the house points server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	adminKey := cfg.Admin.Key
	if envKey := os.Getenv("ADMIN_API_KEY"); envKey != "" {
		adminKey = envKey
	}
	if adminKey == "" {
		log.Printf("warning: admin routes are unguarded (no admin key configured)")
	}

	var store app.Store
	var identity app.Identity
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewStore(pool)
		identity = pgstore.NewIdentity(pool)
	} else {
		log.Printf("no postgres url configured, using volatile in-memory store")
		store = memory.NewStore()
		identity = memory.NewIdentity()
	}

	var standings app.StandingsProvider
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		standingsTTL := config.TTLDuration(cfg.Standings.TTL, time.Minute)
		standings = redisinfra.NewStandingsCache(redisClient, store, standingsTTL)
	}

	keywords, err := cfg.HouseKeywords()
	if err != nil {
		return err
	}
	sorter := app.NewSorter(keywords)

	service := app.NewHouseService(store, identity, sorter, standings, app.NewBroadcaster())
	if err := service.SeedHouses(ctx); err != nil {
		return err
	}

	handler := transport.NewHandler(service, adminKey, transport.BootstrapAdmin{
		Name:     cfg.Admin.BootstrapName,
		Email:    cfg.Admin.BootstrapEmail,
		Password: cfg.Admin.BootstrapPassword,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting house points service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
