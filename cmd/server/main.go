package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/adapters/auth"
	router "github.com/dkeye/arena/internal/adapters/http"
	gateway "github.com/dkeye/arena/internal/adapters/signal"
	"github.com/dkeye/arena/internal/app"
	"github.com/dkeye/arena/internal/config"
	"github.com/dkeye/arena/internal/core"
	"github.com/dkeye/arena/internal/domain"
	"github.com/dkeye/arena/internal/store"
	"github.com/dkeye/arena/internal/store/migrations"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up store")
	}
	defer closeStore()

	broadcaster, err := buildBroadcaster(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up broadcaster")
	}

	policy := app.DefaultPolicy(cfg.RoomCapacity)
	coordinator := app.NewCoordinator(st, policy)
	presence := app.NewPresenceStore(st)
	registry := app.NewRegistry()
	dispatch := app.NewRouter(broadcaster, coordinator, policy)

	sweeper := &app.Sweeper{
		Presence: presence,
		Registry: registry,
		MaxAge:   cfg.PresenceMaxAge,
		Interval: cfg.PruneInterval,
	}
	go sweeper.Run(ctx)

	ctl := gateway.NewController(
		coordinator, broadcaster, presence, buildVerifier(cfg),
		dispatch, registry, policy.Namer,
		cfg.AuthTimeout, cfg.ReadLimit, cfg.PingPeriod,
	)

	r := router.SetupRouter(ctx, cfg, ctl, coordinator)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Int("capacity", cfg.RoomCapacity).Msg("arena server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("no database_url configured, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	if err := migrations.Up(cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store.NewPostgres(pool), pool.Close, nil
}

func buildBroadcaster(ctx context.Context, cfg *config.Config) (core.Broadcaster, error) {
	if cfg.RedisAddr == "" {
		return app.NewLocalBroadcaster(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("using redis broadcaster")
	return app.NewRedisBroadcaster(ctx, client), nil
}

func buildVerifier(cfg *config.Config) core.Verifier {
	if cfg.AuthURL != "" {
		return auth.NewHTTPVerifier(cfg.AuthURL)
	}
	log.Warn().Msg("no auth_url configured, using static dev tokens")
	static := make(auth.StaticVerifier, len(cfg.AuthTokens))
	for token, id := range cfg.AuthTokens {
		static[token] = domain.Identity{ID: domain.IdentityID(id), Name: id}
	}
	return static
}
