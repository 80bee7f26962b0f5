package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/deleteflow"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/export"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/form"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/genai"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/router"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/session"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/state"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/store"
	"github.com/SamuelPedraGoncalves/gerenciador/pkg/database"
	"github.com/SamuelPedraGoncalves/gerenciador/pkg/kv"
	"github.com/SamuelPedraGoncalves/gerenciador/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting gerenciador")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// record store; unconfigured is allowed
	var sqlxDB *sqlx.DB
	dbCfg := database.ConfigFromEnv()
	if dbCfg.Configured() {
		sqlDB, err := database.Connect(ctx, dbCfg)
		if err != nil {
			sugar.Fatalf("db connect: %v", err)
		}
		sqlxDB = sqlx.NewDb(sqlDB, "postgres")
		defer sqlxDB.Close()
	} else {
		sugar.Warn("DATABASE_URL not set; running without a record store")
	}
	gateway := store.NewGateway(sqlxDB, sugar)
	if gateway.Configured() && dbCfg.EnsureSchema {
		if err := gateway.EnsureSchema(ctx); err != nil {
			sugar.Fatalf("ensure schema: %v", err)
		}
	}

	// session
	sessCfg := session.ConfigFromEnv()
	hasher := session.BcryptHasher{Cost: 12}
	seeds, err := sessCfg.SeedUsers(hasher)
	if err != nil {
		sugar.Fatalf("seed users: %v", err)
	}

	cache := state.New(gateway, sugar, state.WithSeedUsers(seeds...))
	cache.Bootstrap(ctx)

	revoked, closeKV := revocations(ctx, sugar)
	defer closeKV()

	svc, err := session.NewService(sessCfg, cache, gateway, hasher, revoked, sugar)
	if err != nil {
		sugar.Fatalf("session: %v", err)
	}

	writer := genai.NewClient(genai.ConfigFromEnv(), sugar)
	if !writer.Enabled() {
		sugar.Warn("GEMINI_API_KEY not set; generated text disabled")
	}
	sub := form.NewSubmitter(gateway, cache, writer, hasher, sugar)

	handler := router.RegisterRoutes(router.Deps{
		Logger:    sugar,
		Session:   svc,
		Auth:      session.NewHandler(svc, sugar),
		State:     state.NewHandler(cache, sugar),
		Forms:     form.NewHandler(sub, sugar),
		Deletions: deleteflow.NewHandler(deleteflow.NewRegistry(gateway, cache, deleteflow.DefaultTTL, sugar), sugar),
		Export:    export.NewHandler(cache, sugar),
		Ready:     gateway.Configured,
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// revocations uses redis when REDIS_ADDR is set and falls back to memory
// when it is unset or unreachable.
func revocations(ctx context.Context, sugar *zap.SugaredLogger) (session.Revocations, func()) {
	cfg := kv.ConfigFromEnv()
	if !cfg.Enabled() {
		return session.NewMemoryRevocations(), func() {}
	}
	client, err := kv.Connect(ctx, cfg)
	if err != nil {
		sugar.Warnw("redis unavailable; revocations kept in memory", "addr", cfg.Addr, "error", err)
		return session.NewMemoryRevocations(), func() {}
	}
	return session.NewKVRevocations(kv.NewRedisKV(client)), func() { _ = client.Close() }
}
