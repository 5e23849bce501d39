// Package main provides the distributor entry point: the issuance engine,
// the chat front-end glue, and the operator console HTTP server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/cache/rediswarm"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/promo-harvester/internal/app"
	"github.com/fairyhunter13/promo-harvester/internal/bot"
	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/inventory"
	"github.com/fairyhunter13/promo-harvester/internal/usecase"
)

// logMessenger stands in when no chat transport is attached (dev runs and
// the console-only deployment). The real transport implements
// domain.Messenger outside this repo.
type logMessenger struct{ log *slog.Logger }

func (m logMessenger) SendMessage(_ domain.Context, chatID int64, text string) error {
	m.log.Info("outbound message", slog.Int64("chat_id", chatID), slog.String("text", text))
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("starting distributor", slog.String("env", cfg.AppEnv))

	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		slog.Error("catalog load failed", slog.Any("error", err))
		os.Exit(1)
	}
	games := make([]string, 0, len(catalog))
	for _, g := range catalog {
		games = append(games, g.Name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(cfg.DBURL); err != nil {
		slog.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}

	rdb, err := rediswarm.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		slog.Error("redis connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	invRepo := postgres.NewInventoryRepo(pool)
	usersRepo := postgres.NewUsersRepo(pool)
	warm := rediswarm.New(rdb, cfg.WarmTTL)
	inv := inventory.New(invRepo, warm, cfg.WarmBulkSize, logger)

	issuer := usecase.NewIssueService(usersRepo, usersRepo, inv, games, cfg.TierLimits(), cfg.DrawFor, logger)
	users := usecase.NewUserService(usersRepo, logger)
	stats := usecase.NewStatsService(inv, usersRepo, games, cfg.PopularityCoeff)

	forwards, err := usecase.NewForwardMap(1024)
	if err != nil {
		slog.Error("forward map init failed", slog.Any("error", err))
		os.Exit(1)
	}

	front := &bot.Front{
		Users:        users,
		Issuer:       issuer,
		Msg:          logMessenger{log: logger},
		Tr:           bot.EnglishTranslator{},
		Forwards:     forwards,
		AdminGroupID: cfg.AdminGroupID,
		Log:          logger,
	}

	srv := &app.Server{Cfg: cfg, Stats: stats, Users: users, Front: front, Log: logger}
	ready := app.BuildReadinessChecks(pool, app.GoRedisPinger{C: rdb})
	router := app.BuildRouter(cfg, srv, ready)

	httpSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		slog.Info("console listening", slog.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("console server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", slog.Any("error", err))
	}
	slog.Info("distributor stopped")
}
