// Package main provides the harvester entry point: the supervisor and its
// worker fleet minting promo codes into the durable inventory.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/promoapi"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/harvester"
	"github.com/fairyhunter13/promo-harvester/internal/inventory"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("starting harvester", slog.String("env", cfg.AppEnv))

	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		slog.Error("catalog load failed", slog.Any("error", err))
		os.Exit(1)
	}
	proxies, err := config.LoadProxies(cfg.ProxyFile)
	if err != nil {
		slog.Error("proxy list load failed", slog.Any("error", err))
		os.Exit(1)
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

	// Expose worker metrics for Prometheus.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := ":" + strconv.Itoa(cfg.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	sink := inventory.DurableSink{Store: postgres.NewInventoryRepo(pool)}

	sup := &harvester.Supervisor{
		Catalog: catalog,
		Proxies: proxies,
		Log:     logger,
		NewWorker: func(a harvester.Assignment) (*harvester.Worker, error) {
			client, err := promoapi.New(cfg.PromoAPIBase, a.Proxy.URL, cfg.MintTimeout)
			if err != nil {
				return nil, err
			}
			return &harvester.Worker{
				Game:   a.Game,
				Proxy:  a.Proxy,
				Client: client,
				Inv:    sink,
				Log:    logger,
			}, nil
		},
	}

	if err := sup.Run(ctx); err != nil {
		slog.Error("supervisor failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("harvester stopped")
}
