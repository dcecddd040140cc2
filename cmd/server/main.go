package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/cellar-backend/internal/adapter/bank"
	grpcadapter "github.com/simaogato/cellar-backend/internal/adapter/grpc"
	"github.com/simaogato/cellar-backend/internal/adapter/metrics"
	"github.com/simaogato/cellar-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/cellar-backend/internal/adapter/repository/sqlite"
	"github.com/simaogato/cellar-backend/internal/adapter/rewards"
	"github.com/simaogato/cellar-backend/internal/adapter/swap"
	"github.com/simaogato/cellar-backend/internal/adapter/yieldsource"
	"github.com/simaogato/cellar-backend/internal/config"
	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/simaogato/cellar-backend/internal/logging"
	"github.com/simaogato/cellar-backend/internal/scheduler"
	"github.com/simaogato/cellar-backend/internal/usecase/dashboard"
	"github.com/simaogato/cellar-backend/internal/usecase/position"
	"github.com/simaogato/cellar-backend/internal/usecase/seeder"
	"github.com/simaogato/cellar-backend/internal/usecase/vault"
)

const (
	defaultAPIToken = "dev-token"
	serviceName     = "cellar"

	poolAddress   domain.Address = "lending-pool"
	routerAddress domain.Address = "swap-router"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.Setup(serviceName, cfg.Log.Env, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Setup event and snapshot storage
	recorder, err := openRecorder(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open recorder: %v", err)
	}
	defer recorder.Close()

	// 3. Initialize collaborators (in-process token bank, lending pool, router, incentives)
	tokens := bank.NewMemoryBank()
	pool := yieldsource.NewLendingPool(tokens, poolAddress)
	pool.InitReserve(domain.Asset(cfg.Vault.Asset))
	router := swap.NewRouter(tokens, routerAddress, domain.BasisPoints)
	incentives := rewards.NewController(tokens, domain.Asset(cfg.Strategy.RewardAsset), cfg.Strategy.Cooldown)

	// 4. Initialize Services (Use Cases)
	params, err := cfg.VaultParams(time.Now())
	if err != nil {
		log.Fatalf("Invalid vault parameters: %v", err)
	}
	v, err := domain.NewVault(params)
	if err != nil {
		log.Fatalf("Failed to create vault: %v", err)
	}

	vaultService := vault.NewVaultService(v, tokens, pool, router, incentives, recorder)
	vaultService.SetLogger(logger)
	vaultService.SetMetrics(metrics.Vault())
	vaultService.SetRewardSwapPath(cfg.RewardSwapPath())
	dashboardService := dashboard.NewDashboardService(vaultService)
	positionService := position.NewPositionService(vaultService, 18)

	// Register input assets and genesis balances
	assetSeeder := seeder.NewAssetSeeder(vaultService, tokens, params.Owner)
	if err := assetSeeder.Seed(ctx, params.InputAssets, genesisBalances(cfg)); err != nil {
		log.Fatalf("Failed to seed assets: %v", err)
	}
	for _, asset := range params.InputAssets {
		pool.InitReserve(asset)
	}
	logger.Info("vault initialized",
		"asset", string(params.Asset),
		"platform_fee_bps", params.PlatformFeeBps,
		"performance_fee_bps", params.PerformanceFeeBps,
	)

	// 5. Start scheduler
	sched := scheduler.NewScheduler(ctx, vaultService, recorder, logger)
	if err := sched.RegisterAll(cfg.Schedule.FeeAccrualCron, cfg.Schedule.SnapshotCron); err != nil {
		log.Fatalf("Failed to register scheduled tasks: %v", err)
	}
	sched.Start()

	// 6. Start metrics endpoint
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// 7. Start gRPC Server
	apiToken := cfg.Server.APIToken
	if apiToken == "" {
		apiToken = defaultAPIToken
	}

	grpcServer := grpclib.NewServer(
		grpclib.UnaryInterceptor(grpcadapter.AuthInterceptor(apiToken)),
	)
	grpcAdapter := grpcadapter.NewServer(vaultService, dashboardService, positionService, recorder)
	grpcadapter.RegisterVaultServiceServer(grpcServer, grpcAdapter)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.Server.GRPCAddr, err)
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC server: %v", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(logger, grpcServer, metricsServer, sched)
}

// openRecorder prefers PostgreSQL when a connection string is configured
func openRecorder(ctx context.Context, cfg *config.Config) (domain.Recorder, error) {
	if cfg.Database.ConnStr != "" {
		rec, err := postgres.NewRecorder(ctx, cfg.Database.ConnStr)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	rec, err := sqlite.NewRecorder(cfg.Database.SQLitePath)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func genesisBalances(cfg *config.Config) []seeder.GenesisBalance {
	out := make([]seeder.GenesisBalance, 0, len(cfg.Genesis))
	for _, g := range cfg.Genesis {
		out = append(out, seeder.GenesisBalance{
			Holder: domain.Address(g.Holder),
			Asset:  domain.Asset(g.Asset),
			Amount: domain.MustParseAmount(g.Amount),
		})
	}
	return out
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers
func waitForShutdown(logger *slog.Logger, grpcServer *grpclib.Server, metricsServer *http.Server, sched *scheduler.Scheduler) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("received signal, shutting down gracefully", "signal", sig.String())

	sched.Stop()
	grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
	logger.Info("servers stopped")
}
