// Command gk-server starts the GlucoKeeper gRPC server.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/glucokeeper/internal/cache"
	"github.com/and161185/glucokeeper/internal/config"
	"github.com/and161185/glucokeeper/internal/crypto/sealer"
	"github.com/and161185/glucokeeper/internal/ingest"
	"github.com/and161185/glucokeeper/internal/limiter"
	"github.com/and161185/glucokeeper/internal/migrate"
	"github.com/and161185/glucokeeper/internal/repository/postgres"
	grpcserver "github.com/and161185/glucokeeper/internal/server/grpc"
	"github.com/and161185/glucokeeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main resolves configuration, runs migrations and serves the GlucoKeeper API.
func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	var logger *zap.Logger
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ListenAddr),
		zap.String("dataSource", cfg.Data.Source),
	)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("timezone", zap.Error(err))
	}

	serverOpts := []grpc.ServerOption{}
	if cfg.Insecure {
		logger.Warn("serving without TLS")
		serverOpts = append(serverOpts, grpc.Creds(insecure.NewCredentials()))
	} else {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schema, err := migrate.Up(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("schema ready", zap.Int64("version", schema))

	db, err := postgres.New(ctx, cfg.DSN, int32(cfg.MaxDBConns))
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	users := postgres.NewUserRepo(db)
	tokenRepo := postgres.NewTokenRepo(db)
	goalRepo := postgres.NewGoalRepo(db)

	seal, err := sealer.New([]byte(cfg.MasterKey))
	if err != nil {
		logger.Fatal("master key", zap.Error(err))
	}
	sigs := service.NewSignatures(postgres.NewSignatureRepo(db), seal)
	if cfg.RotateSignature {
		sig, err := sigs.Rotate(ctx)
		if err != nil {
			logger.Fatal("rotate signature", zap.Error(err))
		}
		logger.Info("signature rotated", zap.String("id", sig.ID.String()))
	} else {
		created, err := sigs.Ensure(ctx)
		if err != nil {
			logger.Fatal("ensure signature", zap.Error(err))
		}
		if created {
			logger.Info("first signature created")
		}
	}

	// Glucose data
	var src ingest.Source
	switch cfg.Data.Source {
	case config.SourceS3:
		src, err = ingest.NewS3Source(ctx, ingest.S3Options{
			Region:    cfg.Data.S3.Region,
			Endpoint:  cfg.Data.S3.Endpoint,
			AccessKey: cfg.Data.S3.AccessKey,
			SecretKey: cfg.Data.S3.SecretKey,
			Bucket:    cfg.Data.S3.Bucket,
			Prefix:    cfg.Data.S3.Prefix,
		})
	default:
		src, err = ingest.NewDirSource(cfg.Data.Dir)
	}
	if err != nil {
		logger.Fatal("data source", zap.Error(err))
	}
	loader := ingest.NewLoader(src, loc)

	cacheOpts := []cache.Option{cache.WithLogger(logger)}
	if cfg.Redis.URL != "" {
		rdb, err := cache.Connect(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, stats are recomputed on misses", zap.Error(err))
		}
		cacheOpts = append(cacheOpts, cache.WithStatsStore(cache.NewRedisStatsStore(rdb, cfg.Redis.StatsTTL)))
	}
	series := cache.New(loader, cacheOpts...)

	lim := limiter.NewPG(db.Pool, limiter.Policy{
		Window:   cfg.Limiter.Window,
		MaxFails: cfg.Limiter.MaxFails,
		BlockFor: cfg.Limiter.BlockFor,
	})

	// Services
	tokens := service.NewTokenManager(users, tokenRepo, sigs, service.WithLimiter(lim), service.WithTokenLogger(logger))
	authz := service.NewAuthorizer(tokens, logger)
	accounts := service.NewAccounts(users, goalRepo, tokens, series)
	goals := service.NewGoals(goalRepo)
	insights := service.NewInsights(series, loader)

	// gRPC server with interceptors
	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(
		grpcserver.RecoverUnary(logger),
		grpcserver.LoggingUnary(logger),
		grpcserver.AuthUnary(authz),
	))
	s := grpc.NewServer(serverOpts...)

	app := grpcserver.New(tokens, accounts, goals, insights, authz,
		grpcserver.WithLocation(loc),
		grpcserver.WithLogger(logger),
	)
	grpcserver.Register(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.Bool("tls", !cfg.Insecure))
		errCh <- s.Serve(lis)
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
