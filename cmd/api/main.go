package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"photoshare.app/internal/audit"
	"photoshare.app/internal/auth"
	"photoshare.app/internal/cache"
	"photoshare.app/internal/config"
	"photoshare.app/internal/httpapi"
	"photoshare.app/internal/mail"
	"photoshare.app/internal/obs"
	"photoshare.app/internal/store/memory"
	"photoshare.app/internal/store/pg"
)

func main() {
	configPath := flag.String("config", os.Getenv("PHOTOSHARE_CONFIG"), "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "photoshare-api: %v\n", err)
		os.Exit(1)
	}
}

type stores struct {
	users   auth.PrincipalStore
	revoked auth.RevocationStore
	db      httpapi.Pinger
	close   func() error
}

func openStores(ctx context.Context, cfg config.DB, log *zap.Logger) (stores, error) {
	if cfg.DSN == "" {
		log.Warn("db.dsn is empty, using in-memory stores")
		return stores{
			users:   memory.NewUsers(),
			revoked: memory.NewRevocations(),
			close:   func() error { return nil },
		}, nil
	}
	st, err := pg.Open(ctx, cfg.DSN, cfg.AsOptions())
	if err != nil {
		return stores{}, err
	}
	return stores{
		users:   st,
		revoked: st.Revocations(),
		db:      st,
		close:   st.Close,
	}, nil
}

func openCache(ctx context.Context, cfg config.Redis, maxTTL time.Duration, log *zap.Logger) (auth.CacheBackend, httpapi.Pinger, func() error, error) {
	if cfg.URL == "" {
		log.Info("redis.url is empty, using in-process claims cache", zap.Int("size", cfg.LocalSize))
		return cache.NewLocalBackend(cfg.LocalSize, maxTTL), nil, func() error { return nil }, nil
	}
	rb, err := cache.NewRedisBackend(ctx, cfg.AsRedisConfig())
	if err != nil {
		return nil, nil, nil, err
	}
	return rb, rb, rb.Close, nil
}

// loadConfig reads and validates the configuration; the service refuses to
// start on a config it cannot honour.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.App.Version == "" || cfg.App.Version == "dev" {
		cfg.App.Version = obs.Version
	}

	log, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelCfg := cfg.OTEL.AsOTELConfig()
	if otelCfg.ServiceName == "" {
		otelCfg.ServiceName = cfg.App.Name
	}
	tel, err := obs.SetupOTel(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	obs.Init()
	obs.InitBuildInfo(cfg.App.Version, obs.Commit)

	st, err := openStores(ctx, cfg.DB, log)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer func() { _ = st.close() }()

	backend, cachePinger, closeCache, err := openCache(ctx, cfg.Redis, cfg.Auth.CacheTTL, log)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = closeCache() }()

	codec, err := auth.NewCodec(cfg.Auth.Secret, cfg.Auth.Algorithm)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	claims := auth.NewClaimsCache(backend, cfg.Redis.OpTimeout, log)
	mailer := mail.NewLogMailer(cfg.Mail.From, cfg.Mail.ConfirmURL, log)

	svc, err := auth.NewService(st.users, st.revoked, codec, auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		auth.WithTokenTTLs(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, cfg.Auth.EmailTTL),
		auth.WithClaimsCache(claims),
		auth.WithMailer(mailer),
		auth.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	gate := auth.NewGate(codec, st.users, st.revoked, claims,
		auth.WithCacheTTL(cfg.Auth.CacheTTL),
		auth.WithGateLogger(log),
	)

	proxies, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	ready := httpapi.ReadyProbe{DB: st.db, Cache: cachePinger}
	api := httpapi.New(httpapi.Options{
		Service:      svc,
		Gate:         gate,
		Audit:        audit.New(log),
		Logger:       log,
		Ready:        ready,
		Version:      cfg.App.Version,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RateLimit: httpapi.RateLimitConfig{
			Enable:         cfg.RateLimit.Enable,
			PerSecond:      cfg.RateLimit.RPS,
			Burst:          cfg.RateLimit.Burst,
			TrustedProxies: proxies,
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	grpcSrv := grpc.NewServer(obs.GRPCServerOpts()...)
	healthpb.RegisterHealthServer(grpcSrv, httpapi.NewHealthServer(ready))
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", cfg.App.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		log.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go pruneRevocations(ctx, st.revoked, cfg.Auth.PruneInterval, log)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		log.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", zap.Error(serr))
	}
	grpcSrv.GracefulStop()
	if serr := tel.Shutdown(shutdownCtx); serr != nil {
		log.Warn("otel shutdown", zap.Error(serr))
	}
	log.Info("stopped")
	return err
}

// pruneRevocations drops revocation records whose tokens have expired.
func pruneRevocations(ctx context.Context, revoked auth.RevocationStore, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := revoked.Prune(ctx, now)
			if err != nil {
				log.Warn("prune revocations", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("pruned revocations", zap.Int64("count", n))
			}
		}
	}
}
