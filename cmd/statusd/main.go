// Command statusd publishes StatusList2021 credentials from the shared
// status store and, when configured with an admin token and a credential
// database, revokes, suspends and reinstates stored credentials.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	credentialstatus "github.com/pilacorp/go-credential-trust/credential/common/credential-status"
	"github.com/pilacorp/go-credential-trust/credential/common/metrics"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/provider"
	"github.com/pilacorp/go-credential-trust/credential/vc"
	"github.com/pilacorp/go-credential-trust/did"
	didconfig "github.com/pilacorp/go-credential-trust/did/config"
	"github.com/pilacorp/go-credential-trust/did/resolver"
	"github.com/pilacorp/go-credential-trust/did/signer"
	"github.com/pilacorp/go-credential-trust/internal/platform/config"
	"github.com/pilacorp/go-credential-trust/internal/platform/database"
	"github.com/pilacorp/go-credential-trust/internal/platform/health"
	"github.com/pilacorp/go-credential-trust/internal/platform/logger"
	"github.com/pilacorp/go-credential-trust/internal/platform/redis"
)

const poolStatsInterval = 15 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("statusd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	probes := health.New(2 * time.Second)

	store, closeStore, err := openStore(ctx, cfg.Redis, reg, probes, log)
	if err != nil {
		return err
	}
	defer closeStore()
	registry, err := credentialstatus.NewRegistry(store, cfg.BaseURL,
		credentialstatus.WithListSize(cfg.ListSize),
		credentialstatus.WithRegistryLogger(log),
		credentialstatus.WithRegistryMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to create status registry: %w", err)
	}

	credentialOpts := []vc.CredentialOpt{
		vc.WithRegistry(registry),
		vc.WithLogger(log),
		vc.WithMetrics(m),
	}

	pool, err := database.New(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	if pool != nil {
		probes.RegisterCheck("postgres", pool.Health)
		credentialOpts = append(credentialOpts, vc.WithRepository(vc.NewPostgresRepository(pool.DB())))
	}

	keys := signer.NewKeystore()
	issuer, err := loadIssuer(cfg.Issuer, keys)
	if err != nil {
		return fmt.Errorf("failed to load issuer key: %w", err)
	}
	if issuer != nil {
		credentialOpts = append(credentialOpts, vc.WithDefaultProofType(proofTypeFor(issuer.KeyType)))
		log.Info("signing status lists", "issuer", issuer.DID, "remote", cfg.Issuer.RemoteSignerURL != "")
	}

	credentials := vc.NewService(newResolver(), provider.NewProofService(keys), credentialOpts...)

	var listSigner credentialstatus.ListSigner
	if issuer != nil {
		listSigner = &ownListSigner{issuer: issuer.DID, next: credentials, logger: log}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	credentialstatus.NewHandler(registry, listSigner, log).Register(r)
	probes.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	switch {
	case cfg.AdminToken != "" && pool != nil:
		(&adminHandler{credentials: credentials, token: cfg.AdminToken, logger: log}).Register(r)
	case cfg.AdminToken != "":
		log.Warn("admin routes disabled: no credential database configured")
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return serve(ctx, srv, cfg.ShutdownTimeout, log)
}

// openStore returns the Redis store when a URL is configured and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.RedisConfig, reg prometheus.Registerer, probes *health.Handler, log *slog.Logger) (credentialstatus.Store, func(), error) {
	client, err := redis.New(ctx, cfg, reg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("no redis configured; status lists are kept in memory")
		return credentialstatus.NewMemoryStore(), func() {}, nil
	}
	probes.RegisterCheck("redis", client.Health)

	go func() {
		ticker := time.NewTicker(poolStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				client.RecordPoolStats()
			}
		}
	}()
	return credentialstatus.NewRedisStore(client), func() { _ = client.Close() }, nil
}

// newResolver resolves did:key locally and every other method through the
// configured universal resolver.
func newResolver() provider.DIDResolver {
	remote := resolver.NewCachingResolver(resolver.NewHTTPResolver(didconfig.ResolverURL()), 1024, didconfig.CacheTTL())
	return resolver.NewMethodResolver(map[string]provider.DIDResolver{
		"key": resolver.KeyResolver{},
	}, remote)
}

func proofTypeFor(keyType did.KeyType) string {
	if keyType == did.KeyTypeSecp256k1 {
		return model.EcdsaSecp256k1Signature2019
	}
	return model.Ed25519Signature2020
}

func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("statusd listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
