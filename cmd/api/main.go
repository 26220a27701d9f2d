package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"egxo.tech/iam/internal/auth"
	"egxo.tech/iam/internal/config"
	"egxo.tech/iam/internal/httpapi"
	"egxo.tech/iam/internal/migrate"
	"egxo.tech/iam/internal/obs"
	"egxo.tech/iam/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr := migrate.NewManager(store.DB(), cfg.MigrationsDir, cfg.SeedsDir)
	if err := mgr.Up(startCtx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	catalog := auth.DefaultCatalog()

	boot := auth.NewBootstrap(store, catalog, log.Printf)
	if err := boot.EnsureSystemRoles(startCtx); err != nil {
		log.Fatalf("bootstrap roles: %v", err)
	}
	if ok, err := boot.CheckAdminUser(startCtx, cfg.DefaultAdminEmail); err != nil {
		log.Fatalf("bootstrap admin check: %v", err)
	} else if !ok {
		log.Printf("admin user %s not found; create it manually", cfg.DefaultAdminEmail)
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret,
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	sessions := auth.NewSessionService(store)
	svc := auth.NewService(store, auth.NewBcryptHasher(), tokens, sessions, catalog)
	roles := auth.NewRoleService(store, catalog)
	assignments := auth.NewAssignmentService(store)

	var opts []httpapi.Option
	if !cfg.IsProduction() {
		opts = append(opts, httpapi.WithDiagnosticErrors())
	}
	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, svc, roles, assignments, catalog, opts...)

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.MaxBodyBytes(
						httpapi.RateLimit(api.Handler(), cfg.RateLimitBurst, cfg.RateLimitPerSecond),
						cfg.MaxBodyBytes,
					),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting iam-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
