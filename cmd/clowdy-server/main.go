// Command clowdy-server is the entry point for the control plane: it
// wires configuration, observability, the Docker driver, the warm
// pool, the invoke orchestrator, and the HTTP surfaces (gateway +
// operator API) together and serves them until a shutdown signal
// arrives.
//
// Usage:
//
//	clowdy-server [flags]
//
// Flags:
//
//	-c, --config string   Path to config file (default: clowdy.yaml)
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/clowdy-dev/clowdy/config"
	"github.com/clowdy-dev/clowdy/contextresolver"
	"github.com/clowdy-dev/clowdy/driver"

	// Register the docker driver.
	_ "github.com/clowdy-dev/clowdy/driver/docker"

	"github.com/clowdy-dev/clowdy/gateway"
	"github.com/clowdy-dev/clowdy/internal/httpapi"
	"github.com/clowdy-dev/clowdy/invoke"
	"github.com/clowdy-dev/clowdy/observability"
	"github.com/clowdy-dev/clowdy/placement"
	"github.com/clowdy-dev/clowdy/pool"
	"github.com/clowdy-dev/clowdy/store/memstore"
)

func main() {
	configPath := flag.String("config", "clowdy.yaml", "path to config file")
	flag.StringVar(configPath, "c", "clowdy.yaml", "path to config file (shorthand)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.ConfigureLogging(cfg.IsProduction())

	log.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Msg("clowdy control plane starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	shutdownTracing, err := observability.ConfigureTracing(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure tracing")
	}
	defer shutdownTracing(context.Background())

	driverCfg := map[string]any{}
	if cfg.DockerHost != "" {
		driverCfg["docker_host"] = cfg.DockerHost
	}
	d, err := driver.NewDriver("docker", driverCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize docker driver")
	}
	defer d.Close()

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	if !d.EngineReachable(healthCtx) {
		log.Fatal().Msg("docker engine is not reachable")
	}
	healthCancel()

	memStore := memstore.New()

	placementSvc := placement.NewWithResourceProfile(d, int64(cfg.ResourceMemoryMB), cfg.ResourceNanoCPUs)
	poolSvc := pool.New(d, pool.Config{
		MaxPoolSize:  cfg.MaxPoolSize,
		IdleTimeout:  cfg.IdleTimeout,
		ReapInterval: cfg.ReapInterval,
	}, prometheus.DefaultRegisterer)
	poolSvc.RunReaper(ctx)
	defer poolSvc.Shutdown(context.Background())

	orchestrator := invoke.New(d, poolSvc, placementSvc)
	resolver := contextresolver.New(memStore, memStore)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	gatewayHandler := gateway.NewHandler(memStore, memStore, memStore, memStore, resolver, orchestrator)
	gatewayHandler.RegisterRoutes(e)

	apiHandler := httpapi.NewHandler(d, poolSvc, memStore, memStore, resolver, orchestrator)
	apiHandler.RegisterRoutes(e)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("server listening")
		serverErr <- e.Start(addrFor(cfg.HTTPPort))
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("server startup failed")
	}
}

func addrFor(port int) string {
	return ":" + strconv.Itoa(port)
}
