package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"iotfabric/internal/cliconfig"
	"iotfabric/internal/discovery"
	"iotfabric/internal/gateway"
	"iotfabric/internal/gateway/transport"
	"iotfabric/internal/logging"
)

const defaultAPIAddr = ":8383"

type config struct {
	Verbose bool
	APIAddr string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() config {
	var cfg config
	flag.BoolVar(&cfg.Verbose, "verbose", cliconfig.GetenvBool("VERBOSE", false), "verbose mode - show debug logs (env: VERBOSE)")
	flag.StringVar(&cfg.APIAddr, "api-addr", cliconfig.Getenv("API_ADDR", defaultAPIAddr), "address to serve the gateway's HTTP/websocket API on (env: API_ADDR)")
	flag.Parse()
	return cfg
}

func run() error {
	cfg := loadConfig()
	log := logging.New(os.Stdout, cfg.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()

	engine, err := discovery.New(ctx, log, clock)
	if err != nil {
		return fmt.Errorf("gateway: starting discovery engine: %w", err)
	}
	defer engine.Close()

	registry := gateway.New(log, clock, engine)
	go registry.Run(ctx)

	mux := http.NewServeMux()
	transport.New(log, registry).Register(mux)

	srv := &http.Server{Addr: cfg.APIAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info("gateway listening", "api_addr", cfg.APIAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: serving API: %w", err)
	}

	log.Info("gateway shut down")
	return nil
}
