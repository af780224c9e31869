package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"iotfabric/internal/cliconfig"
	"iotfabric/internal/deviceendpoint"
	"iotfabric/internal/discovery"
	"iotfabric/internal/logging"
	"iotfabric/internal/model"
)

type config struct {
	Verbose      bool
	Category     string
	InstanceName string
	Port         string
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
	flag.StringVar(&cfg.Category, "category", cliconfig.Getenv("CATEGORY", ""), "device category: LightLamp, FartDetector, Toilet, Sink, WaterLeak (env: CATEGORY)")
	flag.StringVar(&cfg.InstanceName, "instance-name", cliconfig.Getenv("INSTANCE_NAME", ""), "instance name to advertise (env: INSTANCE_NAME)")
	flag.StringVar(&cfg.Port, "port", cliconfig.Getenv("PORT", "0"), "TCP port to listen on, 0 for ephemeral (env: PORT)")
	flag.Parse()
	return cfg
}

func run() error {
	cfg := loadConfig()
	log := logging.New(os.Stdout, cfg.Verbose)

	if cfg.Category == "" {
		return fmt.Errorf("device: -category is required")
	}
	category, err := model.ParseServiceCategory(cfg.Category)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if cfg.InstanceName == "" {
		return fmt.Errorf("device: -instance-name is required")
	}
	port, err := cliconfig.ParsePort(cfg.Port)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()

	engine, err := discovery.New(ctx, log, clock)
	if err != nil {
		return fmt.Errorf("device: starting discovery engine: %w", err)
	}
	defer engine.Close()

	addresses, err := discovery.LocalAddresses()
	if err != nil {
		return fmt.Errorf("device: resolving local addresses: %w", err)
	}

	ep, err := deviceendpoint.Start(ctx, log, clock, engine, category, cfg.InstanceName, addresses, port)
	if err != nil {
		return fmt.Errorf("device: starting endpoint: %w", err)
	}
	defer ep.Close()

	log.Info("device endpoint running", "category", category.String(), "instance_name", cfg.InstanceName)
	<-ctx.Done()
	log.Info("device endpoint shutting down")
	return nil
}
