package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsrig/relayctl/internal/config"
	"github.com/opsrig/relayctl/internal/device"
	"github.com/opsrig/relayctl/internal/logging"
	"github.com/opsrig/relayctl/internal/modbus"
	"github.com/opsrig/relayctl/internal/poll"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", getenv("RELAYCTL_CONFIG", ""), "config file path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.Fatal("config error", "error", err)
	}

	endpoint := device.Endpoint{Host: cfg.Bus.Host, Port: cfg.Bus.Port, UnitID: cfg.Bus.UnitId}

	fmt.Printf("%s  Starting: %s unit=%d  (Ctrl+C to stop)\n",
		time.Now().Format(time.DateTime), endpoint.Addr(), endpoint.UnitID)

	sess, err := modbus.Dial(cfg, endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := &poll.Loop{
		Session: sess,
		Map: device.RegisterMap{
			CoilBase:     cfg.Map.CoilBase,
			DiscreteBase: cfg.Map.DiscreteBase,
			InputRegBase: cfg.Map.InputRegBase,
		},
		Scale:            cfg.Analog.Scale,
		Interval:         cfg.Poll.Interval(),
		VerifyRetries:    cfg.Poll.VerifyRetries,
		VerifyRetryDelay: cfg.Poll.VerifyRetryDelay(),
		Out:              os.Stdout,
	}
	loop.Run(ctx)
}
