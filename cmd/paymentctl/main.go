package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmehra2102/payment-console/internal/bootstrap"
	"github.com/dmehra2102/payment-console/internal/config"
	"github.com/dmehra2102/payment-console/pkg/logging"
	"github.com/dmehra2102/payment-console/pkg/shutdown"
)

var Version = "dev"

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	root := newRootCmd(openFromConfig)
	root.Version = Version
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openFromConfig uses the same environment as the server. Logs go to stderr
// so command output stays clean.
func openFromConfig(ctx context.Context) (*console, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logging.NewTo(os.Stderr, cfg.LogLevel)
	app, err := bootstrap.Build(ctx, log, cfg)
	if err != nil {
		return nil, nil, err
	}
	return &console{svc: app.Service, link: cfg.PaymentLink}, app.Close, nil
}
