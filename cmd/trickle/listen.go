package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/adamwoolhether/trickle/config"
	"github.com/adamwoolhether/trickle/receiver"
)

func runListen(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath = fs.String("config", "", "path to a YAML config file")
		addr       = fs.String("addr", "", "listen address")
		maxCPS     = fs.Float64("max-cps", 0, "reject bodies arriving faster than this many chars/sec")
		burst      = fs.Int("burst", 0, "characters allowed above -max-cps at once")
		maxBody    = fs.Int64("max-body", 0, "maximum body size in bytes")
		echo       = fs.Bool("echo", false, "include received bodies in reports")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Listen.Addr = *addr
		case "max-cps":
			cfg.Listen.MaxCharsPerSecond = *maxCPS
		case "burst":
			cfg.Listen.Burst = *burst
		case "max-body":
			cfg.Listen.MaxBodySize = *maxBody
		case "echo":
			cfg.Listen.Echo = *echo
		}
	})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := cfg.Log.NewLogger(stderr)

	opts := []receiver.Option{
		receiver.WithLogger(log),
		receiver.WithMaxBodySize(cfg.Listen.MaxBodySize),
	}
	if cfg.Listen.MaxCharsPerSecond > 0 {
		// Default to two chunks of a sender paced at the same rate.
		b := cfg.Listen.Burst
		if b == 0 {
			b = max(1, int(cfg.Listen.MaxCharsPerSecond/5))
		}
		opts = append(opts, receiver.WithMaxRate(cfg.Listen.MaxCharsPerSecond, b))
	}
	if cfg.Listen.Echo {
		opts = append(opts, receiver.WithEcho())
	}

	rc, err := receiver.New(opts...)
	if err != nil {
		return fmt.Errorf("building receiver: %w", err)
	}

	srv := receiver.NewServer(rc,
		receiver.WithAddr(cfg.Listen.Addr),
		receiver.WithServerLogger(log),
		receiver.WithShutdownTimeout(cfg.Listen.ShutdownTimeout),
	)

	return srv.Run(ctx)
}
