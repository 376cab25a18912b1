// armd is the arm control daemon: it loads the chain descriptor, activates
// the analytical solver, optionally attaches the actuator board, and serves
// the HTTP/websocket API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/strikelab/go-armctl/internal/config"
	"github.com/strikelab/go-armctl/internal/log"
	"github.com/strikelab/go-armctl/pkg/chain"
	"github.com/strikelab/go-armctl/pkg/hardware"
	"github.com/strikelab/go-armctl/pkg/ik"
	"github.com/strikelab/go-armctl/pkg/web"
)

func main() {
	chainFile := flag.String("chain", config.ChainFile("arm.urdf"), "chain descriptor file")
	hwFile := flag.String("hw", "", "hardware config file (empty: solver-only mode)")
	addr := flag.String("addr", config.ListenAddr(config.DefaultListenAddr), "API listen address")
	level := flag.String("log", config.LogLevel(), "log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*level)

	desc, err := chain.LoadDescriptor(*chainFile)
	if err != nil {
		log.Error("chain descriptor", "file", *chainFile, "error", err)
		os.Exit(1)
	}
	c, err := chain.New(desc)
	if err != nil {
		log.Error("chain build", "error", err)
		os.Exit(1)
	}

	solver, err := ik.NewSolver(c)
	if err != nil {
		log.Error("solver", "error", err)
		os.Exit(1)
	}
	log.Info("arm ready",
		"chain", desc.Name,
		"root", c.RootLink(), "tip", c.TipLink(),
		"reach_max", solver.Geometry().ReachMax)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	var loop *hardware.Loop
	if *hwFile != "" {
		hwCfg, err := hardware.LoadConfig(*hwFile)
		if err != nil {
			log.Error("hardware config", "file", *hwFile, "error", err)
			os.Exit(1)
		}
		if port := config.BoardPort(hwCfg.Port); port != "" {
			hwCfg.Port = port
		}
		controllers, encoders, err := hwCfg.Build(c)
		if err != nil {
			log.Error("hardware build", "error", err)
			os.Exit(1)
		}
		board, err := hardware.OpenSerialBoard(hwCfg.Port, hwCfg.Baud)
		if err != nil {
			log.Error("board", "port", hwCfg.Port, "error", err)
			os.Exit(1)
		}
		defer board.Close()

		loop = hardware.NewLoop(board, controllers, encoders, hwCfg.RateHz)
		g.Go(func() error { return loop.Run(ctx) })
	}

	server := web.NewServer(*addr, solver, loop)
	g.Go(func() error { return server.Run(ctx) })

	if loop != nil {
		g.Go(func() error { return publishStates(ctx, server, loop) })
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("daemon", "error", err)
		os.Exit(1)
	}
}

// publishStates streams measured joint positions to websocket subscribers.
func publishStates(ctx context.Context, server *web.Server, loop *hardware.Loop) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			server.PublishState(loop.Positions())
		}
	}
}
