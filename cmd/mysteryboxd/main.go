// MysteryBox contract daemon.
//
// Usage:
//
//	mysteryboxd [--testnet] [--deploy=...]   Run node
//	mysteryboxd --help                       Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/mysterybox/config"
	"github.com/Klingon-tech/mysterybox/internal/node"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, flags, err := config.Load(args)
	if err != nil {
		return err
	}
	switch {
	case flags.Help:
		config.PrintUsage(os.Stdout)
		return nil
	case flags.Version:
		fmt.Printf("mysteryboxd %s\n", config.Version)
		return nil
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	defer n.Stop()
	if err := n.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
