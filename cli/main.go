/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/geostack/bootstrap/internal/bootstrap"
	"go.uber.org/zap"
)

var version = "0.0.0"

func registerSignalHandler(cancelContext context.CancelFunc, log *zap.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("cancellation signal received")
	cancelContext()
	signal.Stop(sigs)
	close(sigs)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [phase ...]\n\nphases: %s\nno arguments runs the full sequence\n",
			os.Args[0], strings.Join(bootstrap.PhaseNames(), " "))
		flag.PrintDefaults()
	}
	flag.Parse()
	zapconf := zap.NewDevelopmentConfig()
	log, err := zapconf.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting bootstrap cli", zap.String("version", version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registerSignalHandler(cancel, log)

	if err := run(ctx, log, flag.Args()); err != nil {
		os.Exit(1)
	}
}
