/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package main

import (
	"context"

	"github.com/geostack/bootstrap/internal/bootstrap"
	"github.com/geostack/bootstrap/internal/config"
	"go.uber.org/zap"
)

func run(ctx context.Context, log *zap.Logger, phases []string) error {
	cfg := config.Default()
	log.Info("bootstrap configuration", zap.String("release", cfg.ReleaseName), zap.Strings("phases", phases))

	bootstrapper, err := bootstrap.NewBootstrapper(log.Named("bootstrap"), cfg)
	if err != nil {
		log.With(zap.Error(err)).Error("failed to connect to cluster")
		return err
	}
	if err := bootstrapper.Run(ctx, phases...); err != nil {
		log.With(zap.Error(err)).Error("bootstrap halted")
		return err
	}
	log.Info("cluster converged")
	return nil
}
