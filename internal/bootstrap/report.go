/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/geostack/bootstrap/internal/config"
	"github.com/geostack/bootstrap/internal/k8sapi"
	"go.uber.org/zap"
)

// reportPhase prints the connection info for the stack. Everything is re-read
// from the cluster so the report is accurate when run standalone.
func (b *Bootstrapper) reportPhase(ctx context.Context, log *zap.Logger) error {
	releases := []config.ResourceDescriptor{
		{Kind: config.KindChartRelease, Namespace: b.cfg.MetalLBNamespace, Name: "metallb"},
		{Kind: config.KindChartRelease, Namespace: b.cfg.IngressNamespace, Name: "ingress-nginx"},
		{Kind: config.KindChartRelease, Namespace: b.cfg.AppNamespace, Name: b.cfg.PostgresReleaseName()},
		{Kind: config.KindChartRelease, Namespace: b.cfg.AppNamespace, Name: b.cfg.AdminerReleaseName()},
	}
	for _, desc := range releases {
		exists, err := b.Exists(ctx, desc)
		if err != nil {
			return err
		}
		state := "installed"
		if !exists {
			state = "missing"
		}
		fmt.Fprintf(b.out, "Release %s: %s\n", desc.Name, state)
	}

	fmt.Fprintf(b.out, "PostgreSQL endpoint: %s:%s\n", b.cfg.PostgresHost(), config.PostgresPort)

	for i, service := range config.Services {
		secretName := service.SecretName()
		dsnKey := config.SecretKeyDSN
		if i == 0 {
			secretName = config.AdminSecretName
			dsnKey = config.AppSecretKeyPrefix + config.SecretKeyDSN
		}
		data, err := b.client.GetSecretData(ctx, b.cfg.AppNamespace, secretName)
		if err != nil {
			log.Warn("connection secret not readable, skipping",
				zap.String("service", service.Name), zap.String("secret", secretName))
			continue
		}
		if dsn, ok := data[dsnKey]; ok {
			fmt.Fprintf(b.out, "%s: %s\n", service.Name, dsn)
		}
	}

	// Single status query, the ingress phase already spent the poll budget.
	addr, err := b.client.WaitForLoadBalancerAddress(ctx, b.cfg.IngressNamespace, config.IngressServiceName, 1, 0)
	switch {
	case errors.Is(err, k8sapi.ErrAddressPending):
		fmt.Fprintf(b.out, "Ingress address still pending; check with: kubectl -n %s get svc %s\n",
			b.cfg.IngressNamespace, config.IngressServiceName)
	case err != nil:
		return err
	default:
		fmt.Fprintf(b.out, "Ingress address: %s\n", addr)
	}
	return nil
}
