/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/geostack/bootstrap/internal/config"
	"github.com/geostack/bootstrap/internal/credentials"
	"github.com/geostack/bootstrap/internal/k8sapi"
	"github.com/geostack/bootstrap/internal/k8sapi/templates"
	"go.uber.org/zap"
)

// namespacePhase ensures every namespace the stack uses exists.
func (b *Bootstrapper) namespacePhase(ctx context.Context, log *zap.Logger) error {
	for _, namespace := range []string{b.cfg.AppNamespace, b.cfg.MetalLBNamespace, b.cfg.IngressNamespace} {
		if err := b.client.EnsureNamespace(ctx, namespace); err != nil {
			log.With(zap.Error(err)).Error("failed to ensure namespace", zap.String("namespace", namespace))
			return err
		}
	}
	return nil
}

// networkPhase converges MetalLB and its address pool. An extra manifest file
// next to the binary is applied when present; its absence is only a warning.
func (b *Bootstrapper) networkPhase(ctx context.Context, log *zap.Logger) error {
	installer := b.newInstaller(log.Named("helm"), config.ChartRelease{
		ReleaseName: "metallb",
		ChartRef:    config.MetalLBChart,
		Namespace:   b.cfg.MetalLBNamespace,
		Timeout:     b.cfg.ChartTimeout,
	})
	if err := installer.InstallOrUpgrade(ctx); err != nil {
		return err
	}
	pool := templates.IPAddressPool(b.cfg.MetalLBNamespace, b.cfg.AddressPoolName, b.cfg.AddressPoolRange)
	if err := b.client.ApplyUnstructured(ctx, pool); err != nil {
		return err
	}
	l2 := templates.L2Advertisement(b.cfg.MetalLBNamespace, b.cfg.AddressPoolName+"-l2", b.cfg.AddressPoolName)
	if err := b.client.ApplyUnstructured(ctx, l2); err != nil {
		return err
	}
	if err := b.client.ApplyManifestFile(ctx, b.fs, b.cfg.ExtraManifestPath); err != nil {
		if errors.Is(err, k8sapi.ErrManifestMissing) {
			log.Warn("no extra network manifest, skipping", zap.String("path", b.cfg.ExtraManifestPath))
			return nil
		}
		return err
	}
	return nil
}

// ingressPhase converges the ingress controller and waits for its external
// address. An unassigned address after the poll budget is a warning, later
// phases do not depend on it.
func (b *Bootstrapper) ingressPhase(ctx context.Context, log *zap.Logger) error {
	installer := b.newInstaller(log.Named("helm"), config.ChartRelease{
		ReleaseName: "ingress-nginx",
		ChartRef:    config.IngressNginxChart,
		Namespace:   b.cfg.IngressNamespace,
		Timeout:     b.cfg.ChartTimeout,
	})
	if err := installer.InstallOrUpgrade(ctx); err != nil {
		return err
	}
	addr, err := b.client.WaitForLoadBalancerAddress(ctx, b.cfg.IngressNamespace, config.IngressServiceName, b.cfg.PollAttempts, b.cfg.PollInterval)
	if errors.Is(err, k8sapi.ErrAddressPending) {
		log.Warn("ingress address still pending, check manually later",
			zap.String("service", config.IngressServiceName), zap.String("namespace", b.cfg.IngressNamespace))
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("ingress reachable", zap.String("address", addr))
	return nil
}

// databasePhase ensures the admin secret exists and converges the PostgreSQL
// release pinned to it. The admin password is generated once and kept; the
// running database authenticated against it at init and rotating it here
// would strand the instance.
func (b *Bootstrapper) databasePhase(ctx context.Context, log *zap.Logger) error {
	exists, err := b.client.SecretExists(ctx, b.cfg.AppNamespace, config.AdminSecretName)
	if err != nil {
		return err
	}
	if !exists {
		password, err := credentials.Generate(config.CredentialBytes)
		if err != nil {
			return err
		}
		data := map[string][]byte{
			config.AdminSecretPasswordKey: []byte(password),
		}
		if err := b.client.UpsertSecret(ctx, b.cfg.AppNamespace, config.AdminSecretName, data); err != nil {
			return err
		}
		log.Info("created admin secret")
	}
	installer := b.newInstaller(log.Named("helm"), config.ChartRelease{
		ReleaseName: b.cfg.PostgresReleaseName(),
		ChartRef:    config.PostgresChart,
		Namespace:   b.cfg.AppNamespace,
		Values: map[string]interface{}{
			"auth": map[string]interface{}{
				"existingSecret": config.AdminSecretName,
			},
		},
		Timeout: b.cfg.ChartTimeout,
	})
	if err := installer.InstallOrUpgrade(ctx); err != nil {
		return err
	}
	// verify: the release reported ready, the workload must be as well
	return b.client.WaitForStatefulSetReady(ctx, b.cfg.AppNamespace, b.cfg.PostgresReleaseName(), b.cfg.ChartTimeout)
}

// secretsPhase rotates every service credential and rewrites the connection
// secrets. The admin password value survives the rewrite, everything else is
// freshly generated.
func (b *Bootstrapper) secretsPhase(ctx context.Context, log *zap.Logger) error {
	adminPassword, err := b.adminPassword(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(config.Services))
	for _, service := range config.Services {
		names = append(names, service.Name)
	}
	set, err := credentials.NewSet(names, config.CredentialBytes)
	if err != nil {
		return err
	}

	app := config.Services[0]
	adminData := map[string][]byte{
		config.AdminSecretPasswordKey: []byte(adminPassword),
	}
	for key, value := range b.connectionData(app, set[app.Name]) {
		adminData[config.AppSecretKeyPrefix+key] = value
	}
	if err := b.client.UpsertSecret(ctx, b.cfg.AppNamespace, config.AdminSecretName, adminData); err != nil {
		return err
	}

	for _, service := range config.Services[1:] {
		data := b.connectionData(service, set[service.Name])
		if err := b.client.UpsertSecret(ctx, b.cfg.AppNamespace, service.SecretName(), data); err != nil {
			return err
		}
		log.Info("rotated service credentials", zap.String("service", service.Name))
	}
	return nil
}

// provisionPhase converges database users against the freshly rotated
// secrets. It re-reads every password from the cluster, never from memory, so
// it works standalone.
func (b *Bootstrapper) provisionPhase(ctx context.Context, log *zap.Logger) error {
	adminPassword, err := b.adminPassword(ctx)
	if err != nil {
		return fmt.Errorf("reading admin secret (run the database phase first): %w", err)
	}
	triples, err := b.provisioningTriples(ctx)
	if err != nil {
		return fmt.Errorf("reading service secrets (run the secrets phase first): %w", err)
	}
	provisioner, closeDB, err := b.connectDB(ctx, log.Named("db"), b.cfg.AdminDSN(adminPassword))
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDB(); err != nil {
			log.With(zap.Error(err)).Error("closing database connection")
		}
	}()
	return provisioner.Provision(ctx, triples)
}

// appsPhase converges the application charts, currently Adminer.
func (b *Bootstrapper) appsPhase(ctx context.Context, log *zap.Logger) error {
	installer := b.newInstaller(log.Named("helm"), config.ChartRelease{
		ReleaseName: b.cfg.AdminerReleaseName(),
		ChartRef:    config.AdminerChart,
		Namespace:   b.cfg.AppNamespace,
		Values: map[string]interface{}{
			"config": map[string]interface{}{
				"externalserver": b.cfg.PostgresHost(),
			},
		},
		Timeout: b.cfg.ChartTimeout,
	})
	return installer.InstallOrUpgrade(ctx)
}

// adminPassword reads the current admin password from the cluster. If the
// admin secret is absent a fresh password is generated and stored, so the
// phase works on an empty cluster as well.
func (b *Bootstrapper) adminPassword(ctx context.Context) (string, error) {
	exists, err := b.client.SecretExists(ctx, b.cfg.AppNamespace, config.AdminSecretName)
	if err != nil {
		return "", err
	}
	if !exists {
		password, err := credentials.Generate(config.CredentialBytes)
		if err != nil {
			return "", err
		}
		data := map[string][]byte{
			config.AdminSecretPasswordKey: []byte(password),
		}
		if err := b.client.UpsertSecret(ctx, b.cfg.AppNamespace, config.AdminSecretName, data); err != nil {
			return "", err
		}
		return password, nil
	}
	data, err := b.client.GetSecretData(ctx, b.cfg.AppNamespace, config.AdminSecretName)
	if err != nil {
		return "", err
	}
	password, ok := data[config.AdminSecretPasswordKey]
	if !ok || len(password) == 0 {
		return "", fmt.Errorf("secret %s has no %s key", config.AdminSecretName, config.AdminSecretPasswordKey)
	}
	return string(password), nil
}

// provisioningTriples rebuilds the triples from the stored connection secrets.
func (b *Bootstrapper) provisioningTriples(ctx context.Context) ([]config.ProvisioningTriple, error) {
	triples := make([]config.ProvisioningTriple, 0, len(config.Services))
	for i, service := range config.Services {
		secretName := service.SecretName()
		passwordKey := config.SecretKeyPassword
		if i == 0 {
			secretName = config.AdminSecretName
			passwordKey = config.AppSecretKeyPrefix + config.SecretKeyPassword
		}
		data, err := b.client.GetSecretData(ctx, b.cfg.AppNamespace, secretName)
		if err != nil {
			return nil, err
		}
		password, ok := data[passwordKey]
		if !ok || len(password) == 0 {
			return nil, fmt.Errorf("secret %s has no %s key", secretName, passwordKey)
		}
		triples = append(triples, config.ProvisioningTriple{
			User:     service.DatabaseUser,
			Password: string(password),
			Database: service.DatabaseName,
		})
	}
	return triples, nil
}

// connectionData builds the connection-secret mapping for one service.
func (b *Bootstrapper) connectionData(service config.ServiceCredential, password string) map[string][]byte {
	return map[string][]byte{
		config.SecretKeyEndpoint: []byte(b.cfg.PostgresHost()),
		config.SecretKeyPort:     []byte(config.PostgresPort),
		config.SecretKeyUsername: []byte(service.DatabaseUser),
		config.SecretKeyPassword: []byte(password),
		config.SecretKeyDatabase: []byte(service.DatabaseName),
		config.SecretKeyDSN:      []byte(b.cfg.DSN(service.DatabaseUser, password, service.DatabaseName)),
	}
}
