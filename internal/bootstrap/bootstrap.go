/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

// Package bootstrap sequences the convergence phases. Every phase checks
// cluster state before mutating and is safe to re-run; phases never rely on
// in-process state from an earlier phase, so each one is independently
// invocable.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/geostack/bootstrap/internal/config"
	"github.com/geostack/bootstrap/internal/database"
	"github.com/geostack/bootstrap/internal/helm"
	"github.com/geostack/bootstrap/internal/k8sapi"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Phase names, in run order.
const (
	PhaseNamespace = "namespace"
	PhaseNetwork   = "network"
	PhaseIngress   = "ingress"
	PhaseDatabase  = "database"
	PhaseSecrets   = "secrets"
	PhaseProvision = "provision"
	PhaseApps      = "apps"
	PhaseReport    = "report"
)

// PhaseNames returns every phase in dependency order.
func PhaseNames() []string {
	return []string{
		PhaseNamespace,
		PhaseNetwork,
		PhaseIngress,
		PhaseDatabase,
		PhaseSecrets,
		PhaseProvision,
		PhaseApps,
		PhaseReport,
	}
}

// kubeAPI is the cluster surface the phases need.
type kubeAPI interface {
	Exists(ctx context.Context, desc config.ResourceDescriptor) (bool, error)
	EnsureNamespace(ctx context.Context, namespace string) error
	UpsertSecret(ctx context.Context, namespace, name string, data map[string][]byte) error
	GetSecretData(ctx context.Context, namespace, name string) (map[string][]byte, error)
	SecretExists(ctx context.Context, namespace, name string) (bool, error)
	ApplyUnstructured(ctx context.Context, obj *unstructured.Unstructured) error
	ApplyManifestFile(ctx context.Context, fs afero.Fs, path string) error
	WaitForLoadBalancerAddress(ctx context.Context, namespace, serviceName string, maxAttempts int, interval time.Duration) (string, error)
	WaitForStatefulSetReady(ctx context.Context, namespace, name string, timeout time.Duration) error
}

// chartInstaller converges one helm release.
type chartInstaller interface {
	InstallOrUpgrade(ctx context.Context) error
	ReleaseExists() (bool, error)
}

// dbProvisioner converges database users.
type dbProvisioner interface {
	Provision(ctx context.Context, triples []config.ProvisioningTriple) error
}

// Bootstrapper runs the bootstrap phases against a cluster.
type Bootstrapper struct {
	logger *zap.Logger
	cfg    *config.Config
	client kubeAPI
	fs     afero.Fs
	out    io.Writer

	newInstaller func(logger *zap.Logger, release config.ChartRelease) chartInstaller
	connectDB    func(ctx context.Context, logger *zap.Logger, adminDSN string) (dbProvisioner, func() error, error)
}

// NewBootstrapper connects to the cluster and returns a ready bootstrapper.
func NewBootstrapper(logger *zap.Logger, cfg *config.Config) (*Bootstrapper, error) {
	client, err := k8sapi.NewClient(logger.Named("k8sAPI"))
	if err != nil {
		return nil, err
	}
	return &Bootstrapper{
		logger: logger,
		cfg:    cfg,
		client: client,
		fs:     afero.NewOsFs(),
		out:    os.Stdout,
		newInstaller: func(logger *zap.Logger, release config.ChartRelease) chartInstaller {
			return helm.NewInstaller(logger, release)
		},
		connectDB: func(ctx context.Context, logger *zap.Logger, adminDSN string) (dbProvisioner, func() error, error) {
			provisioner, db, err := database.Connect(ctx, logger, adminDSN)
			if err != nil {
				return nil, nil, err
			}
			return provisioner, db.Close, nil
		},
	}, nil
}

// Exists reports whether the described resource currently exists. Chart
// releases are probed through the release history, everything else through
// the cluster API.
func (b *Bootstrapper) Exists(ctx context.Context, desc config.ResourceDescriptor) (bool, error) {
	if desc.Kind == config.KindChartRelease {
		installer := b.newInstaller(b.logger.Named("helm"), config.ChartRelease{
			ReleaseName: desc.Name,
			Namespace:   desc.Namespace,
		})
		return installer.ReleaseExists()
	}
	return b.client.Exists(ctx, desc)
}

// Run executes the named phases in order; no names runs the full sequence.
// The first fatal phase error halts the run.
func (b *Bootstrapper) Run(ctx context.Context, phases ...string) error {
	if len(phases) == 0 {
		phases = PhaseNames()
	}
	for _, name := range phases {
		run, err := b.phase(name)
		if err != nil {
			return err
		}
		log := b.logger.Named(name)
		log.Info("phase starting")
		if err := run(ctx, log); err != nil {
			log.With(zap.Error(err)).Error("phase failed")
			return fmt.Errorf("phase %s: %w", name, err)
		}
		log.Info("phase done")
	}
	return nil
}

func (b *Bootstrapper) phase(name string) (func(context.Context, *zap.Logger) error, error) {
	switch name {
	case PhaseNamespace:
		return b.namespacePhase, nil
	case PhaseNetwork:
		return b.networkPhase, nil
	case PhaseIngress:
		return b.ingressPhase, nil
	case PhaseDatabase:
		return b.databasePhase, nil
	case PhaseSecrets:
		return b.secretsPhase, nil
	case PhaseProvision:
		return b.provisionPhase, nil
	case PhaseApps:
		return b.appsPhase, nil
	case PhaseReport:
		return b.reportPhase, nil
	default:
		return nil, fmt.Errorf("unknown phase %q", name)
	}
}
