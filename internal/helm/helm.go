/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package helm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geostack/bootstrap/internal/config"
	"github.com/geostack/bootstrap/internal/k8sapi"
	"go.uber.org/zap"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/storage/driver"
)

// ErrDeadlineExceeded is returned when a release does not report ready within
// its timeout. This is fatal for the calling phase.
var ErrDeadlineExceeded = errors.New("release did not become ready before the timeout")

// Installer converges a single helm release. Calling it twice with the same
// release definition ends in a no-op upgrade.
type Installer struct {
	logger  *zap.Logger
	release config.ChartRelease
}

// NewInstaller returns a new helm installer for the given release.
func NewInstaller(logger *zap.Logger, release config.ChartRelease) *Installer {
	return &Installer{
		logger:  logger,
		release: release,
	}
}

// InstallOrUpgrade installs the release if it is absent and upgrades it
// otherwise, blocking until its workloads are ready or the timeout elapses.
func (h *Installer) InstallOrUpgrade(ctx context.Context) error {
	actionConfig, settings, err := h.actionConfig()
	if err != nil {
		return err
	}
	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	_, err = histClient.Run(h.release.ReleaseName)
	if errors.Is(err, driver.ErrReleaseNotFound) {
		return h.install(ctx, actionConfig, settings)
	}
	if err != nil {
		return err
	}
	return h.upgrade(ctx, actionConfig, settings)
}

// ReleaseExists reports whether the release has any recorded revision.
func (h *Installer) ReleaseExists() (bool, error) {
	actionConfig, _, err := h.actionConfig()
	if err != nil {
		return false, err
	}
	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	_, err = histClient.Run(h.release.ReleaseName)
	if errors.Is(err, driver.ErrReleaseNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h *Installer) install(ctx context.Context, actionConfig *action.Configuration, settings *cli.EnvSettings) error {
	iCli := action.NewInstall(actionConfig)
	iCli.Timeout = h.release.Timeout
	iCli.ReleaseName = h.release.ReleaseName
	iCli.Namespace = h.release.Namespace
	iCli.CreateNamespace = true
	iCli.Wait = true
	path, err := iCli.LocateChart(h.release.ChartRef, settings)
	if err != nil {
		return err
	}
	h.logger.Info("helm chart located", zap.String("path", path))
	chart, err := loader.Load(path)
	if err != nil {
		return err
	}
	rel, err := iCli.RunWithContext(ctx, chart, h.release.Values)
	if err != nil {
		return classifyTimeout(err)
	}
	h.logger.Info("installed helm release", zap.String("name", rel.Name))
	return nil
}

func (h *Installer) upgrade(ctx context.Context, actionConfig *action.Configuration, settings *cli.EnvSettings) error {
	uCli := action.NewUpgrade(actionConfig)
	uCli.Timeout = h.release.Timeout
	uCli.Namespace = h.release.Namespace
	uCli.Wait = true
	uCli.MaxHistory = 5
	path, err := uCli.LocateChart(h.release.ChartRef, settings)
	if err != nil {
		return err
	}
	chart, err := loader.Load(path)
	if err != nil {
		return err
	}
	rel, err := uCli.RunWithContext(ctx, h.release.ReleaseName, chart, h.release.Values)
	if err != nil {
		return classifyTimeout(err)
	}
	h.logger.Info("upgraded helm release", zap.String("name", rel.Name), zap.Int("revision", rel.Version))
	return nil
}

func (h *Installer) actionConfig() (*action.Configuration, *cli.EnvSettings, error) {
	settings := cli.New()
	kubeconfig, err := k8sapi.GetKubeConfigPath()
	if err == nil {
		settings.KubeConfig = kubeconfig
	}

	actionConfig := new(action.Configuration)
	if err := actionConfig.Init(settings.RESTClientGetter(), h.release.Namespace, "secret", func(format string, v ...interface{}) {
		h.logger.Info(fmt.Sprintf(format, v...))
	}); err != nil {
		return nil, nil, err
	}
	return actionConfig, settings, nil
}

func classifyTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timed out") {
		return fmt.Errorf("%w: %v", ErrDeadlineExceeded, err)
	}
	return err
}
