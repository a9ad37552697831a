/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/geostack/bootstrap/internal/config"
	"github.com/geostack/bootstrap/internal/helm"
	"github.com/geostack/bootstrap/internal/k8sapi"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

type stubKube struct {
	namespaces  map[string]bool
	secrets     map[string]map[string][]byte
	applied     []string
	manifestErr error
	lbAddr      string
	lbErr       error
	stsErr      error
}

func newStubKube() *stubKube {
	return &stubKube{
		namespaces: make(map[string]bool),
		secrets:    make(map[string]map[string][]byte),
		lbAddr:     "192.168.0.240",
	}
}

func (s *stubKube) Exists(_ context.Context, desc config.ResourceDescriptor) (bool, error) {
	switch desc.Kind {
	case config.KindNamespace:
		return s.namespaces[desc.Name], nil
	case config.KindSecret:
		_, ok := s.secrets[desc.Namespace+"/"+desc.Name]
		return ok, nil
	default:
		return false, fmt.Errorf("unsupported resource kind %q", desc.Kind)
	}
}

func (s *stubKube) EnsureNamespace(_ context.Context, namespace string) error {
	s.namespaces[namespace] = true
	return nil
}

func (s *stubKube) UpsertSecret(_ context.Context, namespace, name string, data map[string][]byte) error {
	copied := make(map[string][]byte, len(data))
	for key, value := range data {
		copied[key] = value
	}
	s.secrets[namespace+"/"+name] = copied
	return nil
}

func (s *stubKube) GetSecretData(_ context.Context, namespace, name string) (map[string][]byte, error) {
	data, ok := s.secrets[namespace+"/"+name]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s not found", namespace, name)
	}
	return data, nil
}

func (s *stubKube) SecretExists(_ context.Context, namespace, name string) (bool, error) {
	_, ok := s.secrets[namespace+"/"+name]
	return ok, nil
}

func (s *stubKube) ApplyUnstructured(_ context.Context, obj *unstructured.Unstructured) error {
	s.applied = append(s.applied, obj.GetKind()+"/"+obj.GetName())
	return nil
}

func (s *stubKube) ApplyManifestFile(_ context.Context, _ afero.Fs, _ string) error {
	return s.manifestErr
}

func (s *stubKube) WaitForLoadBalancerAddress(_ context.Context, _, _ string, _ int, _ time.Duration) (string, error) {
	if s.lbErr != nil {
		return "", s.lbErr
	}
	return s.lbAddr, nil
}

func (s *stubKube) WaitForStatefulSetReady(_ context.Context, _, _ string, _ time.Duration) error {
	return s.stsErr
}

type stubInstaller struct {
	releaseName string
	installed   *[]string
	errs        map[string]error
}

func (s stubInstaller) InstallOrUpgrade(_ context.Context) error {
	if err := s.errs[s.releaseName]; err != nil {
		return err
	}
	*s.installed = append(*s.installed, s.releaseName)
	return nil
}

func (s stubInstaller) ReleaseExists() (bool, error) {
	for _, name := range *s.installed {
		if name == s.releaseName {
			return true, nil
		}
	}
	return false, nil
}

type stubProvisioner struct {
	calls   int
	triples []config.ProvisioningTriple
	err     error
}

func (s *stubProvisioner) Provision(_ context.Context, triples []config.ProvisioningTriple) error {
	s.calls++
	s.triples = triples
	return s.err
}

type testHarness struct {
	bootstrapper *Bootstrapper
	kube         *stubKube
	provisioner  *stubProvisioner
	installed    []string
	out          *bytes.Buffer
	installErrs  map[string]error
}

func newTestHarness() *testHarness {
	h := &testHarness{
		kube:        newStubKube(),
		provisioner: &stubProvisioner{},
		out:         &bytes.Buffer{},
		installErrs: make(map[string]error),
	}
	h.bootstrapper = &Bootstrapper{
		logger: zap.NewNop(),
		cfg:    config.Default(),
		client: h.kube,
		fs:     afero.NewMemMapFs(),
		out:    h.out,
		newInstaller: func(_ *zap.Logger, release config.ChartRelease) chartInstaller {
			return stubInstaller{releaseName: release.ReleaseName, installed: &h.installed, errs: h.installErrs}
		},
		connectDB: func(_ context.Context, _ *zap.Logger, _ string) (dbProvisioner, func() error, error) {
			return h.provisioner, func() error { return nil }, nil
		},
	}
	return h
}

func TestRunFullSequence(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)
	require := require.New(t)

	h := newTestHarness()
	require.NoError(h.bootstrapper.Run(context.Background()))

	assert.Len(h.kube.namespaces, 3)
	assert.Equal([]string{"metallb", "ingress-nginx", "geostack-postgresql", "geostack-adminer"}, h.installed)
	assert.Contains(h.kube.applied, "IPAddressPool/default-pool")
	assert.Contains(h.kube.applied, "L2Advertisement/default-pool-l2")

	// one admin secret plus one connection secret per non-app service
	require.Len(h.kube.secrets, 4)
	for _, name := range []string{"postgres-admin", "kratos-db", "hydra-db", "keto-db"} {
		_, ok := h.kube.secrets["geostack/"+name]
		assert.True(ok, "missing secret %s", name)
	}

	require.Equal(1, h.provisioner.calls)
	require.Len(h.provisioner.triples, 4)
	users := make([]string, 0, 4)
	for _, triple := range h.provisioner.triples {
		users = append(users, triple.User)
		assert.NotEmpty(triple.Password)
	}
	assert.Equal([]string{"geo_app", "kratos", "hydra", "keto"}, users)

	// provisioned passwords come from the stored secrets, not from memory
	kratosSecret := h.kube.secrets["geostack/kratos-db"]
	assert.Equal(string(kratosSecret[config.SecretKeyPassword]), h.provisioner.triples[1].Password)

	report := h.out.String()
	assert.Contains(report, "PostgreSQL endpoint")
	assert.Contains(report, "Ingress address: 192.168.0.240")
	for _, release := range []string{"metallb", "ingress-nginx", "geostack-postgresql", "geostack-adminer"} {
		assert.Contains(report, "Release "+release+": installed")
	}
}

func TestExistsRoutesChartReleases(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	h := newTestHarness()
	h.installed = []string{"metallb"}
	h.kube.namespaces["geostack"] = true

	exists, err := h.bootstrapper.Exists(ctx, config.ResourceDescriptor{
		Kind: config.KindChartRelease, Namespace: "metallb-system", Name: "metallb",
	})
	require.NoError(err)
	assert.True(exists, "recorded release must be found")

	exists, err = h.bootstrapper.Exists(ctx, config.ResourceDescriptor{
		Kind: config.KindChartRelease, Namespace: "ingress-nginx", Name: "ingress-nginx",
	})
	require.NoError(err)
	assert.False(exists, "absence is a result, not an error")

	exists, err = h.bootstrapper.Exists(ctx, config.ResourceDescriptor{
		Kind: config.KindNamespace, Name: "geostack",
	})
	require.NoError(err)
	assert.True(exists, "non-release kinds go to the cluster API")
}

func TestRunTwiceConverges(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)
	require := require.New(t)

	h := newTestHarness()
	require.NoError(h.bootstrapper.Run(context.Background()))

	adminBefore := h.kube.secrets["geostack/postgres-admin"][config.AdminSecretPasswordKey]
	kratosBefore := h.kube.secrets["geostack/kratos-db"][config.SecretKeyPassword]

	require.NoError(h.bootstrapper.Run(context.Background()))

	// same resource set, rotated service values, stable admin password
	assert.Len(h.kube.secrets, 4)
	assert.Len(h.kube.namespaces, 3)
	assert.Equal(2, h.provisioner.calls)
	assert.Equal(adminBefore, h.kube.secrets["geostack/postgres-admin"][config.AdminSecretPasswordKey])
	assert.NotEqual(kratosBefore, h.kube.secrets["geostack/kratos-db"][config.SecretKeyPassword])
}

func TestChartTimeoutHaltsRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)
	require := require.New(t)

	h := newTestHarness()
	h.installErrs["ingress-nginx"] = helm.ErrDeadlineExceeded

	err := h.bootstrapper.Run(context.Background())
	require.ErrorIs(err, helm.ErrDeadlineExceeded)
	assert.Equal([]string{"metallb"}, h.installed)
	assert.Zero(h.provisioner.calls, "later phases must not run after a fatal phase")
}

func TestDatabaseNotReadyHaltsRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)
	require := require.New(t)

	h := newTestHarness()
	h.kube.stsErr = errors.New("timed out waiting for the condition")

	err := h.bootstrapper.Run(context.Background())
	require.Error(err)
	assert.Zero(h.provisioner.calls)
}

func TestLoadBalancerPendingIsWarning(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)
	require := require.New(t)

	h := newTestHarness()
	h.kube.lbErr = k8sapi.ErrAddressPending

	require.NoError(h.bootstrapper.Run(context.Background()))
	assert.Equal(1, h.provisioner.calls, "bootstrap proceeds past a pending address")
	assert.Contains(h.out.String(), "Ingress address still pending")
}

func TestMissingManifestIsWarning(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	h := newTestHarness()
	h.kube.manifestErr = k8sapi.ErrManifestMissing

	require.NoError(h.bootstrapper.Run(context.Background(), PhaseNetwork))
}

func TestProvisionStandalone(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)
	require := require.New(t)

	h := newTestHarness()
	// state left behind by earlier runs; nothing lives in process memory
	admin := make(map[string][]byte)
	admin[config.AdminSecretPasswordKey] = []byte("admin-pw")
	admin[config.AppSecretKeyPrefix+config.SecretKeyPassword] = []byte("app-pw")
	h.kube.secrets["geostack/postgres-admin"] = admin
	for _, service := range []string{"kratos", "hydra", "keto"} {
		h.kube.secrets["geostack/"+service+"-db"] = map[string][]byte{
			config.SecretKeyPassword: []byte(service + "-pw"),
		}
	}

	require.NoError(h.bootstrapper.Run(context.Background(), PhaseProvision))
	require.Len(h.provisioner.triples, 4)
	assert.Equal("app-pw", h.provisioner.triples[0].Password)
	assert.Equal("kratos-pw", h.provisioner.triples[1].Password)
}

func TestProvisionWithoutSecretsFails(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	h := newTestHarness()
	err := h.bootstrapper.Run(context.Background(), PhaseProvision)
	require.Error(err, "provision needs the secrets phase output")
	require.Zero(h.provisioner.calls)
}

func TestUnknownPhase(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	h := newTestHarness()
	require.Error(h.bootstrapper.Run(context.Background(), "bogus"))
}

func TestPhaseNamesOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	names := PhaseNames()
	assert.Equal([]string{
		PhaseNamespace, PhaseNetwork, PhaseIngress, PhaseDatabase,
		PhaseSecrets, PhaseProvision, PhaseApps, PhaseReport,
	}, names)
}
