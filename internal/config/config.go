/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package config

import (
	"fmt"
	"os"
	"time"
)

const (
	// AppNamespace is the namespace holding the application stack.
	AppNamespace = "geostack"
	// MetalLBNamespace is the namespace MetalLB is installed into.
	MetalLBNamespace = "metallb-system"
	// IngressNamespace is the namespace the ingress controller is installed into.
	IngressNamespace = "ingress-nginx"

	// ReleaseNameEnv overrides the release prefix for the application charts.
	ReleaseNameEnv = "BOOTSTRAP_RELEASE"
	// DefaultReleaseName is the release prefix used when ReleaseNameEnv is unset.
	DefaultReleaseName = "geostack"

	// AdminSecretName stores the PostgreSQL superuser credentials.
	AdminSecretName = "postgres-admin"
	// AdminSecretPasswordKey is the admin password key inside AdminSecretName.
	AdminSecretPasswordKey = "postgres-password"
	// AdminUser is the PostgreSQL superuser.
	AdminUser = "postgres"

	// PostgresPort is the in-cluster PostgreSQL port.
	PostgresPort = "5432"

	// IngressServiceName is the LoadBalancer service of the ingress controller.
	IngressServiceName = "ingress-nginx-controller"

	// AddressPoolName is the MetalLB IPAddressPool applied during the network phase.
	AddressPoolName = "default-pool"
	// AddressPoolRange is the address range handed to MetalLB.
	AddressPoolRange = "192.168.0.240-192.168.0.250"

	// ExtraNetworkManifest is an optional manifest applied after MetalLB, if present.
	ExtraNetworkManifest = "network-extras.yaml"

	// ChartTimeout bounds a single helm install or upgrade.
	ChartTimeout = 5 * time.Minute
	// LoadBalancerPollInterval is the fixed wait between address polls.
	LoadBalancerPollInterval = 2 * time.Second
	// LoadBalancerPollAttempts is the address poll budget.
	LoadBalancerPollAttempts = 30

	// CredentialBytes is the entropy of a generated password before encoding.
	CredentialBytes = 24
)

// Keys used inside connection secrets.
const (
	SecretKeyEndpoint = "endpoint"
	SecretKeyPort     = "port"
	SecretKeyUsername = "username"
	SecretKeyPassword = "password"
	SecretKeyDatabase = "database"
	SecretKeyDSN      = "dsn"
	// AppSecretKeyPrefix prefixes the application's own connection keys inside
	// the admin secret.
	AppSecretKeyPrefix = "app-"
)

// Config is the immutable bootstrap configuration threaded through every phase.
type Config struct {
	AppNamespace     string
	MetalLBNamespace string
	IngressNamespace string

	ReleaseName string

	AddressPoolName  string
	AddressPoolRange string

	ExtraManifestPath string

	ChartTimeout time.Duration
	PollInterval time.Duration
	PollAttempts int
}

// Default returns the compiled-in configuration, applying the release-name
// override from the environment.
func Default() *Config {
	release := DefaultReleaseName
	if val, present := os.LookupEnv(ReleaseNameEnv); present && val != "" {
		release = val
	}
	return &Config{
		AppNamespace:      AppNamespace,
		MetalLBNamespace:  MetalLBNamespace,
		IngressNamespace:  IngressNamespace,
		ReleaseName:       release,
		AddressPoolName:   AddressPoolName,
		AddressPoolRange:  AddressPoolRange,
		ExtraManifestPath: ExtraNetworkManifest,
		ChartTimeout:      ChartTimeout,
		PollInterval:      LoadBalancerPollInterval,
		PollAttempts:      LoadBalancerPollAttempts,
	}
}

// PostgresReleaseName is the name of the PostgreSQL release.
func (c *Config) PostgresReleaseName() string {
	return c.ReleaseName + "-postgresql"
}

// AdminerReleaseName is the name of the Adminer release.
func (c *Config) AdminerReleaseName() string {
	return c.ReleaseName + "-adminer"
}

// PostgresHost is the cluster-internal DNS name of the PostgreSQL service.
func (c *Config) PostgresHost() string {
	return c.PostgresReleaseName() + "." + c.AppNamespace + ".svc.cluster.local"
}

// DSN builds an application connection string for the given user and database.
func (c *Config) DSN(user, password, dbname string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, c.PostgresHost(), PostgresPort, dbname)
}

// AdminDSN builds the administrative connection string.
func (c *Config) AdminDSN(password string) string {
	return c.DSN(AdminUser, password, "postgres")
}
