/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package config

// Chart references are pinned; convergence re-runs install the same version.
var (
	// MetalLBChart is the MetalLB helm chart.
	MetalLBChart = "https://github.com/metallb/metallb/releases/download/metallb-chart-0.13.12/metallb-0.13.12.tgz"
	// IngressNginxChart is the ingress-nginx helm chart.
	IngressNginxChart = "https://github.com/kubernetes/ingress-nginx/releases/download/helm-chart-4.8.3/ingress-nginx-4.8.3.tgz"
	// PostgresChart is the bitnami PostgreSQL helm chart.
	PostgresChart = "https://charts.bitnami.com/bitnami/postgresql-13.2.24.tgz"
	// AdminerChart is the adminer helm chart.
	AdminerChart = "https://github.com/cetic/helm-adminer/releases/download/0.2.1/adminer-0.2.1.tgz"
)

// Services are the logical credentials generated per bootstrap run. The first
// entry is the application itself; its connection data lives in the admin
// secret, the others get a connection secret of their own.
var Services = []ServiceCredential{
	{Name: "geo-app", DatabaseUser: "geo_app", DatabaseName: "geo_app"},
	{Name: "kratos", DatabaseUser: "kratos", DatabaseName: "kratos"},
	{Name: "hydra", DatabaseUser: "hydra", DatabaseName: "hydra"},
	{Name: "keto", DatabaseUser: "keto", DatabaseName: "keto"},
}

// ServiceCredential maps a logical credential name to database identifiers.
type ServiceCredential struct {
	Name         string
	DatabaseUser string
	DatabaseName string
}

// SecretName is the connection-secret name for the service.
func (s ServiceCredential) SecretName() string {
	return s.Name + "-db"
}
