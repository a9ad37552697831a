/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package config

import "time"

// ResourceKind enumerates the resource kinds the existence prober understands.
type ResourceKind string

// Resource kinds usable in a ResourceDescriptor.
const (
	KindNamespace    ResourceKind = "namespace"
	KindSecret       ResourceKind = "secret"
	KindService      ResourceKind = "service"
	KindStatefulSet  ResourceKind = "statefulset"
	KindChartRelease ResourceKind = "chart-release"
)

// ResourceDescriptor identifies a cluster resource for an existence check.
// It is a pure value and is never mutated.
type ResourceDescriptor struct {
	Kind      ResourceKind
	Namespace string
	Name      string
}

// ChartRelease describes a helm release to converge on. The installer decides
// install-vs-upgrade itself.
type ChartRelease struct {
	ReleaseName string
	ChartRef    string
	Namespace   string
	Values      map[string]interface{}
	Timeout     time.Duration
}

// ProvisioningTriple is one database user, password and database to establish.
type ProvisioningTriple struct {
	User     string
	Password string
	Database string
}
