/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package k8sapi

import (
	"context"
	"fmt"

	"github.com/geostack/bootstrap/internal/config"
)

// Exists reports whether the described resource currently exists. Absence is
// a normal return value, never an error; only infrastructure failures
// (unreachable cluster, auth) propagate. Chart releases are probed through
// the helm installer, not here.
func (k *Client) Exists(ctx context.Context, desc config.ResourceDescriptor) (bool, error) {
	switch desc.Kind {
	case config.KindNamespace:
		return k.NamespaceExists(ctx, desc.Name)
	case config.KindSecret:
		return k.SecretExists(ctx, desc.Namespace, desc.Name)
	case config.KindService:
		return k.ServiceExists(ctx, desc.Namespace, desc.Name)
	case config.KindStatefulSet:
		return k.StatefulSetExists(ctx, desc.Namespace, desc.Name)
	default:
		return false, fmt.Errorf("unsupported resource kind %q", desc.Kind)
	}
}
