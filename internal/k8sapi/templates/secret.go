/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package templates

import (
	coreAPI "k8s.io/api/core/v1"
	metaAPI "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Secret creates an opaque secret template holding the given mapping.
func Secret(namespace, name string, data map[string][]byte) *coreAPI.Secret {
	return &coreAPI.Secret{
		TypeMeta: metaAPI.TypeMeta{
			Kind:       "Secret",
			APIVersion: coreAPI.SchemeGroupVersion.Version,
		},
		ObjectMeta: metaAPI.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Type: coreAPI.SecretTypeOpaque,
		Data: data,
	}
}
