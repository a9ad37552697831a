/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package templates

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// IPAddressPool creates a MetalLB address pool template.
func IPAddressPool(namespace, name, addressRange string) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "metallb.io/v1beta1",
			"kind":       "IPAddressPool",
			"metadata": map[string]interface{}{
				"name":      name,
				"namespace": namespace,
			},
			"spec": map[string]interface{}{
				"addresses": []interface{}{addressRange},
			},
		},
	}
}

// L2Advertisement creates a MetalLB layer-2 advertisement template bound to
// the given pool.
func L2Advertisement(namespace, name, poolName string) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "metallb.io/v1beta1",
			"kind":       "L2Advertisement",
			"metadata": map[string]interface{}{
				"name":      name,
				"namespace": namespace,
			},
			"spec": map[string]interface{}{
				"ipAddressPools": []interface{}{poolName},
			},
		},
	}
}
