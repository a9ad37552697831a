/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package k8sapi

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/api/errors"
	metaAPI "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
)

// StatefulSetExists checks whether the statefulset exists.
func (k *Client) StatefulSetExists(ctx context.Context, namespace, name string) (bool, error) {
	_, err := k.Client.AppsV1().StatefulSets(namespace).Get(ctx, name, metaAPI.GetOptions{})
	if errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// WaitForStatefulSetReady waits until every replica of the statefulset
// reports ready.
func (k *Client) WaitForStatefulSetReady(ctx context.Context, namespace, name string, timeout time.Duration) error {
	return wait.PollImmediate(time.Second, timeout, isStatefulSetReady(ctx, k.Client, namespace, name))
}

func isStatefulSetReady(ctx context.Context, c kubernetes.Interface, namespace, name string) wait.ConditionFunc {
	return func() (bool, error) {
		sSet, err := c.AppsV1().StatefulSets(namespace).Get(ctx, name, metaAPI.GetOptions{})
		if errors.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		var want int32 = 1
		if sSet.Spec.Replicas != nil {
			want = *sSet.Spec.Replicas
		}
		return sSet.Status.ReadyReplicas >= want, nil
	}
}
