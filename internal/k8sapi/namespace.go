/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package k8sapi

import (
	"context"

	"github.com/geostack/bootstrap/internal/k8sapi/templates"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/api/errors"
	metaAPI "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// CreateNamespace creates a namespace.
func (k *Client) CreateNamespace(ctx context.Context, namespace string) error {
	nspace := templates.Namespace(namespace)
	_, err := k.Client.CoreV1().Namespaces().Create(ctx, nspace, metaAPI.CreateOptions{})
	return err
}

// NamespaceExists checks whether a namespace exists.
func (k *Client) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	_, err := k.Client.CoreV1().Namespaces().Get(ctx, namespace, metaAPI.GetOptions{})
	if errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnsureNamespace creates the namespace unless it already exists.
func (k *Client) EnsureNamespace(ctx context.Context, namespace string) error {
	exists, err := k.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		k.logger.Info("namespace already present", zap.String("namespace", namespace))
		return nil
	}
	if err := k.CreateNamespace(ctx, namespace); err != nil {
		return err
	}
	k.logger.Info("created namespace", zap.String("namespace", namespace))
	return nil
}
