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

// UpsertSecret replaces the secret with exactly the given mapping. Any
// existing secret of that name is deleted first, so keys from a previous run
// never survive a rewrite. Readers must tolerate the brief window in which
// the secret is absent.
func (k *Client) UpsertSecret(ctx context.Context, namespace, name string, data map[string][]byte) error {
	err := k.Client.CoreV1().Secrets(namespace).Delete(ctx, name, metaAPI.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	secret := templates.Secret(namespace, name, data)
	if _, err := k.Client.CoreV1().Secrets(namespace).Create(ctx, secret, metaAPI.CreateOptions{}); err != nil {
		return err
	}
	k.logger.Info("wrote secret", zap.String("namespace", namespace), zap.String("name", name))
	return nil
}

// GetSecretData returns the data mapping of a secret.
func (k *Client) GetSecretData(ctx context.Context, namespace, name string) (map[string][]byte, error) {
	secret, err := k.Client.CoreV1().Secrets(namespace).Get(ctx, name, metaAPI.GetOptions{})
	if err != nil {
		return nil, err
	}
	return secret.Data, nil
}

// SecretExists checks whether a secret exists.
func (k *Client) SecretExists(ctx context.Context, namespace, name string) (bool, error) {
	_, err := k.Client.CoreV1().Secrets(namespace).Get(ctx, name, metaAPI.GetOptions{})
	if errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
