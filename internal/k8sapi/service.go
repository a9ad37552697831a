/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package k8sapi

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metaAPI "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ErrAddressPending is returned when the attempt budget is exhausted before
// the service obtains an external address. Callers treat this as a warning.
var ErrAddressPending = errors.New("load balancer address not yet assigned")

// ServiceExists checks whether a service exists.
func (k *Client) ServiceExists(ctx context.Context, namespace, serviceName string) (bool, error) {
	_, err := k.Client.CoreV1().Services(namespace).Get(ctx, serviceName, metaAPI.GetOptions{})
	if k8serrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// WaitForLoadBalancerAddress polls the service until it carries an external
// address, once per interval, at most maxAttempts times. A missing service
// counts as a normal not-yet-assigned poll. On exhaustion it returns
// ErrAddressPending; the interval is fixed since the expected wait is short.
func (k *Client) WaitForLoadBalancerAddress(ctx context.Context, namespace, serviceName string, maxAttempts int, interval time.Duration) (string, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		addr, err := k.loadBalancerAddress(ctx, namespace, serviceName)
		if err != nil {
			return "", err
		}
		if addr != "" {
			k.logger.Info("load balancer address assigned",
				zap.String("service", serviceName), zap.String("address", addr), zap.Int("attempt", attempt))
			return addr, nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
	return "", ErrAddressPending
}

func (k *Client) loadBalancerAddress(ctx context.Context, namespace, serviceName string) (string, error) {
	service, err := k.Client.CoreV1().Services(namespace).Get(ctx, serviceName, metaAPI.GetOptions{})
	if k8serrors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	for _, ingress := range service.Status.LoadBalancer.Ingress {
		if ingress.IP != "" {
			return ingress.IP, nil
		}
		if ingress.Hostname != "" {
			return ingress.Hostname, nil
		}
	}
	return "", nil
}
