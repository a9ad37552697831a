/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package k8sapi

import (
	"errors"
	"os"

	"go.uber.org/zap"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client is the struct used to access kubernetes helpers.
type Client struct {
	Client  kubernetes.Interface
	Dynamic dynamic.Interface
	logger  *zap.Logger
}

// NewClient returns a new kubernetes client-go wrapper.
// If no kubeconfig path is given we use the service account token.
func NewClient(logger *zap.Logger) (kubeClient *Client, err error) {
	// use the current context in kubeconfig
	var config *rest.Config
	val, present := os.LookupEnv("KUBECONFIG")
	if !present {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, err
		}
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", val)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("generating kubernetes client")
	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, err
	}
	dynClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, err
	}
	kubeClient = &Client{
		Client:  client,
		Dynamic: dynClient,
		logger:  logger,
	}
	return
}

// GetKubeConfigPath returns the path to the kubeconfig file.
func GetKubeConfigPath() (string, error) {
	val, present := os.LookupEnv("KUBECONFIG")
	if !present {
		return "", errors.New("KUBECONFIG not set")
	}
	if _, err := os.Stat(val); err != nil {
		if os.IsNotExist(err) {
			return "", errors.New("KUBECONFIG file does not exist")
		}
		return "", err
	}
	return val, nil
}
