/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

package k8sapi

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	metaAPI "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// FieldManager identifies this tool in server-side apply operations.
const FieldManager = "geostack-bootstrap"

// ErrManifestMissing is returned when an optional manifest file is absent.
var ErrManifestMissing = errors.New("manifest file not found")

// ApplyUnstructured server-side applies the object, creating or updating it
// declaratively.
func (k *Client) ApplyUnstructured(ctx context.Context, obj *unstructured.Unstructured) error {
	gvr, err := gvrFor(obj)
	if err != nil {
		return err
	}
	_, err = k.Dynamic.Resource(gvr).Namespace(obj.GetNamespace()).Apply(ctx, obj.GetName(), obj, metaAPI.ApplyOptions{
		FieldManager: FieldManager,
		Force:        true,
	})
	if err != nil {
		return err
	}
	k.logger.Info("applied resource",
		zap.String("kind", obj.GetKind()), zap.String("namespace", obj.GetNamespace()), zap.String("name", obj.GetName()))
	return nil
}

// ApplyManifestFile applies every document of a multi-document yaml manifest.
// A missing file yields ErrManifestMissing so callers can treat the manifest
// as optional.
func (k *Client) ApplyManifestFile(ctx context.Context, fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return err
	}
	if !exists {
		return ErrManifestMissing
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(strings.NewReader(string(raw)))
	for {
		var doc map[string]interface{}
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if len(doc) == 0 {
			continue
		}
		obj := &unstructured.Unstructured{Object: doc}
		if err := k.ApplyUnstructured(ctx, obj); err != nil {
			return err
		}
	}
}

// gvrFor derives the resource name from the object's group-version-kind. The
// manifests this tool applies use regular plurals only.
func gvrFor(obj *unstructured.Unstructured) (schema.GroupVersionResource, error) {
	gvk := obj.GroupVersionKind()
	if gvk.Kind == "" || gvk.Version == "" {
		return schema.GroupVersionResource{}, errors.New("manifest document is missing apiVersion or kind")
	}
	return schema.GroupVersionResource{
		Group:    gvk.Group,
		Version:  gvk.Version,
		Resource: strings.ToLower(gvk.Kind) + "s",
	}, nil
}
