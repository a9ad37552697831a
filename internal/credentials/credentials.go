/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

// Package credentials generates per-service database secrets. Values are
// random every run; a previous value is never reused or derived from.
package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// Generate returns byteLength bytes from a cryptographically secure source,
// encoded with the unpadded base64 url alphabet. The result contains no `=`,
// `+`, `/` or DSN delimiter characters and can be embedded in a connection
// URL without quoting.
func Generate(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", errors.New("byte length must be positive")
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Set maps a logical credential name to a generated value.
type Set map[string]string

// NewSet generates one independent value per name.
func NewSet(names []string, byteLength int) (Set, error) {
	set := make(Set, len(names))
	for _, name := range names {
		value, err := Generate(byteLength)
		if err != nil {
			return nil, err
		}
		set[name] = value
	}
	return set, nil
}
