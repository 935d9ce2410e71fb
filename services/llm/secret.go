// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"errors"

	"github.com/awnumar/memguard"
)

// sealedKey keeps an API key encrypted in memory between requests.
//
// # Description
//
// The key is moved into a memguard Enclave at construction and the source
// bytes are wiped. reveal decrypts into a locked buffer only for the
// duration of one request.
//
// # Thread Safety
//
// Safe for concurrent use; Enclave.Open is goroutine-safe.
type sealedKey struct {
	enclave *memguard.Enclave
}

func sealKey(key string) (*sealedKey, error) {
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	// NewEnclave wipes its argument.
	return &sealedKey{enclave: memguard.NewEnclave([]byte(key))}, nil
}

// reveal returns a copy of the plaintext key.
func (k *sealedKey) reveal() (string, error) {
	if k == nil || k.enclave == nil {
		return "", ErrMissingAPIKey
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return "", errors.Join(ErrMissingAPIKey, err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Purge wipes all memguard-managed memory. Call once at process exit.
func Purge() {
	memguard.Purge()
}
