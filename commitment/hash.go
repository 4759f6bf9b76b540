/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package commitment

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"strings"

	"github.com/provideplatform/provenance/common"
	"github.com/zeebo/blake3"
)

// AlgorithmSHA256 is the default tile hash algorithm
const AlgorithmSHA256 = "sha256"

// AlgorithmBLAKE3 hashes tiles with blake3
const AlgorithmBLAKE3 = "blake3"

// HashFunc hashes the concatenation of its inputs
type HashFunc func(data ...[]byte) []byte

// HashFuncFactory returns the hash function for the named algorithm; an empty
// name resolves to sha256
func HashFuncFactory(algorithm string) (HashFunc, error) {
	var factory func() hash.Hash

	switch strings.ToLower(algorithm) {
	case "", AlgorithmSHA256:
		factory = sha256.New
	case AlgorithmBLAKE3:
		factory = func() hash.Hash { return blake3.New() }
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %s; %w", algorithm, common.ErrMalformedContent)
	}

	return func(data ...[]byte) []byte {
		digest := factory()
		for i := range data {
			digest.Write(data[i])
		}
		return digest.Sum(nil)
	}, nil
}

func normalizeAlgorithm(algorithm string) string {
	if algorithm == "" {
		return AlgorithmSHA256
	}
	return strings.ToLower(algorithm)
}
