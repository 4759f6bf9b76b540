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

package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	uuid "github.com/kthomas/go.uuid"
)

// DigestHexLength is the length of a hex-encoded 32-byte digest
const DigestHexLength = 64

// ZeroHash is the hex-encoded all-zero digest used as the genesis predecessor
var ZeroHash = strings.Repeat("0", DigestHexLength)

// StringOrNil returns the given string or nil when empty
func StringOrNil(str string) *string {
	if str == "" {
		return nil
	}
	return &str
}

// SHA256 is a convenience method to return the sha256 hash of the given input
func SHA256(str string) string {
	digest := sha256.New()
	digest.Write([]byte(str))
	return hex.EncodeToString(digest.Sum(nil))
}

// SHA256Concat returns the hex-encoded sha256 digest of the concatenated inputs
func SHA256Concat(parts ...[]byte) string {
	digest := sha256.New()
	for _, part := range parts {
		digest.Write(part)
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// IsHexDigest returns true if the given string is a lowercase hex-encoded 32-byte digest
func IsHexDigest(str string) bool {
	if len(str) != DigestHexLength {
		return false
	}
	for _, c := range str {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// NewID returns a new random identifier
func NewID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate identifier; %s", err.Error())
	}
	return id.String(), nil
}

// Milliseconds returns the unix timestamp of t in milliseconds
func Milliseconds(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// GnarkCurveIDFactory returns an ecc curve id corresponding to the input name
func GnarkCurveIDFactory(curveID *string) ecc.ID {
	if curveID == nil {
		return ecc.UNKNOWN
	}

	switch strings.ToLower(*curveID) {
	case ecc.BLS12_377.String():
		return ecc.BLS12_377
	case ecc.BLS12_381.String():
		return ecc.BLS12_381
	case ecc.BN254.String():
		return ecc.BN254
	case ecc.BW6_761.String():
		return ecc.BW6_761
	case ecc.BLS24_315.String():
		return ecc.BLS24_315
	default:
		return ecc.UNKNOWN
	}
}

const gnarkProvingSchemeGroth16 = "groth16"
const gnarkProvingSchemePlonk = "plonk"

// GnarkProvingSchemeFactory returns the gnark backend corresponding to the input name
func GnarkProvingSchemeFactory(provingScheme *string) backend.ID {
	if provingScheme == nil {
		return backend.UNKNOWN
	}

	switch strings.ToLower(*provingScheme) {
	case gnarkProvingSchemeGroth16:
		return backend.GROTH16
	case gnarkProvingSchemePlonk:
		return backend.PLONK
	default:
		return backend.UNKNOWN
	}
}
