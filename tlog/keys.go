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

package tlog

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/provideplatform/provenance/common"
	"golang.org/x/mod/sumdb/note"
)

// Keys is the log signing key pair; the signer key string never leaves the process
type Keys struct {
	Signer    note.Signer
	Verifier  note.Verifier
	PublicKey string
}

// keyFile is the at-rest form of the key pair
type keyFile struct {
	SignerKey   string `json:"signer_key"`
	VerifierKey string `json:"verifier_key"`
}

// GenerateKeys returns a fresh ed25519 note key pair under the given name
func GenerateKeys(name string) (*Keys, error) {
	skey, vkey, err := note.GenerateKey(rand.Reader, name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate log signing key; %s", err.Error())
	}
	return parseKeys(skey, vkey)
}

// LoadOrCreateSigner loads the key pair persisted at path, generating and
// persisting one when absent. When ageIdentity is set, the key file is
// encrypted to that identity's recipient. An empty path yields an ephemeral
// key pair.
func LoadOrCreateSigner(path, name, ageIdentity string) (*Keys, error) {
	var identity *age.X25519Identity
	if ageIdentity != "" {
		var err error
		identity, err = age.ParseX25519Identity(ageIdentity)
		if err != nil {
			return nil, fmt.Errorf("failed to parse signing key age identity; %s", err.Error())
		}
	}

	if path == "" {
		common.Log.Warning("no signing key path configured; using an ephemeral log signing key")
		return GenerateKeys(name)
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		keys, err := readKeyFile(raw, identity)
		if err != nil {
			return nil, err
		}
		common.Log.Debugf("loaded log signing key %s from %s", keys.Signer.Name(), path)
		return keys, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read signing key %s; %s", path, err.Error())
	}

	skey, vkey, err := note.GenerateKey(rand.Reader, name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate log signing key; %s", err.Error())
	}

	raw, err = writeKeyFile(&keyFile{SignerKey: skey, VerifierKey: vkey}, identity)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create signing key directory; %s", err.Error())
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist signing key %s; %s", path, err.Error())
	}

	common.Log.Debugf("generated log signing key %s; persisted to %s", name, path)
	return parseKeys(skey, vkey)
}

func readKeyFile(raw []byte, identity *age.X25519Identity) (*Keys, error) {
	if identity != nil {
		reader, err := age.Decrypt(bytes.NewReader(raw), identity)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt signing key; %s", err.Error())
		}
		raw, err = io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read decrypted signing key; %s", err.Error())
		}
	}

	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse signing key file; %s", err.Error())
	}
	return parseKeys(kf.SignerKey, kf.VerifierKey)
}

func writeKeyFile(kf *keyFile, identity *age.X25519Identity) ([]byte, error) {
	raw, err := json.Marshal(kf)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return raw, nil
	}

	var buf bytes.Buffer
	writer, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key encryption; %s", err.Error())
	}
	if _, err := writer.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to encrypt signing key; %s", err.Error())
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to encrypt signing key; %s", err.Error())
	}
	return buf.Bytes(), nil
}

func parseKeys(skey, vkey string) (*Keys, error) {
	signer, err := note.NewSigner(skey)
	if err != nil {
		return nil, fmt.Errorf("invalid log signing key; %s", err.Error())
	}
	verifier, err := note.NewVerifier(vkey)
	if err != nil {
		return nil, fmt.Errorf("invalid log verifier key; %s", err.Error())
	}
	if signer.Name() != verifier.Name() || signer.KeyHash() != verifier.KeyHash() {
		return nil, fmt.Errorf("log signing and verifier keys do not match")
	}

	return &Keys{
		Signer:    signer,
		Verifier:  verifier,
		PublicKey: vkey,
	}, nil
}

// NewVerifier parses a published log public key
func NewVerifier(publicKey string) (note.Verifier, error) {
	verifier, err := note.NewVerifier(publicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid log public key; %s; %w", err.Error(), common.ErrSignatureInvalid)
	}
	return verifier, nil
}
