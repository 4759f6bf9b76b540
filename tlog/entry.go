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
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/provideplatform/provenance/common"
	"golang.org/x/mod/sumdb/note"
)

// Entry is a signed, hash-linked log record
type Entry struct {
	LogIndex     uint64            `json:"log_index"`
	ContentHash  string            `json:"content_hash"`
	TimestampMs  int64             `json:"timestamp_ms"`
	Extra        map[string]string `json:"extra,omitempty"`
	Signature    string            `json:"signature"`
	PreviousHash string            `json:"previous_hash"`
	EntryHash    string            `json:"entry_hash"`
}

// signingPayload is the canonical form of the signed entry fields
type signingPayload struct {
	Index        uint64            `cbor:"index"`
	ContentHash  string            `cbor:"content_hash"`
	TimestampMs  int64             `cbor:"timestamp_ms"`
	PreviousHash string            `cbor:"previous_hash"`
	Extra        map[string]string `cbor:"extra,omitempty"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize canonical cbor encoding; %s", err.Error()))
	}
}

// CanonicalPayload returns the deterministic encoding of the signed fields
func (e *Entry) CanonicalPayload() ([]byte, error) {
	extra := e.Extra
	if len(extra) == 0 {
		extra = nil
	}

	raw, err := encMode.Marshal(&signingPayload{
		Index:        e.LogIndex,
		ContentHash:  e.ContentHash,
		TimestampMs:  e.TimestampMs,
		PreviousHash: e.PreviousHash,
		Extra:        extra,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical payload for log entry %d; %s", e.LogIndex, err.Error())
	}
	return raw, nil
}

// ComputeEntryHash returns H(contentHash || timestampMs || signature || previousHash)
func (e *Entry) ComputeEntryHash() string {
	return common.SHA256Concat(
		[]byte(e.ContentHash),
		[]byte(strconv.FormatInt(e.TimestampMs, 10)),
		[]byte(e.Signature),
		[]byte(e.PreviousHash),
	)
}

// VerifySignature checks the entry signature over its canonical payload
func (e *Entry) VerifySignature(verifier note.Verifier) bool {
	sig, err := hex.DecodeString(e.Signature)
	if err != nil || len(sig) == 0 {
		return false
	}

	payload, err := e.CanonicalPayload()
	if err != nil {
		return false
	}

	return verifier.Verify(payload, sig)
}

// sign fills in the signature and entry hash
func (e *Entry) sign(signer note.Signer) error {
	payload, err := e.CanonicalPayload()
	if err != nil {
		return err
	}

	sig, err := signer.Sign(payload)
	if err != nil {
		return fmt.Errorf("failed to sign log entry %d; %s", e.LogIndex, err.Error())
	}

	e.Signature = hex.EncodeToString(sig)
	e.EntryHash = e.ComputeEntryHash()
	return nil
}
