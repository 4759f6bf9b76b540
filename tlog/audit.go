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
	"encoding/json"
	"fmt"

	"github.com/provideplatform/provenance/common"
)

// EntryAudit is the audit outcome of a single entry
type EntryAudit struct {
	LogIndex       uint64 `json:"log_index"`
	EntryHashValid bool   `json:"entry_hash_valid"`
	SignatureValid bool   `json:"signature_valid"`
	ChainValid     bool   `json:"chain_valid"`
}

// AuditReport is the outcome of a full log audit
type AuditReport struct {
	Valid           bool          `json:"valid"`
	Size            int           `json:"size"`
	FirstChainBreak int           `json:"first_chain_break"`
	Entries         []*EntryAudit `json:"entries"`
}

// Audit checks an exported log using nothing but its entries and the
// published public key. Chain validity is cumulative from genesis: an entry
// is chain-valid only if every link up to and including its own holds.
func Audit(entries []*Entry, publicKey string) (*AuditReport, error) {
	verifier, err := NewVerifier(publicKey)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		Valid:           true,
		Size:            len(entries),
		FirstChainBreak: -1,
		Entries:         make([]*EntryAudit, 0, len(entries)),
	}

	chainValid := true
	for i, entry := range entries {
		audit := &EntryAudit{LogIndex: uint64(i)}
		if entry == nil {
			chainValid = false
		} else {
			audit.LogIndex = entry.LogIndex
			audit.EntryHashValid = entry.EntryHash == entry.ComputeEntryHash()
			audit.SignatureValid = entry.VerifySignature(verifier)
			chainValid = chainValid && entry.LogIndex == uint64(i) && linked(entries, i)
		}
		audit.ChainValid = chainValid

		if !audit.ChainValid && report.FirstChainBreak == -1 {
			report.FirstChainBreak = i
		}
		if !audit.EntryHashValid || !audit.SignatureValid || !audit.ChainValid {
			report.Valid = false
		}
		report.Entries = append(report.Entries, audit)
	}

	return report, nil
}

// linked returns true if entry i points at its predecessor's entry hash and
// that hash is the one the predecessor's fields recompute to
func linked(entries []*Entry, i int) bool {
	if i == 0 {
		return entries[0].PreviousHash == common.ZeroHash
	}
	prev := entries[i-1]
	if prev == nil {
		return false
	}
	return entries[i].PreviousHash == prev.EntryHash && prev.EntryHash == prev.ComputeEntryHash()
}

// AuditJSON audits a log in its exported json form; the public key embedded
// in the export is ignored in favor of the one supplied
func AuditJSON(raw []byte, publicKey string) (*AuditReport, error) {
	var export Export
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("failed to parse exported log; %s; %w", err.Error(), common.ErrMalformedContent)
	}
	return Audit(export.Entries, publicKey)
}
