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


package main

import (
	"encoding/json"
	"fmt"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/tlog"
)

// result is the audit report plus the outcome of the optional checkpoint check
type result struct {
	Valid          bool               `json:"valid"`
	InvalidEntries int                `json:"invalid_entries"`
	Report         *tlog.AuditReport  `json:"report"`
	Checkpoint     *checkpointOutcome `json:"checkpoint,omitempty"`
}

type checkpointOutcome struct {
	Size         uint64 `json:"size"`
	RootHash     string `json:"root_hash"`
	ComputedRoot string `json:"computed_root,omitempty"`
	Consistent   bool   `json:"consistent"`
}

// auditLog audits the export against the public key; a checkpoint, either the
// signed note or its json envelope, must commit to a prefix of the export
func auditLog(exportJSON []byte, publicKey string, checkpoint []byte) (*result, error) {
	report, err := tlog.AuditJSON(exportJSON, publicKey)
	if err != nil {
		return nil, err
	}

	res := &result{
		Valid:  report.Valid,
		Report: report,
	}
	for _, entry := range report.Entries {
		if !entry.EntryHashValid || !entry.SignatureValid || !entry.ChainValid {
			res.InvalidEntries++
		}
	}

	if len(checkpoint) == 0 {
		return res, nil
	}

	outcome, err := checkCheckpoint(exportJSON, publicKey, checkpoint)
	if err != nil {
		return nil, err
	}
	res.Checkpoint = outcome
	res.Valid = res.Valid && outcome.Consistent
	return res, nil
}

func checkCheckpoint(exportJSON []byte, publicKey string, raw []byte) (*checkpointOutcome, error) {
	var envelope tlog.Checkpoint
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Note != "" {
		raw = []byte(envelope.Note)
	}

	cp, err := tlog.OpenCheckpoint(raw, publicKey)
	if err != nil {
		return nil, err
	}

	var export tlog.Export
	if err := json.Unmarshal(exportJSON, &export); err != nil {
		return nil, fmt.Errorf("failed to parse exported log; %s; %w", err.Error(), common.ErrMalformedContent)
	}

	outcome := &checkpointOutcome{
		Size:     cp.Size,
		RootHash: cp.RootHash,
	}
	if cp.Size > uint64(len(export.Entries)) {
		return outcome, nil
	}

	root, err := tlog.RootHash(export.Entries[:cp.Size])
	if err != nil {
		return nil, err
	}
	outcome.ComputedRoot = fmt.Sprintf("%x", root)
	outcome.Consistent = outcome.ComputedRoot == cp.RootHash
	return outcome, nil
}
