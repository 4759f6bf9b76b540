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
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/provideplatform/provenance/common"
	"github.com/transparency-dev/merkle/compact"
	"github.com/transparency-dev/merkle/proof"
	"github.com/transparency-dev/merkle/rfc6962"
	"golang.org/x/mod/sumdb/note"
)

var hasher = rfc6962.DefaultHasher

// Checkpoint commits to the first Size entries of the log
type Checkpoint struct {
	Origin   string `json:"origin"`
	Size     uint64 `json:"size"`
	RootHash string `json:"root_hash"`
	Note     string `json:"note"`
}

// InclusionProof proves an entry is among the first Size entries
type InclusionProof struct {
	LogIndex uint64   `json:"log_index"`
	Size     uint64   `json:"size"`
	LeafHash string   `json:"leaf_hash"`
	Hashes   []string `json:"hashes"`
}

// LeafHash returns the rfc6962 leaf hash of the entry
func LeafHash(entry *Entry) ([]byte, error) {
	raw, err := hex.DecodeString(entry.EntryHash)
	if err != nil {
		return nil, fmt.Errorf("invalid entry hash for log entry %d; %w", entry.LogIndex, common.ErrMalformedContent)
	}
	return hasher.HashLeaf(raw), nil
}

func leafHashes(entries []*Entry) ([][]byte, error) {
	leaves := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		leaf, err := LeafHash(entry)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leaf)
	}
	return leaves, nil
}

// subtreeHash returns the root of the leaves in [begin, end)
func subtreeHash(leaves [][]byte, begin, end uint64) ([]byte, error) {
	if begin == end {
		return hasher.EmptyRoot(), nil
	}

	rf := compact.RangeFactory{Hash: hasher.HashChildren}
	cr := rf.NewEmptyRange(begin)
	for i := begin; i < end; i++ {
		if err := cr.Append(leaves[i], nil); err != nil {
			return nil, err
		}
	}
	return cr.GetRootHash(nil)
}

// RootHash returns the rfc6962 root over the entry hashes
func RootHash(entries []*Entry) ([]byte, error) {
	leaves, err := leafHashes(entries)
	if err != nil {
		return nil, err
	}
	return subtreeHash(leaves, 0, uint64(len(leaves)))
}

// Checkpoint returns a note signed by the log key over the current tree head
func (l *Log) Checkpoint(ctx context.Context) (*Checkpoint, error) {
	entries, err := l.Export(ctx)
	if err != nil {
		return nil, err
	}

	root, err := RootHash(entries)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("%s\n%d\n%s\n", l.origin, len(entries), base64.StdEncoding.EncodeToString(root))
	signed, err := note.Sign(&note.Note{Text: text}, l.keys.Signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign checkpoint; %s", err.Error())
	}

	return &Checkpoint{
		Origin:   l.origin,
		Size:     uint64(len(entries)),
		RootHash: hex.EncodeToString(root),
		Note:     string(signed),
	}, nil
}

// OpenCheckpoint verifies the signed checkpoint note against the public key
// and parses it
func OpenCheckpoint(signed []byte, publicKey string) (*Checkpoint, error) {
	verifier, err := NewVerifier(publicKey)
	if err != nil {
		return nil, err
	}

	n, err := note.Open(signed, note.VerifierList(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint; %s; %w", err.Error(), common.ErrSignatureInvalid)
	}

	lines := strings.Split(strings.TrimSuffix(n.Text, "\n"), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("checkpoint has %d lines; %w", len(lines), common.ErrMalformedContent)
	}

	size, err := strconv.ParseUint(lines[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint size %q; %w", lines[1], common.ErrMalformedContent)
	}
	root, err := base64.StdEncoding.DecodeString(lines[2])
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint root; %w", common.ErrMalformedContent)
	}

	return &Checkpoint{
		Origin:   lines[0],
		Size:     size,
		RootHash: hex.EncodeToString(root),
		Note:     string(signed),
	}, nil
}

// InclusionProof proves the entry at index is included in the tree of the
// given size; a zero size selects the current size
func (l *Log) InclusionProof(ctx context.Context, index, size uint64) (*InclusionProof, error) {
	entries, err := l.Export(ctx)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		size = uint64(len(entries))
	}
	if size > uint64(len(entries)) || index >= size {
		return nil, fmt.Errorf("no entry %d in tree of size %d; %w", index, size, common.ErrNotFound)
	}

	leaves, err := leafHashes(entries[:size])
	if err != nil {
		return nil, err
	}

	nodes, err := proof.Inclusion(index, size)
	if err != nil {
		return nil, err
	}

	hashes := make([][]byte, 0, len(nodes.IDs))
	for _, id := range nodes.IDs {
		begin := id.Index << id.Level
		end := (id.Index + 1) << id.Level
		h, err := subtreeHash(leaves, begin, end)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}

	path, err := nodes.Rehash(hashes, hasher.HashChildren)
	if err != nil {
		return nil, err
	}

	encoded := make([]string, 0, len(path))
	for _, h := range path {
		encoded = append(encoded, hex.EncodeToString(h))
	}

	return &InclusionProof{
		LogIndex: index,
		Size:     size,
		LeafHash: hex.EncodeToString(leaves[index]),
		Hashes:   encoded,
	}, nil
}

// VerifyInclusion checks the proof against a hex-encoded tree root
func VerifyInclusion(p *InclusionProof, rootHash string) error {
	leaf, err := hex.DecodeString(p.LeafHash)
	if err != nil {
		return fmt.Errorf("invalid leaf hash; %w", common.ErrMalformedContent)
	}
	root, err := hex.DecodeString(rootHash)
	if err != nil {
		return fmt.Errorf("invalid root hash; %w", common.ErrMalformedContent)
	}

	hashes := make([][]byte, 0, len(p.Hashes))
	for _, h := range p.Hashes {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return fmt.Errorf("invalid inclusion proof hash; %w", common.ErrMalformedContent)
		}
		hashes = append(hashes, raw)
	}

	if err := proof.VerifyInclusion(hasher, p.LogIndex, p.Size, leaf, hashes, root); err != nil {
		return fmt.Errorf("inclusion proof rejected; %s; %w", err.Error(), common.ErrHashMismatch)
	}
	return nil
}

