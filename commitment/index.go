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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/providenetwork/smt"
	"github.com/provideplatform/provenance/common"
)

// Index is a sparse merkle tree mapping commitment ids to their root hashes;
// publishing the index root lets a third party check a commitment was registered
type Index struct {
	mutex sync.Mutex
	tree  *smt.SparseMerkleTree
}

// MembershipProof shows a commitment root is present under an index root
type MembershipProof struct {
	ID        string          `json:"id"`
	RootHash  string          `json:"root_hash"`
	IndexRoot string          `json:"index_root"`
	Proof     json.RawMessage `json:"proof"`
}

// NewIndex initializes an empty index
func NewIndex() *Index {
	return &Index{
		tree: smt.NewSparseMerkleTree(smt.NewSimpleMap(), smt.NewSimpleMap(), sha256.New()),
	}
}

// Add registers the commitment and returns the new index root
func (idx *Index) Add(c *Commitment) (string, error) {
	key, val, err := indexKeyValue(c.ID, c.RootHash)
	if err != nil {
		return "", err
	}

	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	root, err := idx.tree.Update(key, val)
	if err != nil {
		return "", fmt.Errorf("failed to index commitment %s; %s", c.ID, err.Error())
	}

	common.Log.Debugf("indexed commitment %s; index root: %s", c.ID, hex.EncodeToString(root))
	return hex.EncodeToString(root), nil
}

// Contains returns true if the commitment id is registered with the given root hash
func (idx *Index) Contains(id, rootHash string) bool {
	key, val, err := indexKeyValue(id, rootHash)
	if err != nil {
		return false
	}

	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	stored, err := idx.tree.Get(key)
	if err != nil {
		return false
	}
	return hex.EncodeToString(stored) == hex.EncodeToString(val)
}

// Root returns the hex-encoded index root
func (idx *Index) Root() string {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()
	return hex.EncodeToString(idx.tree.Root())
}

// Prove returns a membership proof for the commitment under the current index root
func (idx *Index) Prove(c *Commitment) (*MembershipProof, error) {
	key, _, err := indexKeyValue(c.ID, c.RootHash)
	if err != nil {
		return nil, err
	}

	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	proof, err := idx.tree.Prove(key)
	if err != nil {
		return nil, fmt.Errorf("failed to prove commitment %s; %s", c.ID, err.Error())
	}

	raw, err := json.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal membership proof; %s", err.Error())
	}

	return &MembershipProof{
		ID:        c.ID,
		RootHash:  c.RootHash,
		IndexRoot: hex.EncodeToString(idx.tree.Root()),
		Proof:     raw,
	}, nil
}

// VerifyMembership checks the proof against its index root without access to the index
func VerifyMembership(p *MembershipProof) bool {
	if p == nil {
		return false
	}

	key, val, err := indexKeyValue(p.ID, p.RootHash)
	if err != nil {
		return false
	}

	root, err := hex.DecodeString(p.IndexRoot)
	if err != nil {
		return false
	}

	var proof smt.SparseMerkleProof
	if err := json.Unmarshal(p.Proof, &proof); err != nil {
		return false
	}

	return smt.VerifyProof(proof, root, key, val, sha256.New())
}

func indexKeyValue(id, rootHash string) ([]byte, []byte, error) {
	key, err := hex.DecodeString(id)
	if err != nil || len(key) == 0 {
		return nil, nil, fmt.Errorf("invalid commitment id %s; %w", id, common.ErrMalformedContent)
	}
	val, err := hex.DecodeString(rootHash)
	if err != nil || len(val) == 0 {
		return nil, nil, fmt.Errorf("invalid commitment root %s; %w", rootHash, common.ErrMalformedContent)
	}
	return key, val, nil
}
