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

package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	"github.com/provideplatform/provenance/proof"
	"github.com/provideplatform/provenance/store"
	"github.com/provideplatform/provenance/store/providers"
)

// Manager persists chains; appends to the same chain are serialized
type Manager struct {
	mutex    sync.Mutex
	locks    map[string]*chainLock
	store    providers.Store
	verifier *proof.Verifier
}

// chainLock is held in the lock table only while some append references it
type chainLock struct {
	sync.Mutex
	refs int
}

// NewManager returns a chain manager backed by the given store
func NewManager(s providers.Store, verifier *proof.Verifier) *Manager {
	return &Manager{
		locks:    map[string]*chainLock{},
		store:    s,
		verifier: verifier,
	}
}

func (m *Manager) lock(id string) func() {
	m.mutex.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &chainLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mutex.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		m.mutex.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mutex.Unlock()
	}
}

// Start persists a new chain rooted at the original commitment
func (m *Manager) Start(ctx context.Context, original *commitment.Commitment) (*Chain, error) {
	c, err := Start(original)
	if err != nil {
		return nil, err
	}

	if err := store.InsertJSON(ctx, m.store, store.NamespaceChains, c.ID, c); err != nil {
		return nil, err
	}

	common.Log.Debugf("started proof chain %s at commitment %s", c.ID, original.RootHash)
	return c, nil
}

// Get resolves a persisted chain
func (m *Manager) Get(ctx context.Context, id string) (*Chain, error) {
	var c Chain
	if err := store.GetJSON(ctx, m.store, store.NamespaceChains, id, &c); err != nil {
		return nil, err
	}
	if c.Proofs == nil {
		c.Proofs = make([]*proof.Proof, 0)
	}
	return &c, nil
}

// Append extends the persisted chain with the proof
func (m *Manager) Append(ctx context.Context, id string, p *proof.Proof) (*Chain, error) {
	return m.append(ctx, id, -1, p)
}

// AppendAt extends the persisted chain only if it currently holds exactly
// index proofs; concurrent writers racing for the same position see one winner
func (m *Manager) AppendAt(ctx context.Context, id string, index int, p *proof.Proof) (*Chain, error) {
	if index < 0 {
		return nil, fmt.Errorf("invalid chain position %d; %w", index, common.ErrMalformedContent)
	}
	return m.append(ctx, id, index, p)
}

func (m *Manager) append(ctx context.Context, id string, index int, p *proof.Proof) (*Chain, error) {
	unlock := m.lock(id)
	defer unlock()

	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if index >= 0 && index != len(c.Proofs) {
		metrics.ChainAppends.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("chain %s holds %d proofs; cannot append at %d; %w", id, len(c.Proofs), index, common.ErrConflict)
	}

	if err := Append(c, p); err != nil {
		metrics.ChainAppends.WithLabelValues("rejected").Inc()
		common.Log.Debugf("rejected append to proof chain %s; %s", id, err.Error())
		return nil, err
	}

	if err := store.PutJSON(ctx, m.store, store.NamespaceChains, c.ID, c); err != nil {
		return nil, err
	}

	metrics.ChainAppends.WithLabelValues("appended").Inc()
	return c, nil
}

// Verify resolves and verifies the persisted chain
func (m *Manager) Verify(ctx context.Context, id string) (*Report, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := VerifyChain(ctx, m.verifier, c)
	if !report.Valid {
		common.Log.Debugf("proof chain %s failed verification at step %d", id, report.FirstInvalid)
	}
	return report, nil
}

// Compact resolves and summarizes the persisted chain
func (m *Manager) Compact(ctx context.Context, id string) (*Summary, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Compact(c)
}
