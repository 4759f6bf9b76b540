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

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/provideplatform/provenance/common"
)

type record struct {
	key string
	val []byte
}

// Store is a process-local record store
type Store struct {
	mutex      sync.RWMutex
	namespaces map[string]map[string]int
	records    map[string][]*record
}

// NewStore initializes an empty in-memory store
func NewStore() *Store {
	return &Store{
		namespaces: map[string]map[string]int{},
		records:    map[string][]*record{},
	}
}

// Get returns a copy of the stored record
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	idx, ok := s.namespaces[namespace][key]
	if !ok {
		return nil, fmt.Errorf("failed to resolve %s record %s; %w", namespace, key, common.ErrNotFound)
	}

	return clone(s.records[namespace][idx].val), nil
}

// Insert writes a new record
func (s *Store) Insert(ctx context.Context, namespace, key string, val []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.namespaces[namespace][key]; ok {
		return fmt.Errorf("failed to insert %s record %s; %w", namespace, key, common.ErrConflict)
	}

	s.append(namespace, key, val)
	return nil
}

// Put writes the record, replacing any prior value in place
func (s *Store) Put(ctx context.Context, namespace, key string, val []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if idx, ok := s.namespaces[namespace][key]; ok {
		s.records[namespace][idx].val = clone(val)
		return nil
	}

	s.append(namespace, key, val)
	return nil
}

// List returns copies of all records in the namespace in insertion order
func (s *Store) List(ctx context.Context, namespace string) ([][]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	vals := make([][]byte, 0, len(s.records[namespace]))
	for _, rec := range s.records[namespace] {
		vals = append(vals, clone(rec.val))
	}

	return vals, nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func (s *Store) append(namespace, key string, val []byte) {
	if s.namespaces[namespace] == nil {
		s.namespaces[namespace] = map[string]int{}
	}

	s.namespaces[namespace][key] = len(s.records[namespace])
	s.records[namespace] = append(s.records[namespace], &record{
		key: key,
		val: clone(val),
	})
}

func clone(val []byte) []byte {
	if val == nil {
		return nil
	}
	c := make([]byte, len(val))
	copy(c, val)
	return c
}
