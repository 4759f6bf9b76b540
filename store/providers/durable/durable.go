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

package durable

import (
	"context"
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/provideplatform/provenance/common"
)

// Store is a record store backed by the postgres records table
type Store struct {
	db *gorm.DB
}

// NewStore returns a store using the given db connection
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db: db,
	}
}

// Get returns the record
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	rows, err := s.db.Raw("SELECT value FROM records WHERE namespace = ? AND key = ?", namespace, key).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s record %s; %s", namespace, key, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var val []byte
		err = rows.Scan(&val)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s record %s; %s", namespace, key, err.Error())
		}
		return val, nil
	}

	return nil, fmt.Errorf("failed to resolve %s record %s; %w", namespace, key, common.ErrNotFound)
}

// Insert writes a new record
func (s *Store) Insert(ctx context.Context, namespace, key string, val []byte) error {
	result := s.db.Exec("INSERT INTO records (namespace, key, value) VALUES (?, ?, ?) ON CONFLICT (namespace, key) DO NOTHING", namespace, key, val)
	if result.Error != nil {
		return fmt.Errorf("failed to insert %s record %s; %s", namespace, key, result.Error.Error())
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to insert %s record %s; %w", namespace, key, common.ErrConflict)
	}

	return nil
}

// Put writes the record, replacing any prior value
func (s *Store) Put(ctx context.Context, namespace, key string, val []byte) error {
	result := s.db.Exec("INSERT INTO records (namespace, key, value) VALUES (?, ?, ?) ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()", namespace, key, val)
	if result.Error != nil {
		return fmt.Errorf("failed to write %s record %s; %s", namespace, key, result.Error.Error())
	}

	return nil
}

// List returns every record in the namespace in insertion order
func (s *Store) List(ctx context.Context, namespace string) ([][]byte, error) {
	rows, err := s.db.Raw("SELECT value FROM records WHERE namespace = ? ORDER BY id", namespace).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records; %s", namespace, err.Error())
	}
	defer rows.Close()

	vals := make([][]byte, 0)
	for rows.Next() {
		var val []byte
		err = rows.Scan(&val)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s records; %s", namespace, err.Error())
		}
		vals = append(vals, val)
	}

	return vals, nil
}

// Close is a no-op; the shared connection is owned by go-db-config
func (s *Store) Close() error {
	return nil
}
