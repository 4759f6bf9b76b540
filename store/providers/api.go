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

package providers

import (
	"context"
)

// StoreProviderMemory is the in-memory storage provider
const StoreProviderMemory = "memory"

// StoreProviderSQLite is the embedded sqlite storage provider
const StoreProviderSQLite = "sqlite"

// StoreProviderPostgres is the durable postgres storage provider
const StoreProviderPostgres = "postgres"

// Store provides a common interface to the record storage facilities; records
// are opaque json documents addressed by namespace and key
type Store interface {
	// Get returns the record or an error wrapping common.ErrNotFound
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Insert writes a new record; it fails with common.ErrConflict when the key exists
	Insert(ctx context.Context, namespace, key string, val []byte) error

	// Put writes the record, replacing any prior value
	Put(ctx context.Context, namespace, key string, val []byte) error

	// List returns every record in the namespace in insertion order
	List(ctx context.Context, namespace string) ([][]byte, error)

	Close() error
}
