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

package sqlite

import (
	"context"
	"fmt"
	"runtime"

	"github.com/provideplatform/provenance/common"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	UNIQUE (namespace, key)
);
`

// Store is a record store backed by a pooled sqlite database in WAL mode
type Store struct {
	path string
	pool *sqlitex.Pool
}

// Open opens (creating if necessary) the sqlite database at path
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("failed to open sqlite store; path required")
	}

	poolSize := runtime.NumCPU()
	if poolSize < 4 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store %s; %s", path, err.Error())
	}

	s := &Store{
		path: path,
		pool: pool,
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open sqlite store %s; %s", path, err.Error())
	}
	defer pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite store schema; %s", err.Error())
	}

	common.Log.Debugf("opened sqlite store: %s; pool size: %d", path, poolSize)
	return s, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("failed to apply %s; %s", pragma, err.Error())
		}
	}

	return nil
}

// Get returns the record
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var val []byte
	found := false
	err = sqlitex.Execute(conn, "SELECT value FROM records WHERE namespace = ? AND key = ?", &sqlitex.ExecOptions{
		Args: []interface{}{namespace, key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			val = []byte(stmt.ColumnText(0))
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s record %s; %s", namespace, key, err.Error())
	}

	if !found {
		return nil, fmt.Errorf("failed to resolve %s record %s; %w", namespace, key, common.ErrNotFound)
	}

	return val, nil
}

// Insert writes a new record
func (s *Store) Insert(ctx context.Context, namespace, key string, val []byte) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("failed to begin sqlite transaction; %s", err.Error())
	}
	defer endFn(&err)

	err = sqlitex.Execute(conn, "INSERT INTO records (namespace, key, value) VALUES (?, ?, ?) ON CONFLICT (namespace, key) DO NOTHING", &sqlitex.ExecOptions{
		Args: []interface{}{namespace, key, string(val)},
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s record %s; %s", namespace, key, err.Error())
	}

	if conn.Changes() == 0 {
		return fmt.Errorf("failed to insert %s record %s; %w", namespace, key, common.ErrConflict)
	}

	return nil
}

// Put writes the record, replacing any prior value
func (s *Store) Put(ctx context.Context, namespace, key string, val []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "INSERT INTO records (namespace, key, value) VALUES (?, ?, ?) ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value", &sqlitex.ExecOptions{
		Args: []interface{}{namespace, key, string(val)},
	})
	if err != nil {
		return fmt.Errorf("failed to write %s record %s; %s", namespace, key, err.Error())
	}

	return nil
}

// List returns every record in the namespace in insertion order
func (s *Store) List(ctx context.Context, namespace string) ([][]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	vals := make([][]byte, 0)
	err = sqlitex.Execute(conn, "SELECT value FROM records WHERE namespace = ? ORDER BY id", &sqlitex.ExecOptions{
		Args: []interface{}{namespace},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			vals = append(vals, []byte(stmt.ColumnText(0)))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records; %s", namespace, err.Error())
	}

	return vals, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite store %s; %s", s.path, err.Error())
	}
	return nil
}
