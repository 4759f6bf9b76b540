//go:build integration
// +build integration

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
	"errors"
	"fmt"
	"testing"
	"time"

	dbconf "github.com/kthomas/go-db-config"
	"github.com/provideplatform/provenance/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requires a migrated postgres database configured via the DATABASE_* environment
func TestDurableStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbconf.DatabaseConnection())
	namespace := fmt.Sprintf("test_%d", time.Now().UnixNano())

	_, err := s.Get(ctx, namespace, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	require.NoError(t, s.Insert(ctx, namespace, "a", []byte(`{"v":1}`)))
	require.NoError(t, s.Insert(ctx, namespace, "b", []byte(`{"v":2}`)))
	assert.True(t, errors.Is(s.Insert(ctx, namespace, "a", []byte(`{"v":3}`)), common.ErrConflict))

	require.NoError(t, s.Put(ctx, namespace, "a", []byte(`{"v":4}`)))

	vals, err := s.List(ctx, namespace)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, `{"v":4}`, string(vals[0]))
	assert.Equal(t, `{"v":2}`, string(vals[1]))
}
