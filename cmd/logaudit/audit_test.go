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
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store/providers/memory"
	"github.com/provideplatform/provenance/tlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog(t *testing.T, n int) (*tlog.Log, []byte) {
	ctx := context.Background()
	keys, err := tlog.GenerateKeys("provenance.test/audit")
	require.NoError(t, err)

	l, err := tlog.NewLog(ctx, memory.NewStore(), keys, "provenance.test/audit")
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		_, err := l.Append(ctx, common.SHA256(fmt.Sprintf("asset %d", i)), nil)
		require.NoError(t, err)
	}

	raw, err := l.ExportJSON(ctx)
	require.NoError(t, err)
	return l, raw
}

func TestAuditLog(t *testing.T) {
	l, raw := testLog(t, 4)

	res, err := auditLog(raw, l.PublicKey(), nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 0, res.InvalidEntries)
	assert.Nil(t, res.Checkpoint)
}

func TestAuditLogTampered(t *testing.T) {
	l, raw := testLog(t, 4)

	var export tlog.Export
	require.NoError(t, json.Unmarshal(raw, &export))
	export.Entries[2].TimestampMs++
	tampered, err := json.Marshal(&export)
	require.NoError(t, err)

	res, err := auditLog(tampered, l.PublicKey(), nil)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.InvalidEntries > 0)
}

func TestAuditLogCheckpoint(t *testing.T) {
	ctx := context.Background()
	l, _ := testLog(t, 3)

	cp, err := l.Checkpoint(ctx)
	require.NoError(t, err)
	envelope, err := json.Marshal(cp)
	require.NoError(t, err)

	_, err = l.Append(ctx, common.SHA256("asset 3"), nil)
	require.NoError(t, err)
	raw, err := l.ExportJSON(ctx)
	require.NoError(t, err)

	res, err := auditLog(raw, l.PublicKey(), envelope)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NotNil(t, res.Checkpoint)
	assert.True(t, res.Checkpoint.Consistent)
	assert.Equal(t, uint64(3), res.Checkpoint.Size)

	res, err = auditLog(raw, l.PublicKey(), []byte(cp.Note))
	require.NoError(t, err)
	assert.True(t, res.Checkpoint.Consistent)
}

func TestAuditLogForeignCheckpoint(t *testing.T) {
	ctx := context.Background()
	l, raw := testLog(t, 2)
	other, _ := testLog(t, 2)

	cp, err := other.Checkpoint(ctx)
	require.NoError(t, err)

	_, err = auditLog(raw, l.PublicKey(), []byte(cp.Note))
	assert.Error(t, err)
}
