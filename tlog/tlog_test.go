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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store/providers"
	"github.com/provideplatform/provenance/store/providers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	now := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Millisecond * 250)
		return now
	}
}

func testLog(t *testing.T, s providers.Store, keys *Keys) *Log {
	if keys == nil {
		var err error
		keys, err = GenerateKeys("provenance.test/log")
		require.NoError(t, err)
	}
	l, err := NewLog(context.Background(), s, keys, "provenance.test/log", WithClock(fixedClock()))
	require.NoError(t, err)
	return l
}

func contentHash(i int) string {
	return common.SHA256(fmt.Sprintf("content %d", i))
}

func appendN(t *testing.T, l *Log, n int) []*Entry {
	entries := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		entry, err := l.Append(context.Background(), contentHash(i), map[string]string{"source": "test"})
		require.NoError(t, err)
		entries = append(entries, entry)
	}
	return entries
}

func flipHex(h string) string {
	b := []byte(h)
	if b[0] == '0' {
		b[0] = '1'
	} else {
		b[0] = '0'
	}
	return string(b)
}

func TestAppendAndVerify(t *testing.T) {
	ctx := context.Background()
	l := testLog(t, memory.NewStore(), nil)

	entries := appendN(t, l, 3)
	for i, entry := range entries {
		assert.Equal(t, uint64(i), entry.LogIndex)
		assert.True(t, common.IsHexDigest(entry.EntryHash))
		assert.Equal(t, entry.ComputeEntryHash(), entry.EntryHash)
	}
	assert.Equal(t, common.ZeroHash, entries[0].PreviousHash)
	assert.Equal(t, entries[0].EntryHash, entries[1].PreviousHash)
	assert.Equal(t, entries[1].EntryHash, entries[2].PreviousHash)
	assert.Equal(t, uint64(3), l.Size())

	v, err := l.Verify(ctx, entries[1].ContentHash)
	require.NoError(t, err)
	assert.True(t, v.SignatureValid)
	assert.True(t, v.Verified)
	assert.Equal(t, uint64(1), v.Entry.LogIndex)

	v, err = l.Verify(ctx, common.SHA256("never appended"))
	require.NoError(t, err)
	assert.False(t, v.Verified)
	assert.Nil(t, v.Entry)
}

func TestAppendRejectsMalformedHash(t *testing.T) {
	l := testLog(t, memory.NewStore(), nil)

	_, err := l.Append(context.Background(), "not-a-digest", nil)
	assert.True(t, errors.Is(err, common.ErrMalformedContent))
	assert.Equal(t, uint64(0), l.Size())

	// uppercase digests are normalized
	entry, err := l.Append(context.Background(), "ABCDEF"+contentHash(0)[6:], nil)
	require.NoError(t, err)
	assert.Equal(t, "abcdef"+contentHash(0)[6:], entry.ContentHash)
}

func TestAuditTamperEvidence(t *testing.T) {
	ctx := context.Background()
	l := testLog(t, memory.NewStore(), nil)
	appendN(t, l, 5)

	raw, err := l.ExportJSON(ctx)
	require.NoError(t, err)

	report, err := AuditJSON(raw, l.PublicKey())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, -1, report.FirstChainBreak)

	var export Export
	require.NoError(t, json.Unmarshal(raw, &export))
	export.Entries[1].EntryHash = flipHex(export.Entries[1].EntryHash)

	report, err = Audit(export.Entries, l.PublicKey())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, 2, report.FirstChainBreak)

	for i, audit := range report.Entries {
		assert.True(t, audit.SignatureValid, "entry %d", i)
		assert.Equal(t, i != 1, audit.EntryHashValid, "entry %d", i)
		assert.Equal(t, i <= 1, audit.ChainValid, "entry %d", i)
	}
}

func TestAuditRejectsForeignKey(t *testing.T) {
	l := testLog(t, memory.NewStore(), nil)
	entries := appendN(t, l, 2)

	other, err := GenerateKeys("provenance.test/other")
	require.NoError(t, err)

	report, err := Audit(entries, other.PublicKey)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	for _, audit := range report.Entries {
		assert.False(t, audit.SignatureValid)
		assert.True(t, audit.ChainValid)
	}

	_, err = Audit(entries, "garbage")
	assert.True(t, errors.Is(err, common.ErrSignatureInvalid))
}

func TestExportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := testLog(t, memory.NewStore(), nil)
	appendN(t, l, 4)

	first, err := l.ExportJSON(ctx)
	require.NoError(t, err)
	second, err := l.ExportJSON(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	appendN(t, l, 1)
	third, err := l.ExportJSON(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestLogResumesFromStore(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	keys, err := GenerateKeys("provenance.test/log")
	require.NoError(t, err)

	entries := appendN(t, testLog(t, s, keys), 3)

	resumed := testLog(t, s, keys)
	assert.Equal(t, uint64(3), resumed.Size())

	entry, err := resumed.Append(ctx, contentHash(3), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), entry.LogIndex)
	assert.Equal(t, entries[2].EntryHash, entry.PreviousHash)

	exported, err := resumed.Export(ctx)
	require.NoError(t, err)
	report, err := Audit(exported, keys.PublicKey)
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestCheckpointAndInclusion(t *testing.T) {
	ctx := context.Background()
	l := testLog(t, memory.NewStore(), nil)
	appendN(t, l, 7)

	cp, err := l.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cp.Size)

	opened, err := OpenCheckpoint([]byte(cp.Note), l.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, cp.RootHash, opened.RootHash)
	assert.Equal(t, "provenance.test/log", opened.Origin)

	for i := uint64(0); i < 7; i++ {
		p, err := l.InclusionProof(ctx, i, 0)
		require.NoError(t, err)
		assert.NoError(t, VerifyInclusion(p, cp.RootHash), "entry %d", i)
	}

	p, err := l.InclusionProof(ctx, 2, 0)
	require.NoError(t, err)
	p.LeafHash = flipHex(p.LeafHash)
	assert.True(t, errors.Is(VerifyInclusion(p, cp.RootHash), common.ErrHashMismatch))

	_, err = l.InclusionProof(ctx, 7, 0)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	other, err := GenerateKeys("provenance.test/log")
	require.NoError(t, err)
	_, err = OpenCheckpoint([]byte(cp.Note), other.PublicKey)
	assert.True(t, errors.Is(err, common.ErrSignatureInvalid))
}

func TestLoadOrCreateSigner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys", "log.key")

	keys, err := LoadOrCreateSigner(path, "provenance.test/log", "")
	require.NoError(t, err)

	loaded, err := LoadOrCreateSigner(path, "provenance.test/log", "")
	require.NoError(t, err)
	assert.Equal(t, keys.PublicKey, loaded.PublicKey)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadOrCreateSignerEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.key")

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	keys, err := LoadOrCreateSigner(path, "provenance.test/log", identity.String())
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, json.Valid(raw))

	loaded, err := LoadOrCreateSigner(path, "provenance.test/log", identity.String())
	require.NoError(t, err)
	assert.Equal(t, keys.PublicKey, loaded.PublicKey)

	wrong, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	_, err = LoadOrCreateSigner(path, "provenance.test/log", wrong.String())
	assert.Error(t, err)
}

func TestHandleAppendRequest(t *testing.T) {
	ctx := context.Background()
	l := testLog(t, memory.NewStore(), nil)

	entry, err := handleAppendRequest(ctx, l, []byte(fmt.Sprintf(`{"content_hash":"%s","extra":{"camera":"front"}}`, contentHash(9))))
	require.NoError(t, err)
	assert.Equal(t, "front", entry.Extra["camera"])

	_, err = handleAppendRequest(ctx, l, []byte("{"))
	assert.True(t, errors.Is(err, common.ErrMalformedContent))
}

func TestConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	l := testLog(t, memory.NewStore(), nil)

	const writers = 16
	const perWriter = 8

	var wg sync.WaitGroup
	var mutex sync.Mutex
	indices := map[uint64]bool{}

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				entry, err := l.Append(ctx, contentHash(w*perWriter+i), nil)
				if !assert.NoError(t, err) {
					return
				}
				mutex.Lock()
				assert.False(t, indices[entry.LogIndex], "index %d assigned twice", entry.LogIndex)
				indices[entry.LogIndex] = true
				mutex.Unlock()
			}
		}(w)
	}
	wg.Wait()

	total := writers * perWriter
	assert.Len(t, indices, total)
	assert.Equal(t, uint64(total), l.Size())

	entries, err := l.Export(ctx)
	require.NoError(t, err)
	require.Len(t, entries, total)

	for i, entry := range entries {
		assert.Equal(t, uint64(i), entry.LogIndex)
		if i == 0 {
			assert.Equal(t, common.ZeroHash, entry.PreviousHash)
		} else {
			assert.Equal(t, entries[i-1].EntryHash, entry.PreviousHash)
		}
	}

	report, err := Audit(entries, l.PublicKey())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, total, report.Size)

	for i := 0; i < total; i++ {
		v, err := l.Verify(ctx, contentHash(i))
		require.NoError(t, err)
		assert.True(t, v.Verified)
		assert.True(t, v.SignatureValid)
	}
}
