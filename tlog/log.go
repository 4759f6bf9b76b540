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
	"strings"
	"sync"
	"time"

	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/metrics"
	"github.com/provideplatform/provenance/store"
	"github.com/provideplatform/provenance/store/providers"
)

// NatsLogEntryAppendedSubject is published for every appended entry
const NatsLogEntryAppendedSubject = "provenance.log.appended"

// Log is the append-only transparency log; appends are single-writer and
// readers observe whole entries only
type Log struct {
	mutex sync.RWMutex
	size  uint64
	tail  *Entry

	keys     *Keys
	notifier common.Notifier
	now      func() time.Time
	origin   string
	store    providers.Store
}

// Verification is the outcome of a content hash lookup
type Verification struct {
	Verified       bool   `json:"verified"`
	SignatureValid bool   `json:"signature_valid"`
	Entry          *Entry `json:"entry,omitempty"`
}

// Export is the published form of the log
type Export struct {
	Origin    string   `json:"origin"`
	PublicKey string   `json:"public_key"`
	Entries   []*Entry `json:"entries"`
}

// contentRef locates the entry recording a content hash
type contentRef struct {
	LogIndex uint64 `json:"log_index"`
}

// Option configures a Log
type Option func(*Log)

// WithClock overrides the clock used for entry timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithNotifier sets the notifier informed of appended entries
func WithNotifier(notifier common.Notifier) Option {
	return func(l *Log) {
		l.notifier = notifier
	}
}

// entryKey orders entries lexically by index
func entryKey(index uint64) string {
	return fmt.Sprintf("%020d", index)
}

// NewLog opens the log persisted in s and resumes from its tail
func NewLog(ctx context.Context, s providers.Store, keys *Keys, origin string, opts ...Option) (*Log, error) {
	if keys == nil {
		return nil, fmt.Errorf("log signing keys required")
	}

	l := &Log{
		keys:     keys,
		notifier: &common.NoopNotifier{},
		now:      time.Now,
		origin:   origin,
		store:    s,
	}
	for _, opt := range opts {
		opt(l)
	}

	records, err := s.List(ctx, store.NamespaceLogEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to load transparency log; %s", err.Error())
	}

	if len(records) > 0 {
		var tail Entry
		if err := json.Unmarshal(records[len(records)-1], &tail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transparency log tail; %s", err.Error())
		}
		if tail.LogIndex != uint64(len(records)-1) {
			return nil, fmt.Errorf("transparency log tail index %d inconsistent with %d persisted entries", tail.LogIndex, len(records))
		}
		l.tail = &tail
		l.size = uint64(len(records))
	}

	metrics.LogSize.Set(float64(l.size))
	common.Log.Debugf("opened transparency log %s with %d entries; public key: %s", origin, l.size, keys.PublicKey)
	return l, nil
}

// Origin returns the log origin line used in checkpoints
func (l *Log) Origin() string {
	return l.origin
}

// PublicKey returns the note verifier key of the log
func (l *Log) PublicKey() string {
	return l.keys.PublicKey
}

// Size returns the number of entries
func (l *Log) Size() uint64 {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.size
}

// Append timestamps the content hash as the next log entry
func (l *Log) Append(ctx context.Context, contentHash string, extra map[string]string) (*Entry, error) {
	contentHash = strings.ToLower(strings.TrimSpace(contentHash))
	if !common.IsHexDigest(contentHash) {
		return nil, fmt.Errorf("content hash must be a hex-encoded 32-byte digest; %w", common.ErrMalformedContent)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	previousHash := common.ZeroHash
	if l.tail != nil {
		previousHash = l.tail.EntryHash
	}

	entry := &Entry{
		LogIndex:     l.size,
		ContentHash:  contentHash,
		TimestampMs:  common.Milliseconds(l.now()),
		Extra:        extra,
		PreviousHash: previousHash,
	}
	if err := entry.sign(l.keys.Signer); err != nil {
		return nil, err
	}

	if err := store.InsertJSON(ctx, l.store, store.NamespaceLogEntries, entryKey(entry.LogIndex), entry); err != nil {
		return nil, fmt.Errorf("failed to persist log entry %d; %w", entry.LogIndex, err)
	}

	l.tail = entry
	l.size++
	metrics.LogSize.Set(float64(l.size))

	// the first entry for a content hash is the one lookups resolve
	err := store.InsertJSON(ctx, l.store, store.NamespaceLogContent, contentHash, &contentRef{LogIndex: entry.LogIndex})
	if err != nil && !errors.Is(err, common.ErrConflict) {
		common.Log.Warningf("failed to index content hash %s at log entry %d; %s", contentHash, entry.LogIndex, err.Error())
	}

	if err := l.notifier.Notify(NatsLogEntryAppendedSubject, entry); err != nil {
		common.Log.Warningf("failed to dispatch appended log entry %d; %s", entry.LogIndex, err.Error())
	}

	common.Log.Debugf("appended log entry %d for content hash %s", entry.LogIndex, contentHash)
	appended := *entry
	return &appended, nil
}

// Get resolves the entry at index
func (l *Log) Get(ctx context.Context, index uint64) (*Entry, error) {
	if index >= l.Size() {
		return nil, fmt.Errorf("log entry %d not found; %w", index, common.ErrNotFound)
	}

	var entry Entry
	if err := store.GetJSON(ctx, l.store, store.NamespaceLogEntries, entryKey(index), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Lookup resolves the first entry recording the content hash
func (l *Log) Lookup(ctx context.Context, contentHash string) (*Entry, error) {
	contentHash = strings.ToLower(strings.TrimSpace(contentHash))

	var ref contentRef
	err := store.GetJSON(ctx, l.store, store.NamespaceLogContent, contentHash, &ref)
	if err == nil {
		return l.Get(ctx, ref.LogIndex)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	// entries whose content index write failed are still found by scanning
	entries, err := l.Export(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.ContentHash == contentHash {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("no log entry for content hash %s; %w", contentHash, common.ErrNotFound)
}

// Verify looks up the content hash and checks the entry's signature and
// entry hash; earlier entries are not recomputed
func (l *Log) Verify(ctx context.Context, contentHash string) (*Verification, error) {
	entry, err := l.Lookup(ctx, contentHash)
	if errors.Is(err, common.ErrNotFound) {
		return &Verification{}, nil
	}
	if err != nil {
		return nil, err
	}

	v := &Verification{
		SignatureValid: entry.VerifySignature(l.keys.Verifier),
		Entry:          entry,
	}
	v.Verified = v.SignatureValid && entry.EntryHash == entry.ComputeEntryHash()
	return v, nil
}

// Export returns every entry in index order as of a single point in time
func (l *Log) Export(ctx context.Context) ([]*Entry, error) {
	l.mutex.RLock()
	size := l.size
	records, err := l.store.List(ctx, store.NamespaceLogEntries)
	l.mutex.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("failed to export transparency log; %s", err.Error())
	}
	if uint64(len(records)) < size {
		return nil, fmt.Errorf("transparency log store holds %d of %d entries", len(records), size)
	}

	entries := make([]*Entry, 0, size)
	for _, raw := range records[:size] {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry; %s", err.Error())
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// ExportJSON returns the published form of the log; the encoding is
// byte-identical across calls while nothing is appended
func (l *Log) ExportJSON(ctx context.Context) ([]byte, error) {
	entries, err := l.Export(ctx)
	if err != nil {
		return nil, err
	}

	return json.Marshal(&Export{
		Origin:    l.origin,
		PublicKey: l.keys.PublicKey,
		Entries:   entries,
	})
}
