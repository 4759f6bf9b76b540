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

package store

import (
	"fmt"
	"strings"

	dbconf "github.com/kthomas/go-db-config"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/store/providers"
	"github.com/provideplatform/provenance/store/providers/durable"
	"github.com/provideplatform/provenance/store/providers/memory"
	"github.com/provideplatform/provenance/store/providers/sqlite"
)

// Record namespaces
const (
	NamespaceAttestations = "attestations"
	NamespaceChains       = "chains"
	NamespaceCommitments  = "commitments"
	NamespaceLogEntries   = "log_entries"
	NamespaceLogContent   = "log_content"
	NamespaceProofs       = "proofs"
	NamespaceRegionProofs = "region_proofs"
	NamespaceZKPKeys      = "zkp_keys"
)

// Open initializes the store provider named in the configuration
func Open(cfg *common.Config) (providers.Store, error) {
	provider := providers.StoreProviderMemory
	if cfg != nil && cfg.StoreProvider != "" {
		provider = strings.ToLower(cfg.StoreProvider)
	}

	switch provider {
	case providers.StoreProviderMemory:
		common.Log.Debug("initialized in-memory store provider")
		return memory.NewStore(), nil
	case providers.StoreProviderSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case providers.StoreProviderPostgres:
		return durable.NewStore(dbconf.DatabaseConnection()), nil
	default:
		return nil, fmt.Errorf("failed to initialize store provider; unknown provider: %s", provider)
	}
}
