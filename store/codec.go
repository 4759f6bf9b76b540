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
	"context"
	"encoding/json"
	"fmt"

	"github.com/provideplatform/provenance/store/providers"
)

// GetJSON resolves the record and unmarshals it into v
func GetJSON(ctx context.Context, s providers.Store, namespace, key string, v interface{}) error {
	raw, err := s.Get(ctx, namespace, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s record %s; %s", namespace, key, err.Error())
	}

	return nil
}

// InsertJSON marshals v and inserts it as a new record
func InsertJSON(ctx context.Context, s providers.Store, namespace, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record %s; %s", namespace, key, err.Error())
	}
	return s.Insert(ctx, namespace, key, raw)
}

// PutJSON marshals v and writes it, replacing any prior value
func PutJSON(ctx context.Context, s providers.Store, namespace, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record %s; %s", namespace, key, err.Error())
	}
	return s.Put(ctx, namespace, key, raw)
}
