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

package common

import (
	"encoding/json"
	"fmt"
	"sync"

	natsutil "github.com/kthomas/go-natsutil"
)

// NatsStream is the jetstream stream carrying provenance notifications
const NatsStream = "provenance"

// Notifier broadcasts provenance events to interested subscribers
type Notifier interface {
	Notify(subject string, payload interface{}) error
}

// NewNotifier returns the nats notifier when dispatch is enabled, otherwise
// a notifier which discards every event
func NewNotifier(cfg *Config) Notifier {
	if cfg == nil || !cfg.DispatchNotifications {
		return &NoopNotifier{}
	}
	return &NatsNotifier{}
}

// NatsNotifier publishes events to nats jetstream
type NatsNotifier struct {
	once sync.Once
}

func (n *NatsNotifier) require() {
	n.once.Do(func() {
		natsutil.EstablishSharedNatsConnection(nil)
		natsutil.NatsCreateStream(NatsStream, []string{
			fmt.Sprintf("%s.>", NatsStream),
		})
	})
}

// Notify marshals the payload and publishes it on the given subject
func (n *NatsNotifier) Notify(subject string, payload interface{}) error {
	if subject == "" {
		return fmt.Errorf("failed to dispatch notification; empty subject")
	}

	n.require()

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload; %s", err.Error())
	}

	_, err = natsutil.NatsJetstreamPublish(subject, raw)
	if err != nil {
		Log.Warningf("failed to dispatch notification on subject %s; %s", subject, err.Error())
		return err
	}

	Log.Debugf("dispatched %d-byte notification on subject: %s", len(raw), subject)
	return nil
}

// NoopNotifier drops every event
type NoopNotifier struct{}

// Notify is a no-op
func (n *NoopNotifier) Notify(subject string, payload interface{}) error {
	return nil
}
