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
	"sync"
	"time"

	natsutil "github.com/kthomas/go-natsutil"
	"github.com/nats-io/nats.go"
	"github.com/provideplatform/provenance/common"
)

const natsLogAppendPendingSubject = "provenance.log.append.pending"
const natsLogAppendFailedSubject = "provenance.log.append.failed"
const natsLogAppendMaxInFlight = 64
const logAppendAckWait = time.Minute * 1
const logAppendMaxDeliveries = 5

// appendRequest is the payload of an asynchronous append
type appendRequest struct {
	ContentHash string            `json:"content_hash"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// RequireConsumer subscribes the log to asynchronous append requests
func RequireConsumer(l *Log, wg *sync.WaitGroup) {
	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(common.NatsStream, []string{
		fmt.Sprintf("%s.>", common.NatsStream),
	})

	handler := func(msg *nats.Msg) {
		consumeLogAppendMsg(l, msg)
	}

	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			logAppendAckWait,
			natsLogAppendPendingSubject,
			natsLogAppendPendingSubject,
			natsLogAppendPendingSubject,
			handler,
			logAppendAckWait,
			natsLogAppendMaxInFlight,
			logAppendMaxDeliveries,
			nil,
		)
	}

	common.Log.Debugf("subscribed transparency log %s to subject: %s", l.Origin(), natsLogAppendPendingSubject)
}

func consumeLogAppendMsg(l *Log, msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during log append; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS log append message on subject: %s", len(msg.Data), msg.Subject)

	entry, err := handleAppendRequest(context.Background(), l, msg.Data)
	if err != nil {
		common.Log.Warningf("failed to append content hash to log; %s", err.Error())
		if errors.Is(err, common.ErrMalformedContent) {
			// redelivery cannot fix a malformed request
			natsutil.NatsJetstreamPublish(natsLogAppendFailedSubject, msg.Data)
			msg.Ack()
			return
		}
		msg.Nak()
		return
	}

	common.Log.Debugf("asynchronously appended log entry %d", entry.LogIndex)
	msg.Ack()
}

func handleAppendRequest(ctx context.Context, l *Log, raw []byte) (*Entry, error) {
	var req appendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log append message; %s; %w", err.Error(), common.ErrMalformedContent)
	}
	return l.Append(ctx, req.ContentHash, req.Extra)
}
