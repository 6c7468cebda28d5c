// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package websocket

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/logging"
	"github.com/sarmadmakhdoom/meet-tracker-sub000/internal/models"
)

// Relay subscribes to the tracker's lifecycle topic and forwards events
// to the hub. It implements suture.Service; a failed subscription is
// resolved by the supervisor restarting the relay.
type Relay struct {
	hub        *Hub
	subscriber message.Subscriber
}

// NewRelay wires a relay between a subscriber and the hub.
func NewRelay(hub *Hub, subscriber message.Subscriber) *Relay {
	return &Relay{hub: hub, subscriber: subscriber}
}

// Serve consumes lifecycle events until the context is canceled.
func (r *Relay) Serve(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, models.TopicSessionLifecycle)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			var evt models.SessionEvent
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				logging.Warn().Err(err).Msg("malformed lifecycle event on bus")
				msg.Ack()
				continue
			}
			r.hub.Broadcast(Message{Type: MessageTypeSessionEvent, Data: evt})
			msg.Ack()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (r *Relay) String() string {
	return "websocket-relay"
}
