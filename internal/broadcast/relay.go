package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher is what mutating code publishes events through.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event)
}

// Relay fans events out across API instances over a redis channel. A
// published event is delivered to the local broker immediately and
// rebroadcast to the brokers of every other instance subscribed to the
// same channel. Messages carrying the relay's own origin id are skipped
// on receipt so a local publish is not applied twice.
type Relay struct {
	logger   zerolog.Logger
	rdb      *redis.Client
	broker   *Broker
	channel  string
	originID string
}

func NewRelay(
	logger zerolog.Logger,
	rdb *redis.Client,
	broker *Broker,
	channel string,
) *Relay {
	return &Relay{
		logger:   logger,
		rdb:      rdb,
		broker:   broker,
		channel:  channel,
		originID: uuid.NewString(),
	}
}

// Publish delivers the event locally and relays it over redis. It is
// fire-and-forget: a relay failure is logged and never surfaced to the
// triggering request.
func (r *Relay) Publish(ctx context.Context, topic string, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	ev.Origin = r.originID

	r.broker.Publish(topic, ev)

	payload, err := json.Marshal(relayMessage{Topic: topic, Event: ev})
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("event_id", ev.ID).
			Msg("failed to marshal event")
		return
	}

	err = r.rdb.Publish(ctx, r.channel, payload).Err()
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("event_id", ev.ID).
			Msg("failed to relay event")
		return
	}
	r.logger.Debug().
		Str("event_id", ev.ID).
		Str("kind", ev.Kind).
		Msg("published event")
}

// Run subscribes to the redis channel and feeds received events into the
// local broker until the context is cancelled, reconnecting if the
// subscription channel closes. The subscription reconnects internally and
// its channel never closes on cancellation alone, so the receive loop
// selects on the context and closes the subscription itself.
func (r *Relay) Run(ctx context.Context) {
	for {
		sub := r.rdb.Subscribe(ctx, r.channel)
		ch := sub.Channel()

	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}

				var rm relayMessage
				err := json.Unmarshal([]byte(msg.Payload), &rm)
				if err != nil {
					r.logger.Error().
						Err(err).
						Msg("failed to parse relayed event")
					continue
				}
				if rm.Event.Origin == r.originID {
					continue
				}
				r.broker.Publish(rm.Topic, rm.Event)
			}
		}

		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}

		r.logger.Warn().Msg("relay subscription closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

type relayMessage struct {
	Topic string `json:"topic"`
	Event Event  `json:"event"`
}
