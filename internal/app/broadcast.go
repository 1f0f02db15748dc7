package app

import (
	"context"

	"taskboard/internal/broadcast"
	"taskboard/internal/config"
)

var (
	globalBroker *broadcast.Broker
	globalRelay  *broadcast.Relay

	relayCancel context.CancelFunc
	relayDone   chan struct{}
)

// MustStartBroadcastRelay wires the local fan-out broker to the redis
// event channel so mutations on any API instance reach the stream
// clients of every instance.
func MustStartBroadcastRelay() {
	cfg := config.Global().Redis

	globalBroker = broadcast.NewBroker()
	globalRelay = broadcast.NewRelay(globalLogger, globalRedisClient, globalBroker, cfg.Channel)

	var ctx context.Context
	ctx, relayCancel = context.WithCancel(context.Background())
	relayDone = make(chan struct{})

	go func() {
		defer close(relayDone)
		globalRelay.Run(ctx)
	}()

	globalLogger.Info().
		Str("channel", cfg.Channel).
		Msg("started broadcast relay")
}

func StopBroadcastRelay() {
	relayCancel()
	<-relayDone
	globalLogger.Info().Msg("stopped broadcast relay")
}
