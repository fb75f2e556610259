package mqttclient

import (
	"fmt"
	"log/slog"
	"os"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/rs/zerolog"
)

// Broker is an in-process MQTT broker for single-binary deployments.
type Broker struct {
	server *mochi.Server
	addr   string
	log    zerolog.Logger
}

// StartBroker listens on addr and serves until Close. Every client is allowed.
func StartBroker(addr string, log zerolog.Logger) (*Broker, error) {
	server := mochi.New(&mochi.Options{
		InlineClient: true,
		// mochi logs through slog; keep it quiet unless something is wrong
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if err := server.Serve(); err != nil {
		return nil, fmt.Errorf("serve: %w", err)
	}

	log.Info().Str("addr", addr).Msg("embedded mqtt broker started")
	return &Broker{server: server, addr: addr, log: log}, nil
}

// Subscribe registers an in-process handler for messages matching filter.
func (b *Broker) Subscribe(filter string, id int, fn func(topic string, payload []byte)) error {
	return b.server.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		fn(pk.TopicName, pk.Payload)
	})
}

func (b *Broker) Addr() string { return b.addr }

func (b *Broker) Close() error {
	b.log.Info().Msg("stopping embedded mqtt broker")
	return b.server.Close()
}
