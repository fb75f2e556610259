package mqttclient

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestNilClientDropsEvents(t *testing.T) {
	var c *Client
	assert.NoError(t, c.PublishEvent("interview.created", map[string]string{"id": "x"}))
	assert.False(t, c.IsConnected())
	c.Close()
}

func TestTopic(t *testing.T) {
	c := &Client{prefix: "mockprep"}
	assert.Equal(t, "mockprep/answer.saved", c.Topic("answer.saved"))
	c.prefix = ""
	assert.Equal(t, "answer.saved", c.Topic("answer.saved"))
}

func TestPublishThroughEmbeddedBroker(t *testing.T) {
	addr := freeAddr(t)
	broker, err := StartBroker(addr, zerolog.Nop())
	require.NoError(t, err)
	defer broker.Close()

	got := make(chan []byte, 1)
	require.NoError(t, broker.Subscribe("mockprep/#", 1, func(topic string, payload []byte) {
		if topic == "mockprep/interview.created" {
			got <- payload
		}
	}))

	client, err := Connect(Options{
		BrokerURL:   "tcp://" + addr,
		ClientID:    "mockprep-test",
		TopicPrefix: "/mockprep/",
		Log:         zerolog.Nop(),
	})
	require.NoError(t, err)
	defer client.Close()
	require.Eventually(t, client.IsConnected, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.PublishEvent("interview.created", map[string]string{"id": "iv-1"}))

	select {
	case b := <-got:
		var e struct {
			Event string            `json:"event"`
			Data  map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(b, &e))
		assert.Equal(t, "interview.created", e.Event)
		assert.Equal(t, "iv-1", e.Data["id"])
	case <-time.After(3 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishWhileDisconnected(t *testing.T) {
	c := &Client{prefix: "p", log: zerolog.Nop()}
	assert.ErrorIs(t, c.PublishEvent("answer.saved", nil), ErrNotConnected)
}
