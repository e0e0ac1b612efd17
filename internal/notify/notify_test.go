package notify

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func runServer(t *testing.T) string {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s.ClientURL()
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "poolstats.eclipse.aggregated", Subject("", "eclipse"))
	assert.Equal(t, "x.*.aggregated", Subject("x", "*"))
	assert.Equal(t, "eclipse", networkFromSubject("x", "x.eclipse.aggregated"))
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect("", "", nil)
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{Network: "n"}))
}

func TestPublishSubscribe(t *testing.T) {
	url := runServer(t)
	logger := zaptest.NewLogger(t)

	sub, err := Connect(url, "test", logger)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := Connect(url, "test", logger)
	require.NoError(t, err)
	defer pub.Close()

	assert.True(t, pub.Ready())

	received := make(chan Event, 1)
	s, err := sub.Subscribe(func(e Event) { received <- e })
	require.NoError(t, err)
	require.NoError(t, sub.nc.Flush())
	defer s.Unsubscribe()

	sent := Event{Network: "eclipse", GeneratedAt: time.UnixMilli(1700000000000).UTC(), Pools: 3}
	require.NoError(t, pub.Publish(context.Background(), sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.Network, got.Network)
		assert.Equal(t, sent.Pools, got.Pools)
		assert.True(t, sent.GeneratedAt.Equal(got.GeneratedAt))
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestSubscribe_IgnoresInvalidPayload(t *testing.T) {
	url := runServer(t)
	client, err := Connect(url, "test", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer client.Close()

	received := make(chan Event, 2)
	s, err := client.Subscribe(func(e Event) { received <- e })
	require.NoError(t, err)
	defer s.Unsubscribe()

	require.NoError(t, client.nc.Publish("test.a.aggregated", []byte("not json")))
	require.NoError(t, client.nc.Publish("test.b.aggregated", []byte(`{"pools":1}`)))
	require.NoError(t, client.nc.Flush())

	select {
	case got := <-received:
		assert.Equal(t, "b", got.Network)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}
