package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/testutil"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct {
	done chan struct{}
	err  error
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

func TestMQTTClient_PublishNotConnected(t *testing.T) {
	c := NewMQTTClient(MQTTConfig{Broker: "localhost:1883", ClientID: "test"})
	err := c.Publish("pickplace/pcl_table", []byte{1})
	assert.ErrorIs(t, err, ErrNotConnected)

	st := c.Stats()
	assert.False(t, st.Connected)
	assert.Equal(t, uint64(1), st.PublishErrors)
	assert.Empty(t, st.Published)
}

func TestMQTTClient_SubscribeBeforeConnect(t *testing.T) {
	c := NewMQTTClient(MQTTConfig{InputTopic: "pr2/world/points"})
	err := c.Subscribe(context.Background(), func(l1cloud.Cloud) {})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMQTTClient_HandleMessage(t *testing.T) {
	c := NewMQTTClient(MQTTConfig{InputTopic: "pr2/world/points"})
	cloud := testutil.GridCube(l1cloud.Point{B: 255}, 3, 0.25)

	var got []l1cloud.Cloud
	handler := func(c l1cloud.Cloud) { got = append(got, c) }

	c.handleMessage(fakeMessage{topic: "pr2/world/points", payload: l1cloud.EncodeCloud(cloud)}, handler)
	c.handleMessage(fakeMessage{topic: "pr2/world/points", payload: []byte("garbage")}, handler)

	require.Len(t, got, 1)
	assert.Equal(t, cloud, got[0])
	st := c.Stats()
	assert.Equal(t, uint64(1), st.Received)
	assert.Equal(t, uint64(1), st.DecodeErrors)
}

func TestMQTTClient_DisconnectWithoutConnect(t *testing.T) {
	c := NewMQTTClient(MQTTConfig{})
	c.Disconnect()
	assert.False(t, c.Stats().Connected)
}

func TestWaitToken(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		tok := &fakeToken{done: make(chan struct{})}
		close(tok.done)
		assert.NoError(t, waitToken(context.Background(), tok, time.Second))
	})
	t.Run("completed with error", func(t *testing.T) {
		refused := errors.New("connection refused")
		tok := &fakeToken{done: make(chan struct{}), err: refused}
		close(tok.done)
		assert.ErrorIs(t, waitToken(context.Background(), tok, time.Second), refused)
	})
	t.Run("timeout", func(t *testing.T) {
		tok := &fakeToken{done: make(chan struct{})}
		err := waitToken(context.Background(), tok, 10*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})
	t.Run("cancelled", func(t *testing.T) {
		tok := &fakeToken{done: make(chan struct{})}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, waitToken(ctx, tok, time.Second), context.Canceled)
	})
}
