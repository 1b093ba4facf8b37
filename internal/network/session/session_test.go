package session

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	network "github.com/lk2023060901/msgrelay/internal/network"
	"github.com/lk2023060901/msgrelay/internal/network/codec"
)

func newPipeSession(t *testing.T, id uint64) (*BaseSession, net.Conn) {
	server, client := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	sess := NewBaseSession(context.Background(), id, server, codec.NewWireCodec(nil, 0))
	t.Cleanup(func() { _ = sess.Close() })
	return sess, client
}

func TestSessionReceiveSend(t *testing.T) {
	sess, client := newPipeSession(t, 1)
	wire := codec.NewWireCodec(nil, 0)

	go func() {
		_ = wire.EncodeRequest(client, codec.Request{Method: 3, Args: []string{"alice"}})
	}()
	req, err := sess.Receive()
	require.NoError(t, err)
	assert.Equal(t, codec.Request{Method: 3, Args: []string{"alice"}}, req)

	go func() {
		_ = sess.Send(codec.Response{Success: true, Values: []string{"ok"}})
	}()
	resp, err := wire.DecodeResponse(client)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"ok"}, resp.Values)

	require.NoError(t, client.Close())
	_, err = sess.Receive()
	assert.True(t, network.IsConnectionClosed(err))
}

func TestSessionClose(t *testing.T) {
	sess, _ := newPipeSession(t, 2)
	require.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())
	assert.Error(t, sess.Context().Err())
	assert.Error(t, sess.Send(codec.Response{}))
	assert.Equal(t, "pipe", sess.RemoteIP())
}

func TestSessionManager(t *testing.T) {
	m := NewBaseSessionManager()
	s1, _ := newPipeSession(t, 1)
	s2, _ := newPipeSession(t, 2)

	require.NoError(t, m.Register(s1))
	require.NoError(t, m.Register(s2))
	assert.Error(t, m.Register(s1))
	assert.Error(t, m.Register(nil))
	assert.Equal(t, 2, m.Count())

	got, ok := m.Get(1)
	assert.True(t, ok)
	assert.Same(t, s1, got)

	seen := 0
	m.Range(func(Session) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)

	require.NoError(t, m.Unregister(1))
	assert.Error(t, m.Unregister(1))
	_, ok = m.Get(1)
	assert.False(t, ok)

	assert.Equal(t, 1, m.CloseAll())
	assert.Error(t, s2.Context().Err())
}
