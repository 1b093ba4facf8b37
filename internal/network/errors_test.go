package network

import (
	"io"
	"net"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrapReadErr(t *testing.T) {
	assert.Nil(t, WrapReadErr(nil, "header"))
	assert.True(t, IsConnectionClosed(WrapReadErr(io.EOF, "header")))
	assert.True(t, IsConnectionClosed(WrapReadErr(io.ErrUnexpectedEOF, "arg")))
	assert.True(t, IsConnectionClosed(WrapReadErr(net.ErrClosed, "arg")))

	other := WrapReadErr(errors.New("reset by peer"), "arg")
	assert.False(t, IsConnectionClosed(other))
	assert.False(t, IsProtocol(other))
}

func TestWrapProtocol(t *testing.T) {
	err := WrapProtocol("method %d expects %d args, got %d", 2, 2, 3)
	assert.True(t, IsProtocol(err))
	assert.False(t, IsConnectionClosed(err))
	assert.Contains(t, err.Error(), "expects 2 args")
}
