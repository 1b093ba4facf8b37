package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	network "github.com/lk2023060901/msgrelay/internal/network"
	"github.com/lk2023060901/msgrelay/internal/network/framer"
)

func testArity(method uint32) (int, bool) {
	switch method {
	case 1, 2:
		return 2, true
	case 3:
		return 1, true
	case 6:
		return 3, true
	default:
		return 0, false
	}
}

type WireSuite struct {
	suite.Suite
	codec *WireCodec
}

func (s *WireSuite) SetupTest() {
	s.codec = NewWireCodec(testArity, 8)
}

func (s *WireSuite) TestRequestRoundTrip() {
	reqs := []Request{
		{Method: 1, Args: []string{"alice", "10.0.0.1"}},
		{Method: 3, Args: []string{""}},
		{Method: 6, Args: []string{"alice", "bob", "héllo, 世界"}},
	}
	var buf bytes.Buffer
	for _, req := range reqs {
		s.Require().NoError(s.codec.EncodeRequest(&buf, req))
	}
	for _, want := range reqs {
		got, err := s.codec.DecodeRequest(&buf)
		s.Require().NoError(err)
		s.Equal(want, got)
	}
	_, err := s.codec.DecodeRequest(&buf)
	s.True(network.IsConnectionClosed(err))
}

func (s *WireSuite) TestResponseRoundTrip() {
	resps := []Response{
		{Success: true, Values: []string{"ok", "1", "50052"}},
		{Success: false, Values: []string{"account not found[username=bob]"}},
		{Success: true, Values: []string{}},
	}
	var buf bytes.Buffer
	for _, resp := range resps {
		s.Require().NoError(s.codec.EncodeResponse(&buf, resp))
	}
	for _, want := range resps {
		got, err := s.codec.DecodeResponse(&buf)
		s.Require().NoError(err)
		s.Equal(want.Success, got.Success)
		s.Equal(len(want.Values), len(got.Values))
		for i := range want.Values {
			s.Equal(want.Values[i], got.Values[i])
		}
	}
}

func (s *WireSuite) TestArityMismatch() {
	var buf bytes.Buffer
	// 请求编码不校验参数个数，校验发生在解码侧。
	s.Require().NoError(s.codec.EncodeRequest(&buf, Request{Method: 2, Args: []string{"alice"}}))
	_, err := s.codec.DecodeRequest(&buf)
	s.True(network.IsProtocol(err))
}

func (s *WireSuite) TestUnknownMethodConsumesArgs() {
	var buf bytes.Buffer
	s.Require().NoError(s.codec.EncodeRequest(&buf, Request{Method: 99, Args: []string{"a", "b"}}))
	s.Require().NoError(s.codec.EncodeRequest(&buf, Request{Method: 3, Args: []string{"alice"}}))

	req, err := s.codec.DecodeRequest(&buf)
	s.Require().NoError(err)
	s.Equal(uint32(99), req.Method)
	s.Equal([]string{"a", "b"}, req.Args)

	req, err = s.codec.DecodeRequest(&buf)
	s.Require().NoError(err)
	s.Equal(uint32(3), req.Method)
}

func (s *WireSuite) TestTooManyArgs() {
	var buf bytes.Buffer
	s.Require().NoError(s.codec.EncodeRequest(&buf, Request{Method: 99, Args: make([]string, 9)}))
	_, err := s.codec.DecodeRequest(&buf)
	s.True(network.IsProtocol(err))
}

func (s *WireSuite) TestResponseIgnoresArgLimit() {
	values := make([]string, 0, 301)
	values = append(values, "100 messages")
	for i := 0; i < 100; i++ {
		values = append(values, "bob", "2024-05-01T12:00:00Z", fmt.Sprintf("m%d", i))
	}
	var buf bytes.Buffer
	s.Require().NoError(s.codec.EncodeResponse(&buf, Response{Success: true, Values: values}))
	got, err := s.codec.DecodeResponse(&buf)
	s.Require().NoError(err)
	s.Equal(values, got.Values)
}

func (s *WireSuite) TestMaxValues() {
	c := NewWireCodec(testArity, 8).WithMaxValues(2)
	var buf bytes.Buffer
	s.Require().NoError(c.EncodeResponse(&buf, Response{Success: true, Values: []string{"a", "b", "c"}}))
	_, err := c.DecodeResponse(&buf)
	s.True(network.IsProtocol(err))
}

func (s *WireSuite) TestTruncatedFrame() {
	var buf bytes.Buffer
	s.Require().NoError(s.codec.EncodeRequest(&buf, Request{Method: 6, Args: []string{"alice", "bob", "hi"}}))
	data := buf.Bytes()
	for cut := 1; cut < len(data); cut++ {
		_, err := s.codec.DecodeRequest(bytes.NewReader(data[:cut]))
		s.True(network.IsConnectionClosed(err), "cut=%d", cut)
	}
}

func (s *WireSuite) TestBadSuccessFlag() {
	raw := []byte{0, 0, 0, 2, 0, 0, 0, 0}
	_, err := s.codec.DecodeResponse(bytes.NewReader(raw))
	s.True(network.IsProtocol(err))
}

func (s *WireSuite) TestOversizedString() {
	err := s.codec.EncodeResponse(io.Discard, Response{Success: true, Values: []string{strings.Repeat("x", framer.MaxFieldLen+1)}})
	s.ErrorIs(err, framer.ErrFieldTooLong)
}

func TestWireCodec(t *testing.T) {
	suite.Run(t, new(WireSuite))
}

func TestNilArity(t *testing.T) {
	c := NewWireCodec(nil, 0)
	var buf bytes.Buffer
	require.NoError(t, c.EncodeRequest(&buf, Request{Method: 2, Args: []string{"x"}}))
	req, err := c.DecodeRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, req.Args)
}
