package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/msgrelay/internal/api"
	"github.com/lk2023060901/msgrelay/internal/network/codec"
	"github.com/lk2023060901/msgrelay/internal/network/connector"
	"github.com/lk2023060901/msgrelay/internal/relay"
	"github.com/lk2023060901/msgrelay/pkg/util/merr"
)

const basePort = 50052

type ServerSuite struct {
	suite.Suite
	core   *relay.Core
	server *Server
	cancel context.CancelFunc
	done   chan error
}

func (s *ServerSuite) SetupTest() {
	s.core = relay.NewCore(basePort)
	srv, err := New(Config{Address: "127.0.0.1:0", BasePort: basePort}, s.core)
	s.Require().NoError(err)
	s.server = srv

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- srv.Serve(ctx) }()
}

func (s *ServerSuite) TearDownTest() {
	s.cancel()
	select {
	case err := <-s.done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("server did not stop")
	}
}

func (s *ServerSuite) client() *connector.Client {
	c, err := connector.Dial(context.Background(), s.server.Addr().String(), connector.Config{MaxElapsed: time.Second})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })
	return c
}

func (s *ServerSuite) TestAccountLifecycle() {
	c := s.client()

	info, err := c.CreateAccount("alice", "10.0.0.1")
	s.Require().NoError(err)
	s.Equal(basePort, info.Port)

	_, err = c.CreateAccount("alice", "10.0.0.1")
	s.ErrorIs(err, connector.ErrCallFailed)
	s.Contains(err.Error(), merr.ErrAccountAlreadyExists.Error())

	_, err = c.Login("alice", "10.0.0.1")
	s.ErrorContains(err, merr.ErrSessionAlreadyLoggedIn.Error())

	s.Require().NoError(c.Logout("alice"))
	s.ErrorContains(c.Logout("alice"), merr.ErrSessionNotLoggedIn.Error())

	again, err := c.Login("alice", "10.0.0.1")
	s.Require().NoError(err)
	s.Greater(again.ConnectionID, info.ConnectionID)

	s.Require().NoError(c.DeleteAccount("alice"))
	s.ErrorContains(c.DeleteAccount("alice"), merr.ErrAccountNotFound.Error())
	_, err = c.Login("alice", "10.0.0.1")
	s.ErrorContains(err, merr.ErrAccountNotFound.Error())
	s.False(s.core.PortHeld("10.0.0.1", again.Port))
}

func (s *ServerSuite) TestPortReuse() {
	c := s.client()
	for _, u := range []string{"a", "b", "c", "d"} {
		_, err := c.CreateAccount(u, "seed")
		s.Require().NoError(err)
		s.Require().NoError(c.Logout(u))
	}
	port := func(u string) int {
		info, err := c.Login(u, "192.168.1.5")
		s.Require().NoError(err)
		return info.Port
	}
	s.Equal(basePort, port("a"))
	s.Equal(basePort+1, port("b"))
	s.Require().NoError(c.Logout("a"))
	s.Equal(basePort, port("c"))
	s.Equal(basePort+2, port("d"))
}

func (s *ServerSuite) TestMessages() {
	c := s.client()
	_, err := c.CreateAccount("alice", "h")
	s.Require().NoError(err)
	_, err = c.CreateAccount("bob", "h")
	s.Require().NoError(err)
	s.Require().NoError(c.Logout("bob"))

	s.Require().NoError(c.SendMessage("alice", "bob", "offline hello"))
	s.Require().NoError(c.SendMessage("bob", "alice", "online hello"))

	msgs, err := c.GetUndeliveredMessages("bob")
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Equal("alice", msgs[0].Sender)
	s.Equal("offline hello", msgs[0].Body)
	s.False(msgs[0].Timestamp.IsZero())

	msgs, err = c.GetUndeliveredMessages("bob")
	s.Require().NoError(err)
	s.Empty(msgs)

	msgs, err = c.GetUndeliveredMessages("alice")
	s.Require().NoError(err)
	s.Empty(msgs)
	s.Len(s.core.Delivered("alice"), 1)
}

func (s *ServerSuite) TestGetAccounts() {
	c := s.client()
	for _, u := range []string{"user1", "user2", "admin"} {
		_, err := c.CreateAccount(u, "h")
		s.Require().NoError(err)
	}
	all, err := c.GetAccounts("")
	s.Require().NoError(err)
	s.Equal([]string{"admin", "user1", "user2"}, all)

	matched, err := c.GetAccounts("user.*")
	s.Require().NoError(err)
	s.Equal([]string{"user1", "user2"}, matched)

	_, err = c.GetAccounts("[")
	s.ErrorContains(err, merr.ErrAccountInvalidPattern.Error())
}

func (s *ServerSuite) TestCreateAccountRequiresUsername() {
	c := s.client()
	_, err := c.CreateAccount("", "h")
	s.ErrorIs(err, connector.ErrCallFailed)
	s.ErrorContains(err, merr.ErrParameterMissing.Error())
	s.False(s.core.Exists(""))

	// 连接保持可用。
	_, err = c.CreateAccount("alice", "h")
	s.NoError(err)
}

func (s *ServerSuite) TestLargeResponses() {
	c := s.client()
	_, err := c.CreateAccount("alice", "h")
	s.Require().NoError(err)
	for i := 0; i < 30; i++ {
		s.Require().NoError(c.SendMessage("alice", "bob", fmt.Sprintf("m%02d", i)))
	}

	msgs, err := c.GetUndeliveredMessages("bob")
	s.Require().NoError(err)
	s.Require().Len(msgs, 30)
	s.Equal("m00", msgs[0].Body)
	s.Equal("m29", msgs[29].Body)
	s.Len(s.core.History("bob"), 30)

	for i := 0; i < 70; i++ {
		_, err := s.core.CreateAccount(context.Background(), fmt.Sprintf("user%02d", i), "h")
		s.Require().NoError(err)
	}
	all, err := c.GetAccounts("user.*")
	s.Require().NoError(err)
	s.Len(all, 70)
	s.Equal("user69", all[69])

	// 大响应之后连接仍可继续使用。
	s.Require().NoError(c.Logout("alice"))
}

func (s *ServerSuite) TestUnknownMethodKeepsConnection() {
	c := s.client()
	resp, err := c.Call(99, "whatever", "args")
	s.Require().NoError(err)
	s.False(resp.Success)
	s.Require().Len(resp.Values, 1)
	s.Contains(resp.Values[0], "unknown method")

	_, err = c.CreateAccount("alice", "h")
	s.NoError(err)
}

func (s *ServerSuite) TestProtocolErrorClosesOnlyOffender() {
	healthy := s.client()

	raw, err := net.Dial("tcp", s.server.Addr().String())
	s.Require().NoError(err)
	defer raw.Close()

	// LOGIN 需要 2 个参数，这里声明 5 个。
	head := make([]byte, 8)
	binary.BigEndian.PutUint32(head[0:4], api.Login)
	binary.BigEndian.PutUint32(head[4:8], 5)
	_, err = raw.Write(head)
	s.Require().NoError(err)

	s.Require().NoError(raw.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, err = bufio.NewReader(raw).ReadByte()
	s.ErrorIs(err, io.EOF)

	_, err = healthy.CreateAccount("bob", "h")
	s.NoError(err)
}

func (s *ServerSuite) TestDisconnectKeepsLogin() {
	first := s.client()
	_, err := first.CreateAccount("alice", "h")
	s.Require().NoError(err)
	s.Require().NoError(first.Close())

	second := s.client()
	_, err = second.Login("alice", "h")
	s.ErrorContains(err, merr.ErrSessionAlreadyLoggedIn.Error())
}

func (s *ServerSuite) TestConcurrentClients() {
	const clients = 16
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		c := s.client()
		go func(i int) {
			name := string(rune('a' + i))
			if _, err := c.CreateAccount(name, "shared"); err != nil {
				errs <- err
				return
			}
			errs <- c.SendMessage(name, "nobody", "ping")
		}(i)
	}
	for i := 0; i < clients; i++ {
		s.NoError(<-errs)
	}
	s.Equal(relay.Stats{Accounts: clients, Sessions: clients, Pending: clients}, s.core.Stats())
	s.Eventually(func() bool { return s.server.OpenConnections() == clients }, 5*time.Second, 10*time.Millisecond)
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func TestRouterCoversCatalogue(t *testing.T) {
	r, err := NewRouter(relay.NewCore(0))
	if err != nil {
		t.Fatal(err)
	}
	for method, spec := range api.Catalogue {
		arity, ok := r.Arity(method)
		if !ok || arity != spec.Arity || r.Name(method) != spec.Name {
			t.Fatalf("route %d: got (%d, %v, %s), want %+v", method, arity, ok, r.Name(method), spec)
		}
	}
	resp := r.Handle(context.Background(), nil, codec.Request{Method: api.GetAccounts, Args: []string{""}})
	if !resp.Success || resp.Values[0] != "0 accounts" {
		t.Fatalf("unexpected response %+v", resp)
	}
}
