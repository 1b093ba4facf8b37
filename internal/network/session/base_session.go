package session

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/lk2023060901/msgrelay/internal/network/codec"
)

const defaultReadBufferSize = 4096

// BaseSession 是基于 net.Conn 的 Session 实现。
type BaseSession struct {
	id uint64

	ctx    context.Context
	cancel context.CancelFunc

	conn   net.Conn
	reader *bufio.Reader
	codec  *codec.WireCodec

	remoteAddr net.Addr
	localAddr  net.Addr

	// writeMu 保证一个响应帧完整写出后才写下一个。
	writeMu sync.Mutex

	closeOnce sync.Once
}

var _ Session = (*BaseSession)(nil)

// NewBaseSession 创建会话。parent 为 nil 时使用 context.Background()。
func NewBaseSession(parent context.Context, id uint64, conn net.Conn, c *codec.WireCodec) *BaseSession {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	return &BaseSession{
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		reader:     bufio.NewReaderSize(conn, defaultReadBufferSize),
		codec:      c,
		remoteAddr: conn.RemoteAddr(),
		localAddr:  conn.LocalAddr(),
	}
}

func (s *BaseSession) ID() uint64 {
	return s.id
}

func (s *BaseSession) Context() context.Context {
	return s.ctx
}

func (s *BaseSession) RemoteAddr() net.Addr {
	return s.remoteAddr
}

func (s *BaseSession) LocalAddr() net.Addr {
	return s.localAddr
}

func (s *BaseSession) RemoteIP() string {
	if s.remoteAddr == nil {
		return ""
	}
	addr := s.remoteAddr.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (s *BaseSession) Receive() (codec.Request, error) {
	return s.codec.DecodeRequest(s.reader)
}

func (s *BaseSession) Send(resp codec.Response) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.ctx.Err(); err != nil {
		return err
	}
	return s.codec.EncodeResponse(s.conn, resp)
}

func (s *BaseSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
	})
	return err
}
