package server

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/internal/network/acceptor"
	"github.com/lk2023060901/msgrelay/internal/network/codec"
	"github.com/lk2023060901/msgrelay/internal/relay"
	"github.com/lk2023060901/msgrelay/pkg/log"
)

// Config 为控制端口配置。
type Config struct {
	Address        string `mapstructure:"address"`
	BasePort       int    `mapstructure:"basePort"`
	WorkerPoolSize int    `mapstructure:"workerPoolSize"`
	MaxArgs        uint32 `mapstructure:"maxArgs"`
}

// Server 在控制端口上接受连接，把请求分发给 relay.Core。
type Server struct {
	acceptor   *acceptor.BaseAcceptor
	dispatcher *Dispatcher
}

func New(cfg Config, core *relay.Core) (*Server, error) {
	if core == nil {
		return nil, errors.New("server: core is nil")
	}
	r, err := NewRouter(core)
	if err != nil {
		return nil, err
	}
	acc, err := acceptor.NewTCPAcceptor(cfg.Address, acceptor.Options{
		Codec:          codec.NewWireCodec(r.Arity, cfg.MaxArgs),
		WorkerPoolSize: cfg.WorkerPoolSize,
	})
	if err != nil {
		return nil, err
	}
	return &Server{
		acceptor:   acc,
		dispatcher: NewDispatcher(r),
	}, nil
}

// Addr 返回实际监听地址。
func (s *Server) Addr() net.Addr {
	return s.acceptor.Addr()
}

// Serve 阻塞直到 ctx 取消或 Close，返回前关闭所有连接。
func (s *Server) Serve(ctx context.Context) error {
	log.Ctx(ctx).Info("server listening", zap.Stringer("address", s.Addr()))
	return s.acceptor.Serve(ctx, s.dispatcher)
}

// OpenConnections 返回当前连接数。
func (s *Server) OpenConnections() int {
	return s.acceptor.Sessions().Count()
}

func (s *Server) Close() error {
	return s.acceptor.Close()
}
