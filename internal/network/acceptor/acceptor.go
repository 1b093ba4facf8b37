package acceptor

import (
	"context"

	network "github.com/lk2023060901/msgrelay/internal/network"
	"github.com/lk2023060901/msgrelay/internal/network/session"
)

// Handler 由上层实现，在连接生命周期的各个阶段被回调。
//
// 同一连接上的回调都在该连接的工作协程中串行执行。
type Handler interface {
	// OnConnected 在会话创建并注册后调用。
	OnConnected(sess session.Session)

	// Serve 执行该连接的请求循环，直到连接结束才返回。
	// 返回 nil 或 network.ErrConnectionClosed 表示正常断开。
	Serve(sess session.Session) error

	// OnClosed 在 Serve 返回、会话关闭后调用，err 为 Serve 的返回值。
	OnClosed(sess session.Session, err error)

	// OnError 报告接入层自身的错误，sess 可能为 nil。
	OnError(sess session.Session, stage network.Stage, err error)
}

// Acceptor 抽象了服务器侧的接入层。
type Acceptor interface {
	// Serve 接受连接直到 ctx 取消或 Close 被调用，返回前关闭全部会话并等待工作协程退出。
	Serve(ctx context.Context, h Handler) error

	// Close 停止接受新连接。
	Close() error

	// Sessions 返回当前连接注册表。
	Sessions() session.SessionManager
}
