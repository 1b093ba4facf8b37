package session

import (
	"context"
	"net"

	"github.com/lk2023060901/msgrelay/internal/network/codec"
)

// Session 抽象了一条已接入的客户端连接。
//
// 约定：
//   - 每个 Session 对应一条底层连接，ID 由接入层分配且进程内唯一；
//   - Receive 只由该连接的工作协程调用；Send 可被并发调用，内部串行写出；
//   - Session 只承载传输层概念，登录态等业务概念由上层维护。
type Session interface {
	// ID 返回接入层分配的连接 ID。
	ID() uint64

	// Context 在会话关闭时被取消。
	Context() context.Context

	RemoteAddr() net.Addr
	LocalAddr() net.Addr

	// RemoteIP 返回远端地址中的主机部分，无法解析时返回完整地址字符串。
	RemoteIP() string

	// Receive 阻塞读取下一个请求帧。对端断开时返回 network.ErrConnectionClosed。
	Receive() (codec.Request, error)

	// Send 编码并写出一个响应帧。
	Send(resp codec.Response) error

	// Close 关闭底层连接并取消 Context，可重复调用。
	Close() error
}
