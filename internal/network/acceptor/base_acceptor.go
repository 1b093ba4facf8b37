package acceptor

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	network "github.com/lk2023060901/msgrelay/internal/network"
	"github.com/lk2023060901/msgrelay/internal/network/codec"
	"github.com/lk2023060901/msgrelay/internal/network/session"
	"github.com/lk2023060901/msgrelay/pkg/log"
	"github.com/lk2023060901/msgrelay/pkg/util/conc"
)

// Options 为 BaseAcceptor 的构造参数。
type Options struct {
	// Codec 为全部连接共用的请求/响应编解码器，不能为空。
	Codec *codec.WireCodec

	// Sessions 为连接注册表，为 nil 时内部创建。
	Sessions session.SessionManager

	// WorkerPoolSize 限制同时服务的连接数，<= 0 表示不限。
	// 池满时接入循环阻塞，新连接在内核队列中等待。
	WorkerPoolSize int
}

// BaseAcceptor 是 Acceptor 的 TCP 实现：每个连接占用协程池中的一个 worker。
type BaseAcceptor struct {
	log.Binder

	ln       net.Listener
	codec    *codec.WireCodec
	sessions session.SessionManager
	pool     *conc.Pool[struct{}]

	nextID *atomic.Uint64

	closeOnce sync.Once
	closed    *atomic.Bool
}

var _ Acceptor = (*BaseAcceptor)(nil)

// NewBaseAcceptor 使用已创建的 Listener 构造接入器。
func NewBaseAcceptor(ln net.Listener, opts Options) (*BaseAcceptor, error) {
	if ln == nil {
		return nil, errors.New("acceptor: listener is nil")
	}
	if opts.Codec == nil {
		return nil, errors.New("acceptor: codec is nil")
	}
	sm := opts.Sessions
	if sm == nil {
		sm = session.NewBaseSessionManager()
	}
	a := &BaseAcceptor{
		ln:       ln,
		codec:    opts.Codec,
		sessions: sm,
		pool:     conc.NewPool[struct{}](opts.WorkerPoolSize, conc.WithConcealPanic(true)),
		nextID:   atomic.NewUint64(0),
		closed:   atomic.NewBool(false),
	}
	a.BindComponent("acceptor", zap.Stringer("listen", ln.Addr()))
	return a, nil
}

// NewTCPAcceptor 监听 addr 并构造接入器。
func NewTCPAcceptor(addr string, opts Options) (*BaseAcceptor, error) {
	if addr == "" {
		return nil, errors.New("acceptor: addr is empty")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "acceptor: listen %s", addr)
	}
	return NewBaseAcceptor(ln, opts)
}

// Addr 返回实际监听地址。
func (a *BaseAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

func (a *BaseAcceptor) Sessions() session.SessionManager {
	return a.sessions
}

func (a *BaseAcceptor) Serve(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("acceptor: handler is nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() { _ = a.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer func() {
		cancel()
		n := a.sessions.CloseAll()
		wg.Wait()
		a.pool.Release()
		a.Logger().Info("acceptor stopped", zap.Int("closedSessions", n))
	}()

	a.Logger().Info("acceptor serving")
	retry := newAcceptBackoff()
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if a.closed.Load() || ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				delay := retry.NextBackOff()
				h.OnError(nil, network.StageAccept, err)
				a.Logger().RatedWarn(1, "temporary accept error, retrying", zap.Duration("delay", delay), zap.Error(err))
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			h.OnError(nil, network.StageAccept, err)
			return errors.Wrap(err, "acceptor: accept")
		}
		retry.Reset()

		sess := session.NewBaseSession(ctx, a.nextID.Inc(), conn, a.codec)
		wg.Add(1)
		future := a.pool.Submit(func() (struct{}, error) {
			defer wg.Done()
			a.handleSession(sess, h)
			return struct{}{}, nil
		})
		if future.Done() && future.Err() != nil {
			// 任务未能进入协程池。
			wg.Done()
			h.OnError(sess, network.StageAccept, future.Err())
			_ = sess.Close()
		}
	}
}

// handleSession 处理单个连接：注册 -> OnConnected -> Serve -> 关闭 -> OnClosed。
func (a *BaseAcceptor) handleSession(sess session.Session, h Handler) {
	if err := a.sessions.Register(sess); err != nil {
		h.OnError(sess, network.StageAccept, err)
		_ = sess.Close()
		return
	}
	defer func() {
		_ = a.sessions.Unregister(sess.ID())
	}()
	// 接入器已停止时 CloseAll 可能早于注册发生。
	if sess.Context().Err() != nil {
		_ = sess.Close()
		return
	}

	h.OnConnected(sess)

	var cause error
	defer func() {
		if r := recover(); r != nil {
			cause = errors.Newf("session worker panicked: %v", r)
		}
		_ = sess.Close()
		h.OnClosed(sess, cause)
	}()
	cause = h.Serve(sess)
}

func (a *BaseAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		err = a.ln.Close()
	})
	return err
}

func newAcceptBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
