package server

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	network "github.com/lk2023060901/msgrelay/internal/network"
	"github.com/lk2023060901/msgrelay/internal/network/acceptor"
	"github.com/lk2023060901/msgrelay/internal/network/router"
	"github.com/lk2023060901/msgrelay/internal/network/session"
	"github.com/lk2023060901/msgrelay/pkg/log"
	"github.com/lk2023060901/msgrelay/pkg/metrics"
	"github.com/lk2023060901/msgrelay/pkg/util/merr"
)

var errSendFailed = errors.New("dispatcher: send failed")

// Dispatcher 为每个连接执行请求循环：读请求 -> 路由 -> 写响应。
//
// 协议错误与对端断开只结束当前连接；业务失败作为失败响应写回，连接继续服务。
// 连接断开不会自动登出账号。
type Dispatcher struct {
	log.Binder
	router router.Router
}

var _ acceptor.Handler = (*Dispatcher)(nil)

func NewDispatcher(r router.Router) *Dispatcher {
	d := &Dispatcher{router: r}
	d.BindComponent("dispatcher")
	return d
}

func (d *Dispatcher) sessionContext(sess session.Session) context.Context {
	return log.WithFields(sess.Context(),
		log.FieldSession(sess.ID()),
		log.FieldRemote(sess.RemoteAddr().String()))
}

func (d *Dispatcher) OnConnected(sess session.Session) {
	metrics.NetworkAcceptedConnections.Inc()
	metrics.NetworkOpenConnections.Inc()
	d.Logger().Debug("connection opened",
		log.FieldSession(sess.ID()),
		log.FieldRemote(sess.RemoteAddr().String()))
}

func (d *Dispatcher) Serve(sess session.Session) error {
	ctx := d.sessionContext(sess)
	for {
		req, err := sess.Receive()
		if err != nil {
			return err
		}

		start := time.Now()
		resp := d.router.Handle(ctx, sess, req)
		name := d.router.Name(req.Method)
		outcome := metrics.SuccessLabel
		if !resp.Success {
			outcome = metrics.FailureLabel
		}
		metrics.NetworkRequests.WithLabelValues(name, outcome).Inc()
		metrics.NetworkRequestLatency.WithLabelValues(name).Observe(float64(time.Since(start).Microseconds()) / 1000)

		if err := sess.Send(resp); err != nil {
			return errors.Mark(errors.Wrapf(err, "send %s response", name), errSendFailed)
		}
	}
}

func (d *Dispatcher) OnClosed(sess session.Session, err error) {
	metrics.NetworkOpenConnections.Dec()
	fields := []zap.Field{
		log.FieldSession(sess.ID()),
		log.FieldRemote(sess.RemoteAddr().String()),
	}
	switch {
	case err == nil, network.IsConnectionClosed(err), merr.IsCanceledOrTimeout(err):
		d.Logger().Debug("connection closed", fields...)
	case network.IsProtocol(err):
		metrics.NetworkConnectionErrors.WithLabelValues(string(network.StageDecode)).Inc()
		d.Logger().RatedWarn(1, "connection dropped on protocol error", append(fields, zap.Error(err))...)
	default:
		stage := network.StageDecode
		if errors.Is(err, errSendFailed) {
			stage = network.StageSend
		}
		metrics.NetworkConnectionErrors.WithLabelValues(string(stage)).Inc()
		d.Logger().Warn("connection failed", append(fields, zap.String("stage", string(stage)), zap.Error(err))...)
	}
}

func (d *Dispatcher) OnError(sess session.Session, stage network.Stage, err error) {
	metrics.NetworkConnectionErrors.WithLabelValues(string(stage)).Inc()
	fields := []zap.Field{zap.String("stage", string(stage)), zap.Error(err)}
	if sess != nil {
		fields = append(fields, log.FieldSession(sess.ID()))
	}
	d.Logger().RatedWarn(1, "network error", fields...)
}
