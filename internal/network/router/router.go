package router

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/msgrelay/internal/network/codec"
	"github.com/lk2023060901/msgrelay/internal/network/session"
	"github.com/lk2023060901/msgrelay/pkg/util/merr"
)

// Handler 处理一次已解码、参数个数已校验的请求，并返回要写回的响应。
// 业务失败应体现在 Response.Success 上，而不是中断连接。
type Handler func(ctx context.Context, sess session.Session, args []string) codec.Response

// Route 描述一个方法：名称、参数个数与处理函数。
type Route struct {
	Name    string
	Arity   int
	Handler Handler
}

// Router 维护方法号到 Route 的映射。
//
// 服务器侧调用链：
//  1. WireCodec.DecodeRequest 借助 Router.Arity 校验参数个数；
//  2. Router.Handle 根据方法号查找 Route 并调用 Handler；
//  3. 未注册的方法号得到失败响应，连接保持打开。
type Router interface {
	// Register 注册方法，方法号重复或 Route 非法时返回错误。
	Register(method uint32, route Route) error

	// Lookup 返回方法对应的 Route。
	Lookup(method uint32) (Route, bool)

	// Arity 满足 codec.ArityFunc。
	Arity(method uint32) (int, bool)

	// Name 返回方法名，未知方法返回 "unknown"。
	Name(method uint32) string

	// Methods 返回已注册方法号，升序。
	Methods() []uint32

	Handle(ctx context.Context, sess session.Session, req codec.Request) codec.Response
}

type defaultRouter struct {
	routes map[uint32]Route
}

var _ Router = (*defaultRouter)(nil)

func New() Router {
	return &defaultRouter{
		routes: make(map[uint32]Route),
	}
}

func (r *defaultRouter) Register(method uint32, route Route) error {
	if route.Handler == nil {
		return errors.Newf("router: handler is nil for method=%d", method)
	}
	if route.Arity < 0 {
		return errors.Newf("router: negative arity for method=%d", method)
	}
	if _, exists := r.routes[method]; exists {
		return errors.Newf("router: method=%d already registered", method)
	}
	r.routes[method] = route
	return nil
}

func (r *defaultRouter) Lookup(method uint32) (Route, bool) {
	route, ok := r.routes[method]
	return route, ok
}

func (r *defaultRouter) Arity(method uint32) (int, bool) {
	route, ok := r.routes[method]
	if !ok {
		return 0, false
	}
	return route.Arity, true
}

func (r *defaultRouter) Name(method uint32) string {
	if route, ok := r.routes[method]; ok && route.Name != "" {
		return route.Name
	}
	return "unknown"
}

func (r *defaultRouter) Methods() []uint32 {
	methods := make([]uint32, 0, len(r.routes))
	for m := range r.routes {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

func (r *defaultRouter) Handle(ctx context.Context, sess session.Session, req codec.Request) codec.Response {
	route, ok := r.routes[req.Method]
	if !ok {
		return Failure(merr.WrapErrServiceUnknownMethod(req.Method))
	}
	return route.Handler(ctx, sess, req.Args)
}

// Success 构造成功响应，values 跟在 message 之后。
func Success(message string, values ...string) codec.Response {
	return codec.Response{Success: true, Values: append([]string{message}, values...)}
}

// Failure 构造只携带错误信息的失败响应。
func Failure(err error) codec.Response {
	return codec.Response{Success: false, Values: []string{merr.Message(err)}}
}
