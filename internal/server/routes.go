package server

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/internal/api"
	"github.com/lk2023060901/msgrelay/internal/network/codec"
	"github.com/lk2023060901/msgrelay/internal/network/router"
	"github.com/lk2023060901/msgrelay/internal/network/session"
	"github.com/lk2023060901/msgrelay/internal/relay"
	"github.com/lk2023060901/msgrelay/pkg/log"
	"github.com/lk2023060901/msgrelay/pkg/util/merr"
)

// NewRouter 注册全部 API 方法，每个方法对应 relay.Core 的一个操作。
func NewRouter(core *relay.Core) (router.Router, error) {
	handlers := map[api.Method]router.Handler{
		api.CreateAccount: func(ctx context.Context, _ session.Session, args []string) codec.Response {
			if args[0] == "" {
				return failure(ctx, api.CreateAccount, merr.WrapErrParameterMissing("username"))
			}
			s, err := core.CreateAccount(ctx, args[0], args[1])
			if err != nil {
				return failure(ctx, api.CreateAccount, err)
			}
			return sessionResponse("account created", s)
		},
		api.Login: func(ctx context.Context, _ session.Session, args []string) codec.Response {
			s, err := core.Login(ctx, args[0], args[1])
			if err != nil {
				return failure(ctx, api.Login, err)
			}
			return sessionResponse("logged in", s)
		},
		api.Logout: func(ctx context.Context, _ session.Session, args []string) codec.Response {
			if err := core.Logout(ctx, args[0]); err != nil {
				return failure(ctx, api.Logout, err)
			}
			return router.Success("logged out")
		},
		api.DeleteAccount: func(ctx context.Context, _ session.Session, args []string) codec.Response {
			if err := core.DeleteAccount(ctx, args[0]); err != nil {
				return failure(ctx, api.DeleteAccount, err)
			}
			return router.Success("account deleted")
		},
		api.GetAccounts: func(ctx context.Context, _ session.Session, args []string) codec.Response {
			accounts, err := core.ListAccounts(ctx, args[0])
			if err != nil {
				return failure(ctx, api.GetAccounts, err)
			}
			return router.Success(strconv.Itoa(len(accounts))+" accounts", accounts...)
		},
		api.SendMessage: func(ctx context.Context, _ session.Session, args []string) codec.Response {
			if _, err := core.SendMessage(ctx, args[0], args[1], args[2]); err != nil {
				return failure(ctx, api.SendMessage, err)
			}
			return router.Success("message sent")
		},
		api.GetUndeliveredMessages: func(ctx context.Context, _ session.Session, args []string) codec.Response {
			msgs := core.FetchUndelivered(ctx, args[0])
			values := make([]string, 0, len(msgs)*api.MessageFields)
			for _, m := range msgs {
				values = append(values, m.Sender, m.CreatedAt.UTC().Format(api.TimestampLayout), m.Body)
			}
			return router.Success(strconv.Itoa(len(msgs))+" messages", values...)
		},
	}

	r := router.New()
	for method, spec := range api.Catalogue {
		h, ok := handlers[method]
		if !ok {
			return nil, errors.Newf("server: no handler for %s", spec.Name)
		}
		if err := r.Register(method, router.Route{Name: spec.Name, Arity: spec.Arity, Handler: h}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// failure 记录失败原因并构造失败响应。调用方输入导致的错误只记 Debug。
func failure(ctx context.Context, method api.Method, err error) codec.Response {
	fields := []zap.Field{
		zap.String("method", api.Catalogue[method].Name),
		zap.Int32("code", merr.Code(err)),
		zap.Error(err),
	}
	if merr.IsInputError(err) {
		log.Ctx(ctx).Debug("request rejected", fields...)
	} else {
		log.Ctx(ctx).Warn("request failed", fields...)
	}
	return router.Failure(err)
}

func sessionResponse(message string, s relay.Session) codec.Response {
	return router.Success(message,
		strconv.FormatUint(s.ConnectionID, 10),
		strconv.Itoa(s.Port))
}
