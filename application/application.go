package application

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/msgrelay/internal/relay"
	"github.com/lk2023060901/msgrelay/internal/server"
	"github.com/lk2023060901/msgrelay/internal/storage/snapshot"
	zlog "github.com/lk2023060901/msgrelay/pkg/log"
	"github.com/lk2023060901/msgrelay/pkg/metrics"
	"github.com/lk2023060901/msgrelay/pkg/util/etcd"
	zviper "github.com/lk2023060901/msgrelay/pkg/util/viper"
)

const (
	// EnvPrefix 为配置项环境变量前缀，例如 MSGRELAY_SERVER_ADDRESS。
	EnvPrefix = "MSGRELAY"

	defaultConfigPath = "./config.yaml"
	shutdownTimeout   = 10 * time.Second
)

// Application 是 msgrelay 服务的运行时容器，负责加载配置、初始化日志并装配各组件。
type Application struct {
	configPath string
	cfg        *zviper.Config
	conf       Config
	loggers    map[string]*zlog.MLogger

	ready chan struct{}
	addr  string
}

type Option func(*Application)

// WithConfigPath 指定配置文件，文件不存在时报错。
func WithConfigPath(path string) Option {
	return func(a *Application) {
		a.configPath = path
	}
}

func New(opts ...Option) *Application {
	a := &Application{ready: make(chan struct{})}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 加载配置并运行服务，直到 ctx 取消或某个组件失败。
//
// 配置文件按以下顺序确定：
//  1. 默认：./config.yaml（不存在时使用默认配置）
//  2. 环境变量：MSGRELAY_CONFIG_FILE_PATH
//  3. 命令行：--config <path>
func (a *Application) Run(ctx context.Context) error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.initLogging(); err != nil {
		return err
	}
	defer zlog.Sync()

	_, span := zlog.NewIntentContext("msgrelay", "serve")
	defer span.End()
	ctx = zlog.WithTraceID(ctx, span.SpanContext().TraceID().String())
	ctx = zlog.WithModule(ctx, "application")

	store, release, err := snapshot.Open(ctx, a.conf.Snapshot)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Ctx(ctx).Warn("close snapshot store failed", zap.Error(err))
		}
		release()
		if etcd.HasServer() {
			etcd.StopEtcdServer()
		}
	}()

	accounts, undelivered, err := store.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load snapshot")
	}
	persister := snapshot.NewPersister(store)
	persister.SetLogger(a.Logger("snapshot"))
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := persister.Close(flushCtx); err != nil {
			zlog.Ctx(ctx).Warn("final snapshot flush failed", zap.Error(err))
		}
	}()

	core := relay.NewCore(a.conf.Server.BasePort, relay.WithSnapshotSink(persister))
	core.Restore(accounts, undelivered)
	zlog.Ctx(ctx).Info("state restored",
		zap.Int("accounts", len(accounts)),
		zap.Int("pendingRecipients", len(undelivered)))

	srv, err := server.New(a.conf.Server, core)
	if err != nil {
		return err
	}
	a.addr = srv.Addr().String()

	metrics.Register(metrics.GetRegisterer())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(zlog.WithModule(gctx, "server"))
	})
	if a.conf.Metrics.Address != "" {
		httpSrv := &http.Server{
			Addr:              a.conf.Metrics.Address,
			Handler:           newMetricsRouter(core, srv),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			zlog.Ctx(ctx).Info("metrics endpoint listening", zap.String("address", httpSrv.Addr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics endpoint")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}
	close(a.ready)

	err = g.Wait()
	zlog.Ctx(ctx).Info("msgrelay stopped", zap.Error(err))
	return err
}

// Ready 在服务开始接受连接后关闭。
func (a *Application) Ready() <-chan struct{} {
	return a.ready
}

// Addr 返回控制端口的实际监听地址，Ready 之后有效。
func (a *Application) Addr() string {
	return a.addr
}

// Settings 返回解析后的配置。
func (a *Application) Settings() Config {
	return a.conf
}

// Logger 返回配置中 logging.<name> 对应的 Logger，未配置时退回全局 Logger。
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With(zlog.FieldModule(name))
}

// loadConfig 解析配置文件路径并通过 viper 加载。
func (a *Application) loadConfig() error {
	path, explicit := defaultConfigPath, false
	if envPath := os.Getenv("MSGRELAY_CONFIG_FILE_PATH"); envPath != "" {
		path, explicit = envPath, true
	}
	if a.configPath != "" {
		path, explicit = a.configPath, true
	}

	cfg := zviper.New(EnvPrefix)
	cfg.SetDefaults(defaults())
	if _, err := os.Stat(path); err == nil || explicit {
		if err := cfg.LoadFile(path); err != nil {
			return errors.Wrapf(err, "load config file %q", path)
		}
	}

	var conf Config
	if err := cfg.Unmarshal(&conf); err != nil {
		return errors.Wrap(err, "decode config")
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.conf = conf
	return nil
}

// initLogging 初始化全局 Logger 与模块 Logger。
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv 根据 MSGRELAY_LOG_* 环境变量配置进程级 Logger。
//
//   - MSGRELAY_LOG_ENABLE: "1"/"true" 开启输出，默认开启。
//   - MSGRELAY_LOG_LEVEL: 日志级别，默认 "info"。
//   - MSGRELAY_LOG_STDOUT: 是否输出到标准输出，默认 true。
//   - MSGRELAY_LOG_FILE_DIR: 日志目录。
//   - MSGRELAY_LOG_FILE: 日志文件名，为空表示不写文件。
//   - MSGRELAY_LOG_FORMAT: "text"、"console" 或 "json"，默认 "text"。
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := getenvBool("MSGRELAY_LOG_ENABLE", true)

	cfg := &zlog.Config{
		Level:               getenvDefault("MSGRELAY_LOG_LEVEL", "info"),
		Format:              getenvDefault("MSGRELAY_LOG_FORMAT", "text"),
		Stdout:              getenvBool("MSGRELAY_LOG_STDOUT", true),
		DisableErrorVerbose: true,
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("MSGRELAY_LOG_FILE_DIR", ""),
			Filename: getenvDefault("MSGRELAY_LOG_FILE", ""),
		},
	}
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return errors.Wrap(err, "init global logger from env")
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig 按 "logging" 配置创建具名 Logger。
//
//	logging:
//	  snapshot:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: snapshot.log
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
