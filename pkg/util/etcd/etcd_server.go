package etcd

import (
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3client"
	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/pkg/log"
)

const readyTimeout = 30 * time.Second

// EmbedConfig 描述进程内嵌 etcd 的启动参数。
type EmbedConfig struct {
	DataDir    string
	ClientURL  string // 为空时使用 embed 默认值
	PeerURL    string
	LogLevel   string
	ConfigPath string
}

var (
	initOnce   sync.Once
	closeOnce  sync.Once
	etcdServer *embed.Etcd
)

// InitEtcdServer 启动进程内嵌 etcd 单例，重复调用只生效一次。
func InitEtcdServer(cfg EmbedConfig) error {
	var initError error
	initOnce.Do(func() {
		ecfg, err := buildEmbedConfig(cfg)
		if err != nil {
			initError = err
			return
		}
		e, err := embed.StartEtcd(ecfg)
		if err != nil {
			log.Error("failed to start embedded etcd", zap.Error(err))
			initError = err
			return
		}
		select {
		case <-e.Server.ReadyNotify():
		case <-time.After(readyTimeout):
			e.Close()
			initError = errors.New("embedded etcd not ready in time")
			return
		}
		etcdServer = e
		log.Info("embedded etcd started", zap.String("data", cfg.DataDir), zap.String("config", cfg.ConfigPath))
	})
	return initError
}

func buildEmbedConfig(cfg EmbedConfig) (*embed.Config, error) {
	var ecfg *embed.Config
	if cfg.ConfigPath != "" {
		fromFile, err := embed.ConfigFromFile(cfg.ConfigPath)
		if err != nil {
			return nil, errors.Wrapf(err, "load etcd config %s", cfg.ConfigPath)
		}
		ecfg = fromFile
	} else {
		ecfg = embed.NewConfig()
	}
	ecfg.Dir = cfg.DataDir
	if cfg.LogLevel != "" {
		ecfg.LogLevel = cfg.LogLevel
	}
	if cfg.ClientURL != "" {
		u, err := url.Parse(cfg.ClientURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse client url")
		}
		ecfg.ListenClientUrls = []url.URL{*u}
		ecfg.AdvertiseClientUrls = []url.URL{*u}
	}
	if cfg.PeerURL != "" {
		u, err := url.Parse(cfg.PeerURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse peer url")
		}
		ecfg.ListenPeerUrls = []url.URL{*u}
		ecfg.AdvertisePeerUrls = []url.URL{*u}
		ecfg.InitialCluster = ecfg.InitialClusterFromName(ecfg.Name)
	}
	return ecfg, nil
}

// GetEmbedEtcdClient 返回直连嵌入式 etcd 的 v3 客户端。
func GetEmbedEtcdClient() (*clientv3.Client, error) {
	if etcdServer == nil {
		return nil, errors.New("embedded etcd is not running")
	}
	return v3client.New(etcdServer.Server), nil
}

func HasServer() bool {
	return etcdServer != nil
}

// StopEtcdServer 关闭嵌入式 etcd。
func StopEtcdServer() {
	if etcdServer != nil {
		closeOnce.Do(func() {
			etcdServer.Close()
		})
	}
}
