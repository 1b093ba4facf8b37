package snapshot

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/internal/network/codec"
	"github.com/lk2023060901/msgrelay/internal/network/compressor"
	"github.com/lk2023060901/msgrelay/internal/network/crypto"
	"github.com/lk2023060901/msgrelay/pkg/log"
	"github.com/lk2023060901/msgrelay/pkg/util/etcd"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendEtcd   = "etcd"
)

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	Prefix      string        `mapstructure:"prefix"`
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
	Embedded    bool          `mapstructure:"embedded"`
	DataDir     string        `mapstructure:"dataDir"`
}

// Config 为快照持久化配置。
type Config struct {
	Backend       string     `mapstructure:"backend"`
	Dir           string     `mapstructure:"dir"`
	Compress      bool       `mapstructure:"compress"`
	EncryptionKey string     `mapstructure:"encryptionKey"`
	MacKey        string     `mapstructure:"macKey"`
	Etcd          EtcdConfig `mapstructure:"etcd"`
}

// Open 按配置创建 Store。返回的 closer 释放压缩器等附属资源，需在 Store.Close 之后调用。
func Open(ctx context.Context, cfg Config) (*Store, func(), error) {
	blob, release, err := newBlobCodec(cfg)
	if err != nil {
		return nil, nil, err
	}
	kv, err := openKV(ctx, cfg)
	if err != nil {
		release()
		return nil, nil, err
	}
	log.Ctx(ctx).Info("snapshot store opened",
		zap.String("backend", cfg.Backend),
		zap.Bool("compress", cfg.Compress),
		zap.Bool("encrypt", cfg.EncryptionKey != ""))
	return NewStore(kv, blob), release, nil
}

func newBlobCodec(cfg Config) (*codec.BlobCodec, func(), error) {
	opts := codec.BlobOptions{}
	release := func() {}

	if cfg.Compress {
		zc, err := compressor.NewZstdCompressor()
		if err != nil {
			return nil, nil, errors.Wrap(err, "snapshot: init zstd")
		}
		opts.Compressor = zc
		opts.EnableCompression = true
		release = zc.Close
	}
	if cfg.EncryptionKey != "" {
		encKey, err := crypto.ParseKey(cfg.EncryptionKey)
		if err != nil {
			release()
			return nil, nil, err
		}
		macKey, err := crypto.ParseKey(cfg.MacKey)
		if err != nil {
			release()
			return nil, nil, err
		}
		enc, err := crypto.NewAESGCMHMAC(encKey, macKey)
		if err != nil {
			release()
			return nil, nil, err
		}
		opts.Encryptor = enc
		opts.EnableEncryption = true
	}
	return codec.NewBlobCodec(opts), release, nil
}

func openKV(ctx context.Context, cfg Config) (KV, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryKV(), nil
	case BackendFile:
		if cfg.Dir == "" {
			return nil, errors.New("snapshot: file backend requires snapshot.dir")
		}
		return NewFileKV(cfg.Dir)
	case BackendEtcd:
		return openEtcdKV(ctx, cfg.Etcd)
	default:
		return nil, errors.Newf("snapshot: unknown backend %q", cfg.Backend)
	}
}

func openEtcdKV(ctx context.Context, cfg EtcdConfig) (KV, error) {
	if cfg.Embedded {
		if err := etcd.InitEtcdServer(etcd.EmbedConfig{DataDir: cfg.DataDir}); err != nil {
			return nil, errors.Wrap(err, "snapshot: start embedded etcd")
		}
		cli, err := etcd.GetEmbedEtcdClient()
		if err != nil {
			return nil, err
		}
		return NewEtcdKV(cli, cfg.Prefix, false), nil
	}

	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("snapshot: etcd backend requires snapshot.etcd.endpoints")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return nil, errors.Wrap(err, "snapshot: connect etcd")
	}
	return NewEtcdKV(cli, cfg.Prefix, true), nil
}
