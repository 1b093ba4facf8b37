package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/lk2023060901/msgrelay/pkg/util/merr"
)

// KV 是快照数据块的存储后端。键不存在时 Load 返回 merr.ErrIoKeyNotFound。
type KV interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Close() error
}

// MemoryKV 进程内存后端，重启即丢失。
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ KV = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (kv *MemoryKV) Load(_ context.Context, key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	if !ok {
		return nil, merr.WrapErrIoKeyNotFound(key)
	}
	return append([]byte(nil), v...), nil
}

func (kv *MemoryKV) Save(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = append([]byte(nil), value...)
	return nil
}

func (kv *MemoryKV) Close() error {
	return nil
}

// FileKV 每个键一个文件，写入先落临时文件再 rename。
type FileKV struct {
	dir string
}

var _ KV = (*FileKV)(nil)

func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, merr.WrapErrIoFailed(dir, err)
	}
	return &FileKV{dir: dir}, nil
}

func (kv *FileKV) path(key string) string {
	return filepath.Join(kv.dir, key+".snap")
}

func (kv *FileKV) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(kv.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, merr.WrapErrIoKeyNotFound(key)
	}
	if err != nil {
		return nil, merr.WrapErrIoFailed(key, err)
	}
	return data, nil
}

func (kv *FileKV) Save(_ context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(kv.dir, key+".*.tmp")
	if err != nil {
		return merr.WrapErrIoFailed(key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return merr.WrapErrIoFailed(key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return merr.WrapErrIoFailed(key, err)
	}
	if err := tmp.Close(); err != nil {
		return merr.WrapErrIoFailed(key, err)
	}
	if err := os.Rename(tmp.Name(), kv.path(key)); err != nil {
		return merr.WrapErrIoFailed(key, err)
	}
	return nil
}

func (kv *FileKV) Close() error {
	return nil
}

// EtcdKV 将数据块存放在 etcd 的 prefix 之下。
type EtcdKV struct {
	cli    *clientv3.Client
	prefix string
	owned  bool
}

var _ KV = (*EtcdKV)(nil)

// NewEtcdKV 包装已有客户端；owned 为 true 时 Close 会关闭客户端。
func NewEtcdKV(cli *clientv3.Client, prefix string, owned bool) *EtcdKV {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &EtcdKV{cli: cli, prefix: prefix, owned: owned}
}

func (kv *EtcdKV) Load(ctx context.Context, key string) ([]byte, error) {
	resp, err := kv.cli.Get(ctx, kv.prefix+key)
	if err != nil {
		return nil, merr.WrapErrIoFailed(key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, merr.WrapErrIoKeyNotFound(key)
	}
	return resp.Kvs[0].Value, nil
}

func (kv *EtcdKV) Save(ctx context.Context, key string, value []byte) error {
	if _, err := kv.cli.Put(ctx, kv.prefix+key, string(value)); err != nil {
		return merr.WrapErrIoFailed(key, err)
	}
	return nil
}

func (kv *EtcdKV) Close() error {
	if kv.owned {
		return kv.cli.Close()
	}
	return nil
}
