package application

import (
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/msgrelay/internal/server"
	"github.com/lk2023060901/msgrelay/internal/storage/snapshot"
)

// Config 为服务的完整配置。
type Config struct {
	Server   server.Config   `mapstructure:"server"`
	Snapshot snapshot.Config `mapstructure:"snapshot"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
}

type MetricsConfig struct {
	// Address 为 /metrics 与 /healthz 的监听地址，为空时不启动。
	Address string `mapstructure:"address"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.address":            "127.0.0.1:50051",
		"server.basePort":           50052,
		"server.workerPoolSize":     0,
		"server.maxArgs":            64,
		"snapshot.backend":          snapshot.BackendMemory,
		"snapshot.dir":              "./data",
		"snapshot.compress":         false,
		"snapshot.encryptionKey":    "",
		"snapshot.macKey":           "",
		"snapshot.etcd.endpoints":   []string{},
		"snapshot.etcd.prefix":      "msgrelay/snapshot",
		"snapshot.etcd.dialTimeout": "5s",
		"snapshot.etcd.embedded":    false,
		"snapshot.etcd.dataDir":     "./data/etcd",
		"metrics.address":           "",
	}
}

func (c Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("config: server.address is empty")
	}
	if c.Server.BasePort <= 0 || c.Server.BasePort > 65535 {
		return errors.Newf("config: server.basePort %d out of range", c.Server.BasePort)
	}
	if c.Server.WorkerPoolSize < 0 {
		return errors.Newf("config: server.workerPoolSize %d is negative", c.Server.WorkerPoolSize)
	}
	if c.Snapshot.EncryptionKey != "" && c.Snapshot.MacKey == "" {
		return errors.New("config: snapshot.macKey is required when snapshot.encryptionKey is set")
	}
	return nil
}
