package snapshot

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/msgrelay/internal/network/codec"
	"github.com/lk2023060901/msgrelay/internal/relay"
	"github.com/lk2023060901/msgrelay/pkg/metrics"
	"github.com/lk2023060901/msgrelay/pkg/util/merr"
)

const (
	AccountsKey    = "accounts"
	UndeliveredKey = "undelivered"
)

// Store 是账号与未投递队列的持久化快照。两个快照分别保存，彼此之间不保证原子性。
type Store struct {
	kv    KV
	codec *codec.BlobCodec
}

func NewStore(kv KV, c *codec.BlobCodec) *Store {
	if c == nil {
		c = codec.NewBlobCodec(codec.BlobOptions{})
	}
	return &Store{kv: kv, codec: c}
}

// Load 读取两个快照；未保存过的快照视为空。
func (s *Store) Load(ctx context.Context) ([]string, map[string][]relay.Message, error) {
	var accounts []string
	if err := s.load(ctx, AccountsKey, &accounts); err != nil {
		return nil, nil, err
	}
	undelivered := make(map[string][]relay.Message)
	if err := s.load(ctx, UndeliveredKey, &undelivered); err != nil {
		return nil, nil, err
	}
	return accounts, undelivered, nil
}

func (s *Store) SaveAccounts(ctx context.Context, accounts []string) error {
	if accounts == nil {
		accounts = []string{}
	}
	return s.save(ctx, AccountsKey, accounts)
}

func (s *Store) SaveUndelivered(ctx context.Context, undelivered map[string][]relay.Message) error {
	if undelivered == nil {
		undelivered = map[string][]relay.Message{}
	}
	return s.save(ctx, UndeliveredKey, undelivered)
}

func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) load(ctx context.Context, key string, v any) error {
	data, err := s.kv.Load(ctx, key)
	if errors.Is(err, merr.ErrIoKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.codec.Decode(key, data, v)
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	data, err := s.codec.Encode(key, v)
	if err != nil {
		return err
	}
	metrics.SnapshotBlobBytes.WithLabelValues(key).Observe(float64(len(data)))
	return s.kv.Save(ctx, key, data)
}
