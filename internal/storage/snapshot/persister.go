package snapshot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/internal/relay"
	"github.com/lk2023060901/msgrelay/pkg/log"
	"github.com/lk2023060901/msgrelay/pkg/metrics"
	"github.com/lk2023060901/msgrelay/pkg/util/conc"
	"github.com/lk2023060901/msgrelay/pkg/util/merr"
	"github.com/lk2023060901/msgrelay/pkg/util/retry"
)

// Persister 在后台协程中异步保存快照，实现 relay.SnapshotSink。
//
// 同类快照只保留最新一份：保存尚未开始时提交的新快照会覆盖旧快照。
// 保存失败按 retry 配置重试，最终失败只记录日志。
type Persister struct {
	log.Binder

	store     *Store
	retryOpts []retry.Option

	mu                 sync.Mutex
	pendingAccounts    []string
	hasAccounts        bool
	pendingUndelivered map[string][]relay.Message
	hasUndelivered     bool

	saveMu sync.Mutex
	notify chan struct{}
	stop   chan struct{}
	done   *conc.Future[struct{}]
	once   sync.Once
}

var _ relay.SnapshotSink = (*Persister)(nil)

// NewPersister 创建并启动后台保存协程。
func NewPersister(store *Store, retryOpts ...retry.Option) *Persister {
	if len(retryOpts) == 0 {
		retryOpts = []retry.Option{
			retry.Attempts(5),
			retry.Sleep(100 * time.Millisecond),
			retry.MaxSleepTime(2 * time.Second),
		}
	}
	p := &Persister{
		store:     store,
		retryOpts: append(retryOpts, retry.RetryErr(merr.IsRetryableErr)),
		notify:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	p.BindComponent("snapshot-persister")
	p.done = conc.Go(func() (struct{}, error) {
		p.loop()
		return struct{}{}, nil
	})
	return p
}

func (p *Persister) SubmitAccounts(accounts []string) {
	p.mu.Lock()
	if p.hasAccounts {
		metrics.SnapshotCoalesced.WithLabelValues(AccountsKey).Inc()
	}
	p.pendingAccounts, p.hasAccounts = accounts, true
	p.mu.Unlock()
	p.wake()
}

func (p *Persister) SubmitUndelivered(undelivered map[string][]relay.Message) {
	p.mu.Lock()
	if p.hasUndelivered {
		metrics.SnapshotCoalesced.WithLabelValues(UndeliveredKey).Inc()
	}
	p.pendingUndelivered, p.hasUndelivered = undelivered, true
	p.mu.Unlock()
	p.wake()
}

func (p *Persister) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Persister) loop() {
	for {
		select {
		case <-p.notify:
			_ = p.Flush(context.Background())
		case <-p.stop:
			return
		}
	}
}

// Flush 同步保存当前待保存的快照，返回最后一个保存错误。
func (p *Persister) Flush(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	accounts, hasAccounts := p.pendingAccounts, p.hasAccounts
	undelivered, hasUndelivered := p.pendingUndelivered, p.hasUndelivered
	p.pendingAccounts, p.hasAccounts = nil, false
	p.pendingUndelivered, p.hasUndelivered = nil, false
	p.mu.Unlock()

	var errs []error
	if hasAccounts {
		errs = append(errs, p.save(ctx, AccountsKey, func() error {
			return p.store.SaveAccounts(ctx, accounts)
		}))
	}
	if hasUndelivered {
		errs = append(errs, p.save(ctx, UndeliveredKey, func() error {
			return p.store.SaveUndelivered(ctx, undelivered)
		}))
	}
	return merr.Combine(errs...)
}

func (p *Persister) save(ctx context.Context, kind string, fn func() error) error {
	start := time.Now()
	err := retry.Do(ctx, fn, p.retryOpts...)
	metrics.SnapshotSaveLatency.WithLabelValues(kind).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.SnapshotSaves.WithLabelValues(kind, metrics.FailureLabel).Inc()
		p.Logger().Warn("snapshot save failed", zap.String("kind", kind), zap.Error(err))
		return err
	}
	metrics.SnapshotSaves.WithLabelValues(kind, metrics.SuccessLabel).Inc()
	p.Logger().Debug("snapshot saved", zap.String("kind", kind))
	return nil
}

// Close 停止后台协程并保存最后一次提交的快照。
func (p *Persister) Close(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		close(p.stop)
		_, _ = p.done.Await()
		err = p.Flush(ctx)
	})
	return err
}
