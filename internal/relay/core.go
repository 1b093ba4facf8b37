package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/pkg/log"
	"github.com/lk2023060901/msgrelay/pkg/metrics"
)

// SnapshotSink 接收状态快照。Core 在锁内调用，实现不得阻塞，
// 传入的切片与 map 归实现方所有。
type SnapshotSink interface {
	SubmitAccounts(accounts []string)
	SubmitUndelivered(undelivered map[string][]Message)
}

// Stats 是 Core 的状态计数。
type Stats struct {
	Accounts int
	Sessions int
	Pending  int
}

type Option func(*Core)

// WithClock 替换消息时间戳的时钟。
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.mailbox.now = now
	}
}

// WithSnapshotSink 设置状态变化后的快照接收方。
func WithSnapshotSink(sink SnapshotSink) Option {
	return func(c *Core) {
		c.sink = sink
	}
}

// Core 组合账号目录、会话表、端口分配器与邮箱，每个 API 对应一个方法。
//
// 所有操作在同一把互斥锁内完成，锁内不做任何阻塞等待。
type Core struct {
	mu       sync.Mutex
	accounts *AccountDirectory
	ports    *PortAllocator
	sessions *SessionTable
	mailbox  *MessageMailbox
	sink     SnapshotSink
}

func NewCore(basePort int, opts ...Option) *Core {
	accounts := NewAccountDirectory()
	ports := NewPortAllocator(basePort)
	c := &Core{
		accounts: accounts,
		ports:    ports,
		sessions: NewSessionTable(accounts, ports),
		mailbox:  NewMessageMailbox(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore 用启动时装载的快照填充账号与未投递队列，不触发保存。
func (c *Core) Restore(accounts []string, undelivered map[string][]Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, username := range accounts {
		_ = c.accounts.Create(username)
	}
	c.mailbox.Restore(undelivered)
	c.observe()
}

// CreateAccount 注册账号并立即登录。
func (c *Core) CreateAccount(ctx context.Context, username, address string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.accounts.Create(username); err != nil {
		log.Ctx(ctx).Debug("create account rejected", zap.String("username", username), zap.Error(err))
		return Session{}, err
	}
	c.saveAccounts()

	s, err := c.sessions.Login(username, address)
	if err != nil {
		return Session{}, err
	}
	c.observe()
	log.Ctx(ctx).Info("account created",
		zap.String("username", username),
		zap.Uint64("connectionID", s.ConnectionID),
		zap.Int("port", s.Port))
	return s, nil
}

func (c *Core) Login(ctx context.Context, username, address string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Login(username, address)
	if err != nil {
		log.Ctx(ctx).Debug("login rejected", zap.String("username", username), zap.Error(err))
		return Session{}, err
	}
	c.observe()
	log.Ctx(ctx).Info("logged in",
		zap.String("username", username),
		zap.String("address", address),
		zap.Uint64("connectionID", s.ConnectionID),
		zap.Int("port", s.Port))
	return s, nil
}

func (c *Core) Logout(ctx context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Logout(username)
	if err != nil {
		log.Ctx(ctx).Debug("logout rejected", zap.String("username", username), zap.Error(err))
		return err
	}
	c.observe()
	log.Ctx(ctx).Info("logged out", zap.String("username", username), zap.Int("port", s.Port))
	return nil
}

// DeleteAccount 先强制登出（忽略结果）再删除账号，保证端口与会话随账号一起释放。
// 该账号的邮箱保留。
func (c *Core) DeleteAccount(ctx context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = c.sessions.Logout(username)
	if err := c.accounts.Delete(username); err != nil {
		c.observe()
		log.Ctx(ctx).Debug("delete account rejected", zap.String("username", username), zap.Error(err))
		return err
	}
	c.saveAccounts()
	c.observe()
	log.Ctx(ctx).Info("account deleted", zap.String("username", username))
	return nil
}

// ListAccounts 返回完整匹配 pattern 的账号，升序；pattern 为空返回全部。
func (c *Core) ListAccounts(ctx context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	accounts, err := c.accounts.List(pattern)
	if err != nil {
		log.Ctx(ctx).Debug("list accounts rejected", zap.String("pattern", pattern), zap.Error(err))
		return nil, err
	}
	return accounts, nil
}

// SendMessage 投递一条消息。收件人在线时进入已投递队列，否则进入未投递队列。
// 不校验收件人是否已注册。
func (c *Core) SendMessage(ctx context.Context, sender, recipient, body string) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	online := c.sessions.LoggedIn(recipient)
	msg := c.mailbox.Send(sender, recipient, body, online)
	if online {
		metrics.RelayMessages.WithLabelValues(metrics.DeliveredQueueLabel).Inc()
	} else {
		metrics.RelayMessages.WithLabelValues(metrics.UndeliveredQueueLabel).Inc()
		c.saveUndelivered()
	}
	c.observe()
	log.Ctx(ctx).Debug("message queued",
		zap.String("sender", sender),
		zap.String("recipient", recipient),
		zap.Bool("online", online))
	return msg, nil
}

// FetchUndelivered 取走并清空 username 的未投递消息。
func (c *Core) FetchUndelivered(ctx context.Context, username string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.mailbox.FetchUndelivered(username)
	if len(msgs) > 0 {
		c.saveUndelivered()
		c.observe()
		log.Ctx(ctx).Debug("undelivered messages drained",
			zap.String("username", username), zap.Int("count", len(msgs)))
	}
	return msgs
}

// Delivered 返回 username 已投递队列的副本。
func (c *Core) Delivered(username string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mailbox.Delivered(username)
}

// History 返回 username 已被取走的未投递消息。
func (c *Core) History(username string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mailbox.History(username)
}

func (c *Core) Exists(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts.Exists(username)
}

func (c *Core) Session(username string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Get(username)
}

// PortHeld 判断 address 上的端口当前是否已分配。
func (c *Core) PortHeld(address string, port int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ports.Held(address, port-c.ports.BasePort())
}

func (c *Core) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats()
}

func (c *Core) stats() Stats {
	return Stats{
		Accounts: c.accounts.Len(),
		Sessions: c.sessions.Len(),
		Pending:  c.mailbox.PendingCount(),
	}
}

func (c *Core) observe() {
	s := c.stats()
	metrics.RelayAccounts.Set(float64(s.Accounts))
	metrics.RelaySessions.Set(float64(s.Sessions))
	metrics.RelayPendingMessages.Set(float64(s.Pending))
}

func (c *Core) saveAccounts() {
	if c.sink == nil {
		return
	}
	accounts, _ := c.accounts.List("")
	c.sink.SubmitAccounts(accounts)
}

func (c *Core) saveUndelivered() {
	if c.sink == nil {
		return
	}
	c.sink.SubmitUndelivered(c.mailbox.SnapshotUndelivered())
}
