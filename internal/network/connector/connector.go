package connector

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/internal/api"
	"github.com/lk2023060901/msgrelay/internal/network/codec"
	"github.com/lk2023060901/msgrelay/pkg/log"
)

// ErrCallFailed 表示服务器返回了失败响应，错误信息为服务器给出的 message。
var ErrCallFailed = errors.New("connector: call failed")

// ErrClientBroken 表示此前的读写失败已使连接上的帧边界不可信，客户端需重新拨号。
var ErrClientBroken = errors.New("connector: client broken")

// Config 为客户端连接配置。
type Config struct {
	// DialTimeout 为单次拨号超时，0 表示 5s。
	DialTimeout time.Duration
	// MaxElapsed 为拨号重试的总时长上限，0 表示只尝试一次。
	MaxElapsed time.Duration
	// MaxValues 为响应中允许的最大字段数，0 表示不限。
	MaxValues uint32
}

// SessionInfo 为 CREATE_ACCOUNT/LOGIN 成功后返回的会话信息。
type SessionInfo struct {
	ConnectionID uint64
	Port         int
}

// Message 为 GET_UNDELIVERED_MESSAGES 返回的一条消息。
type Message struct {
	Sender    string
	Timestamp time.Time
	Body      string
}

// Client 是协议的同步客户端，一次只有一个请求在途。
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	codec  *codec.WireCodec
	broken error
}

// Dial 连接服务器，失败时按指数退避重试直到 MaxElapsed 或 ctx 结束。
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	var b backoff.BackOff
	if cfg.MaxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 50 * time.Millisecond
		eb.MaxElapsedTime = cfg.MaxElapsed
		b = eb
	} else {
		b = &backoff.StopBackOff{}
	}

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	attempt := 0
	conn, err := backoff.RetryNotifyWithData(func() (net.Conn, error) {
		attempt++
		return dialer.DialContext(ctx, "tcp", addr)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Ctx(ctx).Debug("dial failed, retrying",
			zap.String("addr", addr), zap.Int("attempt", attempt), zap.Duration("next", next), zap.Error(err))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connector: dial %s", addr)
	}
	return NewClient(conn, cfg), nil
}

// NewClient 在已建立的连接上创建客户端。
func NewClient(conn net.Conn, cfg Config) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		codec:  codec.NewWireCodec(nil, 0).WithMaxValues(cfg.MaxValues),
	}
}

// Call 发送请求并等待响应，不解释 Success。
// 任何编解码错误都会关闭连接，之后的调用返回 ErrClientBroken。
func (c *Client) Call(method uint32, args ...string) (codec.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return codec.Response{}, errors.Mark(c.broken, ErrClientBroken)
	}
	if err := c.codec.EncodeRequest(c.conn, codec.Request{Method: method, Args: args}); err != nil {
		return codec.Response{}, c.fail(err)
	}
	resp, err := c.codec.DecodeResponse(c.reader)
	if err != nil {
		return codec.Response{}, c.fail(err)
	}
	return resp, nil
}

// fail 在持锁状态下标记客户端不可用并关闭连接。
func (c *Client) fail(err error) error {
	c.broken = err
	_ = c.conn.Close()
	return err
}

// invoke 调用方法，失败响应转换为 ErrCallFailed。
func (c *Client) invoke(method uint32, args ...string) ([]string, error) {
	resp, err := c.Call(method, args...)
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, errors.Newf("connector: empty response for method %d", method)
	}
	if !resp.Success {
		return nil, errors.Wrap(ErrCallFailed, resp.Values[0])
	}
	return resp.Values, nil
}

func (c *Client) session(method uint32, username, ip string) (SessionInfo, error) {
	values, err := c.invoke(method, username, ip)
	if err != nil {
		return SessionInfo{}, err
	}
	if len(values) != 3 {
		return SessionInfo{}, errors.Newf("connector: expected 3 values, got %d", len(values))
	}
	id, err := strconv.ParseUint(values[1], 10, 64)
	if err != nil {
		return SessionInfo{}, errors.Wrap(err, "connector: parse connection id")
	}
	port, err := strconv.Atoi(values[2])
	if err != nil {
		return SessionInfo{}, errors.Wrap(err, "connector: parse port")
	}
	return SessionInfo{ConnectionID: id, Port: port}, nil
}

func (c *Client) CreateAccount(username, ip string) (SessionInfo, error) {
	return c.session(api.CreateAccount, username, ip)
}

func (c *Client) Login(username, ip string) (SessionInfo, error) {
	return c.session(api.Login, username, ip)
}

func (c *Client) Logout(username string) error {
	_, err := c.invoke(api.Logout, username)
	return err
}

func (c *Client) DeleteAccount(username string) error {
	_, err := c.invoke(api.DeleteAccount, username)
	return err
}

// GetAccounts 返回完整匹配 pattern 的账号，空 pattern 返回全部。
func (c *Client) GetAccounts(pattern string) ([]string, error) {
	values, err := c.invoke(api.GetAccounts, pattern)
	if err != nil {
		return nil, err
	}
	return values[1:], nil
}

func (c *Client) SendMessage(sender, recipient, body string) error {
	_, err := c.invoke(api.SendMessage, sender, recipient, body)
	return err
}

// GetUndeliveredMessages 取走离线消息，服务器侧同时清空队列。
func (c *Client) GetUndeliveredMessages(username string) ([]Message, error) {
	values, err := c.invoke(api.GetUndeliveredMessages, username)
	if err != nil {
		return nil, err
	}
	flat := values[1:]
	if len(flat)%api.MessageFields != 0 {
		return nil, errors.Newf("connector: malformed message list of %d values", len(flat))
	}
	msgs := make([]Message, 0, len(flat)/api.MessageFields)
	for i := 0; i < len(flat); i += api.MessageFields {
		ts, err := time.Parse(api.TimestampLayout, flat[i+1])
		if err != nil {
			return nil, errors.Wrap(err, "connector: parse timestamp")
		}
		msgs = append(msgs, Message{Sender: flat[i], Timestamp: ts, Body: flat[i+2]})
	}
	return msgs, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
