package relay

import (
	"go.uber.org/atomic"

	"github.com/lk2023060901/msgrelay/pkg/util/merr"
	"github.com/lk2023060901/msgrelay/pkg/util/typeutil"
)

// Session 是一个账号的登录状态。
type Session struct {
	Username     string
	ConnectionID uint64
	Address      string
	Offset       int
	Port         int
}

// SessionTable 维护账号的登录/登出状态机，每个账号至多一个 Session。
// 非并发安全，由 Core 加锁访问。
type SessionTable struct {
	accounts *AccountDirectory
	ports    *PortAllocator
	sessions map[string]Session
	nextID   atomic.Uint64
}

func NewSessionTable(accounts *AccountDirectory, ports *PortAllocator) *SessionTable {
	return &SessionTable{
		accounts: accounts,
		ports:    ports,
		sessions: make(map[string]Session),
	}
}

// Login 为已注册账号分配端口与连接号。
func (t *SessionTable) Login(username, address string) (Session, error) {
	if !t.accounts.Exists(username) {
		return Session{}, merr.WrapErrAccountNotFound(username)
	}
	if _, ok := t.sessions[username]; ok {
		return Session{}, merr.WrapErrSessionAlreadyLoggedIn(username)
	}
	offset := t.ports.Acquire(address)
	s := Session{
		Username:     username,
		ConnectionID: t.nextID.Inc(),
		Address:      address,
		Offset:       offset,
		Port:         t.ports.Port(offset),
	}
	t.sessions[username] = s
	return s, nil
}

// Logout 释放端口并删除 Session。
func (t *SessionTable) Logout(username string) (Session, error) {
	s, ok := t.sessions[username]
	if !ok {
		return Session{}, merr.WrapErrSessionNotLoggedIn(username)
	}
	t.ports.Release(s.Address, s.Offset)
	delete(t.sessions, username)
	return s, nil
}

func (t *SessionTable) Get(username string) (Session, bool) {
	s, ok := t.sessions[username]
	return s, ok
}

func (t *SessionTable) LoggedIn(username string) bool {
	_, ok := t.sessions[username]
	return ok
}

func (t *SessionTable) Len() int {
	return len(t.sessions)
}

// Online 返回已登录的用户名，升序。
func (t *SessionTable) Online() []string {
	names := typeutil.NewSet[string]()
	for username := range t.sessions {
		names.Insert(username)
	}
	return typeutil.Sorted(names)
}
