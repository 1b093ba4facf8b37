package session

// SessionManager 维护当前所有已接入连接的索引。
//
// 只负责注册、查询与移除，不创建连接；Unregister 不会关闭会话。
type SessionManager interface {
	// Register 注册会话，ID 重复时返回错误。
	Register(sess Session) error

	Get(id uint64) (sess Session, ok bool)

	// Unregister 移除会话索引，不存在时返回错误。
	Unregister(id uint64) error

	// Range 遍历会话快照，fn 返回 false 时停止。
	Range(fn func(sess Session) bool)

	Count() int

	// CloseAll 关闭全部已注册会话，返回关闭的数量。
	CloseAll() int
}
