// Package api 定义客户端与服务器共享的方法号与参数约定。
package api

import "time"

// Method 为请求帧中的方法号。
type Method = uint32

const (
	CreateAccount          Method = 1
	Login                  Method = 2
	Logout                 Method = 3
	DeleteAccount          Method = 4
	GetAccounts            Method = 5
	SendMessage            Method = 6
	GetUndeliveredMessages Method = 7
)

// Spec 描述一个方法的名称与参数个数。
type Spec struct {
	Name  string
	Arity int
}

// Catalogue 为全部方法的定义，参数按顺序为：
//
//	CREATE_ACCOUNT, LOGIN          username, ipAddress
//	LOGOUT, DELETE_ACCOUNT         username
//	GET_ACCOUNTS                   pattern（空串表示全部）
//	SEND_MESSAGE                   sender, recipient, body
//	GET_UNDELIVERED_MESSAGES       username
var Catalogue = map[Method]Spec{
	CreateAccount:          {Name: "CREATE_ACCOUNT", Arity: 2},
	Login:                  {Name: "LOGIN", Arity: 2},
	Logout:                 {Name: "LOGOUT", Arity: 1},
	DeleteAccount:          {Name: "DELETE_ACCOUNT", Arity: 1},
	GetAccounts:            {Name: "GET_ACCOUNTS", Arity: 1},
	SendMessage:            {Name: "SEND_MESSAGE", Arity: 3},
	GetUndeliveredMessages: {Name: "GET_UNDELIVERED_MESSAGES", Arity: 1},
}

// Arity 满足 codec.ArityFunc。
func Arity(m Method) (int, bool) {
	spec, ok := Catalogue[m]
	return spec.Arity, ok
}

// MessageFields 为 GET_UNDELIVERED_MESSAGES 响应中每条消息占用的字段数（sender, timestamp, body）。
const MessageFields = 3

// TimestampLayout 为消息时间戳在响应中的格式（UTC）。
const TimestampLayout = time.RFC3339Nano
