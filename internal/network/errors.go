package network

import (
	"io"
	"net"

	"github.com/cockroachdb/errors"
)

// Stage 表示连接处理链路中的阶段，用于在回调与日志中标记错误位置。
type Stage string

const (
	StageAccept   Stage = "accept"
	StageDecode   Stage = "decode"   // 字节流 -> Request
	StageDispatch Stage = "dispatch" // Request -> 业务处理
	StageEncode   Stage = "encode"   // Response -> 字节
	StageSend     Stage = "send"
)

const (
	ErrCodeProtocol         = "network:protocol_error"
	ErrCodeConnectionClosed = "network:connection_closed"
)

var (
	// ErrProtocol 表示帧格式错误或参数个数与方法不符，只终止当前连接。
	ErrProtocol = errors.New(ErrCodeProtocol)

	// ErrConnectionClosed 表示对端在读帧过程中关闭了连接，属于正常断开，不记为错误。
	ErrConnectionClosed = errors.New(ErrCodeConnectionClosed)
)

// WrapProtocol 将 err 标记为 ErrProtocol 并附加说明。
func WrapProtocol(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrProtocol)
}

// WrapReadErr 将读帧时遇到的 EOF 类错误归一为 ErrConnectionClosed，其余原样包装。
func WrapReadErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return errors.Mark(errors.Wrapf(err, "read %s", what), ErrConnectionClosed)
	}
	return errors.Wrapf(err, "read %s", what)
}

func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}

func IsConnectionClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed)
}
