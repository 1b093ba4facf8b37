package codec

import (
	"io"

	"github.com/cockroachdb/errors"

	network "github.com/lk2023060901/msgrelay/internal/network"
	"github.com/lk2023060901/msgrelay/internal/network/framer"
)

// Request 是一次 API 调用：方法号与按位置排列的字符串参数。
type Request struct {
	Method uint32
	Args   []string
}

// Response 是一次 API 调用的结果。Values[0] 通常为提示信息。
type Response struct {
	Success bool
	Values  []string
}

// ArityFunc 返回方法号期望的参数个数；known 为 false 表示未知方法。
type ArityFunc func(method uint32) (arity int, known bool)

// WireCodec 实现请求/响应帧的编解码：
//
//	请求：method(uint32) | argc(uint32) | argc * string
//	响应：success(uint32, 0/1) | n(uint32) | n * string
//
// string 为 2 字节长度前缀的 UTF-8 字节。
type WireCodec struct {
	framer *framer.LengthPrefixedFramer
	values *framer.LengthPrefixedFramer
	arity  ArityFunc
}

// NewWireCodec 创建编解码器。arity 为 nil 时不校验参数个数；
// maxArgs 只限制请求帧可声明的参数个数（0 使用默认值），响应帧默认不限字段数。
func NewWireCodec(arity ArityFunc, maxArgs uint32) *WireCodec {
	return &WireCodec{
		framer: framer.NewLengthPrefixedFramer(maxArgs),
		values: framer.NewLengthPrefixedFramer(framer.NoFieldLimit),
		arity:  arity,
	}
}

// WithMaxValues 限制 DecodeResponse 接受的字段数，0 表示不限。
func (c *WireCodec) WithMaxValues(n uint32) *WireCodec {
	if n == 0 {
		n = framer.NoFieldLimit
	}
	c.values = framer.NewLengthPrefixedFramer(n)
	return c
}

// EncodeRequest 写出一个请求帧。
func (c *WireCodec) EncodeRequest(w io.Writer, req Request) error {
	return c.framer.WriteFrame(w, req.Method, req.Args)
}

// DecodeRequest 读取一个请求帧。
//
// 已知方法的参数个数不符时返回 ErrProtocol；未知方法的参数照常读出，
// 由上层返回失败响应。读帧途中遇到 EOF 返回 ErrConnectionClosed。
func (c *WireCodec) DecodeRequest(r io.Reader) (Request, error) {
	method, argc, err := c.framer.ReadHead(r)
	if err != nil {
		return Request{}, err
	}
	if c.arity != nil {
		if want, known := c.arity(method); known && int64(want) != int64(argc) {
			return Request{}, network.WrapProtocol("method %d expects %d args, got %d", method, want, argc)
		}
	}
	args, err := c.framer.ReadFields(r, argc)
	if err != nil {
		return Request{}, errors.Wrapf(err, "method %d", method)
	}
	return Request{Method: method, Args: args}, nil
}

// EncodeResponse 写出一个响应帧。
func (c *WireCodec) EncodeResponse(w io.Writer, resp Response) error {
	var flag uint32
	if resp.Success {
		flag = 1
	}
	return c.framer.WriteFrame(w, flag, resp.Values)
}

// DecodeResponse 读取一个响应帧，成功标志不是 0/1 时返回 ErrProtocol。
func (c *WireCodec) DecodeResponse(r io.Reader) (Response, error) {
	flag, n, err := c.framer.ReadHead(r)
	if err != nil {
		return Response{}, err
	}
	if flag > 1 {
		return Response{}, network.WrapProtocol("invalid success flag %d", flag)
	}
	values, err := c.values.ReadFields(r, n)
	if err != nil {
		return Response{}, err
	}
	return Response{Success: flag == 1, Values: values}, nil
}
