// Package bytebuffer 提供可复用的字节缓冲区，用于拼装出站帧。
package bytebuffer

import "github.com/valyala/bytebufferpool"

// ByteBuffer 是 bytebufferpool.ByteBuffer 的别名。
type ByteBuffer = bytebufferpool.ByteBuffer

var pool bytebufferpool.Pool

// Get 从池中取出一个空缓冲区。
func Get() *ByteBuffer {
	return pool.Get()
}

// Put 归还缓冲区，归还后不可再使用。
func Put(b *ByteBuffer) {
	if b != nil {
		pool.Put(b)
	}
}
