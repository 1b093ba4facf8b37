package framer

import (
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	network "github.com/lk2023060901/msgrelay/internal/network"
	"github.com/lk2023060901/msgrelay/internal/pool/bytebuffer"
)

// MaxFieldLen 为单个字符串字段的最大字节数（2 字节长度前缀）。
const MaxFieldLen = math.MaxUint16

const defaultMaxFields uint32 = 64

// NoFieldLimit 关闭字段数校验，用于读取对端可信且大小不定的响应帧。
const NoFieldLimit uint32 = math.MaxUint32

// 字段切片的预分配上限，字段数由对端声明，不能直接用于 make。
const preallocFields uint32 = 256

// ErrFieldTooLong 表示待写出的字符串超过 MaxFieldLen。
var ErrFieldTooLong = errors.New("framer: field too long")

// LengthPrefixedFramer 读写如下格式的帧：
//
//	head(uint32 BE) | count(uint32 BE) | count * (len(uint16 BE) | UTF-8 bytes)
//
// 请求帧的 head 为方法号，响应帧的 head 为成功标志。
type LengthPrefixedFramer struct {
	// MaxFields 为读帧时允许的最大字段数，超过视为协议错误。
	// 为 0 时使用默认值 64。
	MaxFields uint32
}

// NewLengthPrefixedFramer 创建帧读写器，maxFields 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFields uint32) *LengthPrefixedFramer {
	if maxFields == 0 {
		maxFields = defaultMaxFields
	}
	return &LengthPrefixedFramer{MaxFields: maxFields}
}

// WriteFrame 将整帧拼装到缓冲区后一次性写出，避免半帧写入。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, head uint32, fields []string) error {
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], head)
	_, _ = buf.Write(scratch[:])
	binary.BigEndian.PutUint32(scratch[:], uint32(len(fields)))
	_, _ = buf.Write(scratch[:])

	for i, field := range fields {
		if len(field) > MaxFieldLen {
			return errors.Wrapf(ErrFieldTooLong, "field %d has %d bytes", i, len(field))
		}
		binary.BigEndian.PutUint16(scratch[:2], uint16(len(field)))
		_, _ = buf.Write(scratch[:2])
		_, _ = buf.WriteString(field)
	}

	if _, err := w.Write(buf.B); err != nil {
		return errors.Wrap(err, "framer: write frame")
	}
	return nil
}

// ReadHead 读取帧头（head 与字段数）。
// 在帧起始处遇到 EOF 返回 ErrConnectionClosed。
func (f *LengthPrefixedFramer) ReadHead(r io.Reader) (head uint32, count uint32, err error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, network.WrapReadErr(err, "frame header")
	}
	return binary.BigEndian.Uint32(hdr[:4]), binary.BigEndian.Uint32(hdr[4:]), nil
}

// ReadFields 读取 count 个字符串字段。
func (f *LengthPrefixedFramer) ReadFields(r io.Reader, count uint32) ([]string, error) {
	if count > f.maxFields() {
		return nil, network.WrapProtocol("frame declares %d fields, max %d", count, f.maxFields())
	}
	fields := make([]string, 0, min(count, preallocFields))
	var lenBuf [2]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, network.WrapReadErr(err, "field length")
		}
		n := binary.BigEndian.Uint16(lenBuf[:])
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, network.WrapReadErr(err, "field body")
		}
		if !utf8.Valid(data) {
			return nil, network.WrapProtocol("field %d is not valid UTF-8", i)
		}
		fields = append(fields, string(data))
	}
	return fields, nil
}

func (f *LengthPrefixedFramer) maxFields() uint32 {
	if f == nil || f.MaxFields == 0 {
		return defaultMaxFields
	}
	return f.MaxFields
}
