package codec

import (
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/msgrelay/internal/network/compressor"
	"github.com/lk2023060901/msgrelay/internal/network/crypto"
	"github.com/lk2023060901/msgrelay/internal/network/serializer"
)

const (
	blobVersion byte = 1

	flagCompressed byte = 1 << 0
	flagEncrypted  byte = 1 << 1

	blobHeaderSize = 2
)

// ErrBlobCorrupted 表示快照数据无法解析（头部非法或开关与写入时不一致）。
var ErrBlobCorrupted = errors.New("codec: blob corrupted")

// BlobOptions 为 BlobCodec 的依赖注入参数。
type BlobOptions struct {
	Serializer serializer.Serializer // 为 nil 时使用 JSONSerializer
	Compressor compressor.Compressor // 为 nil 时使用 NopCompressor
	Encryptor  crypto.Encryptor      // 为 nil 时使用 NopEncryptor

	EnableCompression bool
	EnableEncryption  bool
}

// BlobCodec 将对象编码为可落盘的字节块：
//
//	Encode：obj --> serializer --> [compress?] --> [encrypt?] --> version|flags|payload
//	Decode：version|flags|payload --> [decrypt?] --> [decompress?] --> serializer --> obj
//
// 加密时以 key 作为关联数据，使一个 key 下的数据块不能被挪用到另一个 key。
type BlobCodec struct {
	serializer serializer.Serializer
	compressor compressor.Compressor
	encryptor  crypto.Encryptor

	compress bool
	encrypt  bool
}

func NewBlobCodec(opts BlobOptions) *BlobCodec {
	c := &BlobCodec{
		serializer: opts.Serializer,
		compressor: opts.Compressor,
		encryptor:  opts.Encryptor,
		compress:   opts.EnableCompression,
		encrypt:    opts.EnableEncryption,
	}
	if c.serializer == nil {
		c.serializer = serializer.JSONSerializer{}
	}
	if c.compressor == nil {
		c.compressor = compressor.NopCompressor{}
	}
	if c.encryptor == nil {
		c.encryptor = crypto.NopEncryptor{}
	}
	return c
}

// Encode 编码 v，key 为数据块的存储键。
func (c *BlobCodec) Encode(key string, v any) ([]byte, error) {
	body, err := c.serializer.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "codec: marshal blob")
	}

	var flags byte
	if c.compress && len(body) > 0 {
		packed, err := c.compressor.Compress(nil, body)
		if err != nil {
			return nil, errors.Wrap(err, "codec: compress blob")
		}
		body = packed
		flags |= flagCompressed
	}
	if c.encrypt && len(body) > 0 {
		flags |= flagEncrypted
		sealed, err := c.encryptor.Encrypt(body, buildAAD(key, flags))
		if err != nil {
			return nil, errors.Wrap(err, "codec: encrypt blob")
		}
		body = sealed
	}

	out := make([]byte, 0, blobHeaderSize+len(body))
	out = append(out, blobVersion, flags)
	return append(out, body...), nil
}

// Decode 将 Encode 的输出解码到 v（指针）。
func (c *BlobCodec) Decode(key string, data []byte, v any) error {
	if len(data) < blobHeaderSize || data[0] != blobVersion {
		return errors.Wrapf(ErrBlobCorrupted, "key %s: bad header", key)
	}
	flags := data[1]
	body := data[blobHeaderSize:]

	if flags&flagEncrypted != 0 {
		if !c.encrypt {
			return errors.Wrapf(ErrBlobCorrupted, "key %s: encrypted blob but encryption disabled", key)
		}
		plain, err := c.encryptor.Decrypt(body, buildAAD(key, flags))
		if err != nil {
			return errors.Wrapf(err, "codec: decrypt blob %s", key)
		}
		body = plain
	}
	if flags&flagCompressed != 0 {
		if !c.compress {
			return errors.Wrapf(ErrBlobCorrupted, "key %s: compressed blob but compression disabled", key)
		}
		plain, err := c.compressor.Decompress(nil, body)
		if err != nil {
			return errors.Wrapf(err, "codec: decompress blob %s", key)
		}
		body = plain
	}
	if len(body) == 0 {
		return nil
	}
	if err := c.serializer.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "codec: unmarshal blob %s", key)
	}
	return nil
}

// buildAAD 关联数据：version | flags | key。
func buildAAD(key string, flags byte) []byte {
	aad := make([]byte, 0, blobHeaderSize+len(key))
	aad = append(aad, blobVersion, flags)
	return append(aad, key...)
}
