package compressor

// Compressor 抽象了对内存块的单次压缩/解压。
type Compressor interface {
	// Compress 将 src 压缩后追加到 dst[:0]，返回完整的压缩数据。
	Compress(dst, src []byte) (packet []byte, err error)

	// Decompress 为 Compress 的逆过程。
	Decompress(dst, src []byte) (plain []byte, err error)
}

// NopCompressor 原样返回输入，用于关闭压缩。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

var _ Compressor = NopCompressor{}
