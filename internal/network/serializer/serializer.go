package serializer

// Serializer 抽象了“对象 <-> 字节”的序列化能力，快照数据块通过它编码。
type Serializer interface {
	// Marshal 将任意对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到 v，v 通常为指针。
	Unmarshal(data []byte, v any) error
}
