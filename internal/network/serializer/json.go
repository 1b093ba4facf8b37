package serializer

import (
	"github.com/lk2023060901/msgrelay/internal/json"
)

// JSONSerializer 使用 internal/json（基于 bytedance/sonic）编解码。
type JSONSerializer struct{}

var _ Serializer = JSONSerializer{}

func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
