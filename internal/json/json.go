// Package json 统一项目内的 JSON 编解码实现，底层使用 bytedance/sonic。
package json

import (
	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

// Marshal 与 encoding/json.Marshal 行为一致（map key 排序、HTML 转义）。
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent 输出带缩进的 JSON。
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Valid 报告 data 是否为合法 JSON。
func Valid(data []byte) bool {
	return api.Valid(data)
}
