// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/pkg/log"
)

type poolOption struct {
	// concealPanic 为 true 时任务 panic 只记录日志，不再向上抛出。
	concealPanic bool
	panicHandler func(any)
}

// antsOptions 转换为 ants 选项。ants 会 recover 任务中的 panic，这里决定之后怎么处理。
func (opt *poolOption) antsOptions() []ants.Option {
	return []ants.Option{
		ants.WithPanicHandler(func(v any) {
			log.Error("conc pool worker panicked", zap.Any("panic", v))
			switch {
			case opt.panicHandler != nil:
				opt.panicHandler(v)
			case !opt.concealPanic:
				panic(v)
			}
		}),
	}
}

// PoolOption 用于配置协程池行为的选项函数。
type PoolOption func(opt *poolOption)

// WithConcealPanic 设置任务 panic 后是否只记录日志。
// 连接处理任务使用该选项，单个连接的 panic 不会带走整个进程。
func WithConcealPanic(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.concealPanic = v
	}
}

// WithPanicHandler 设置任务 panic 时的回调，设置后 panic 不再向上抛出。
func WithPanicHandler(fn func(any)) PoolOption {
	return func(opt *poolOption) {
		opt.panicHandler = fn
	}
}
