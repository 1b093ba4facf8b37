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

package log

import (
	"sync/atomic"

	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MLogger 在 zap.Logger 之上增加限流输出，连接级别的告警用它避免刷屏。
type MLogger struct {
	*zap.Logger
	limiter atomic.Pointer[utils.ReconfigurableRateLimiter]
}

// With 返回附加 fields 的子 Logger，字段在首次输出时才编码。
func (l *MLogger) With(fields ...zap.Field) *MLogger {
	return &MLogger{
		Logger: l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return NewLazyWith(core, fields)
		})),
	}
}

// WithRateGroup 让 l 使用名为 group 的共享限流器，同名的 Logger 共用额度。
// 再次以相同名字调用会更新该组的速率。
func (l *MLogger) WithRateGroup(group string, creditPerSecond, maxBalance float64) *MLogger {
	fresh := utils.NewRateLimiter(creditPerSecond, maxBalance)
	rl := fresh
	if v, loaded := _namedRateLimiters.LoadOrStore(group, fresh); loaded {
		rl = v.(*utils.ReconfigurableRateLimiter)
		rl.Update(creditPerSecond, maxBalance)
	}
	l.limiter.Store(rl)
	return l
}

func (l *MLogger) rateLimiter() RateLimiter {
	if rl := l.limiter.Load(); rl != nil {
		return rl
	}
	return R()
}

// RatedWarn 在额度允许时输出 Warn 日志，返回是否输出。
func (l *MLogger) RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	if !l.rateLimiter().CheckCredit(cost) {
		return false
	}
	l.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
	return true
}
