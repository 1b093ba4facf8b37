// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/pkg/log"
	"github.com/lk2023060901/msgrelay/pkg/util/merr"
)

// Do 反复执行 fn 直到成功、达到尝试次数、错误被 RetryErr 判定为不可重试或 ctx 结束。
// 每次失败后休眠时间翻倍，不超过 MaxSleepTime。返回最后一次 fn 的错误。
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := newDefaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	logger := log.Ctx(ctx)
	var lastErr error
	for i := uint(0); c.attempts == 0 || i < c.attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		// fn 因 ctx 结束而失败时，上一次的业务错误更有参考价值。
		if merr.IsCanceledOrTimeout(err) && lastErr != nil {
			err = lastErr
		}
		lastErr = err

		if c.isRetryErr != nil && !c.isRetryErr(err) {
			logger.Debug("retry stopped, error not retryable", zap.Uint("attempt", i+1), zap.Error(err))
			return err
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < c.sleep {
			logger.Warn("retry stopped, deadline too close", zap.Uint("attempt", i+1), zap.Error(err))
			return err
		}
		if i%4 == 0 {
			logger.Warn("retry func failed", zap.Uint("attempt", i+1), zap.Duration("sleep", c.sleep), zap.Error(err))
		}

		timer := time.NewTimer(c.sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
		c.sleep = min(c.sleep*2, c.maxSleepTime)
	}
	logger.Warn("retry func failed, attempts exhausted", zap.Uint("attempts", c.attempts), zap.Error(lastErr))
	return lastErr
}
