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
	"fmt"

	ants "github.com/panjf2000/ants/v2"
)

// Pool 是基于 ants 的协程池，Submit 返回可等待的 Future。
type Pool[T any] struct {
	inner *ants.Pool
}

// NewPool 创建容量为 cap 的协程池，cap <= 0 表示不限容量。
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	opt := &poolOption{}
	for _, o := range opts {
		o(opt)
	}
	if cap <= 0 {
		cap = -1
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		panic(fmt.Sprintf("failed to create conc pool: %v", err))
	}
	return &Pool[T]{inner: pool}
}

// Submit 提交任务。池已关闭或非阻塞模式下池已满时，返回的 Future 立即携带错误。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		res, err := method()
		if err != nil {
			future.err = err
		} else {
			future.value = res
		}
	})
	if err != nil {
		future.err = err
		close(future.ch)
	}
	return future
}

// Cap 返回池容量，-1 表示不限。
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Release 关闭协程池，已提交的任务继续执行完毕。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}

func (pool *Pool[T]) IsClosed() bool {
	return pool.inner.IsClosed()
}
