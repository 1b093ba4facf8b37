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
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestPool(t *testing.T) {
	pool := NewPool[int](4)
	defer pool.Release()

	futures := make([]*Future[int], 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * i, nil
		}))
	}
	assert.NoError(t, AwaitAll(futures...))
	for i, f := range futures {
		assert.Equal(t, i*i, f.Value())
		assert.True(t, f.OK())
	}
	assert.Equal(t, 4, pool.Cap())
}

func TestUnboundedPool(t *testing.T) {
	pool := NewPool[struct{}](0)
	defer pool.Release()
	assert.Equal(t, -1, pool.Cap())

	var wg sync.WaitGroup
	release := make(chan struct{})
	futures := make([]*Future[struct{}], 0, 32)
	wg.Add(32)
	for i := 0; i < 32; i++ {
		futures = append(futures, pool.Submit(func() (struct{}, error) {
			wg.Done()
			<-release
			return struct{}{}, nil
		}))
	}
	// 全部任务同时运行，不因容量阻塞。
	wg.Wait()
	close(release)
	assert.NoError(t, AwaitAll(futures...))
}

func TestFutureError(t *testing.T) {
	boom := errors.New("boom")
	f := Go(func() (int, error) {
		time.Sleep(time.Millisecond)
		return 0, boom
	})
	_, err := f.Await()
	assert.ErrorIs(t, err, boom)
	assert.True(t, f.Done())
	assert.False(t, f.OK())
	assert.ErrorIs(t, AwaitAll(f), boom)
}

func TestPanicHandler(t *testing.T) {
	caught := make(chan any, 1)
	pool := NewPool[int](1, WithPanicHandler(func(v any) { caught <- v }))
	defer pool.Release()

	pool.Submit(func() (int, error) {
		panic("worker exploded")
	})
	select {
	case v := <-caught:
		assert.Equal(t, "worker exploded", v)
	case <-time.After(5 * time.Second):
		t.Fatal("panic handler not called")
	}
}

func TestSubmitAfterRelease(t *testing.T) {
	pool := NewPool[int](1)
	pool.Release()
	assert.True(t, pool.IsClosed())
	f := pool.Submit(func() (int, error) { return 1, nil })
	assert.Error(t, f.Err())
}
