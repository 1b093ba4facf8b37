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

package hardware

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/lk2023060901/msgrelay/pkg/log"
)

var (
	icOnce sync.Once
	ic     bool
	icErr  error
)

// GetCPUNum 返回可用的逻辑 CPU 数。
// 运行在容器中时以 GOMAXPROCS 为准（automaxprocs 已按 cgroup 配额调整过）。
func GetCPUNum() int {
	if inContainer() {
		return runtime.GOMAXPROCS(0)
	}
	cur, err := cpu.Counts(true)
	if err != nil || cur <= 0 {
		log.Warn("failed to get cpu counts, fallback to GOMAXPROCS", zap.Error(err))
		return runtime.GOMAXPROCS(0)
	}
	return min(cur, runtime.GOMAXPROCS(0))
}

func inContainer() bool {
	icOnce.Do(func() {
		ic, icErr = isContainerized()
		if icErr != nil {
			log.Debug("failed to detect container", zap.Error(icErr))
		}
	})
	return ic
}
