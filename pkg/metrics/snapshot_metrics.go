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

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const snapshotMetricSubsystem = "snapshot"

var (
	snapshotMetricsRegisterOnce sync.Once

	SnapshotSaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: relayNamespace,
		Subsystem: snapshotMetricSubsystem,
		Name:      "saves_total",
		Help:      "按快照类型与结果统计的保存次数",
	}, []string{kindLabelName, outcomeLabelName})

	SnapshotSaveLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: relayNamespace,
		Subsystem: snapshotMetricSubsystem,
		Name:      "save_latency",
		Help:      "快照保存耗时（毫秒），含重试",
		Buckets:   buckets,
	}, []string{kindLabelName})

	SnapshotBlobBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: relayNamespace,
		Subsystem: snapshotMetricSubsystem,
		Name:      "blob_bytes",
		Help:      "编码后的快照大小（字节）",
		Buckets:   sizeBuckets,
	}, []string{kindLabelName})

	SnapshotCoalesced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: relayNamespace,
		Subsystem: snapshotMetricSubsystem,
		Name:      "coalesced_total",
		Help:      "被更新的快照覆盖而未单独保存的次数",
	}, []string{kindLabelName})
)

// RegisterSnapshotMetrics 注册快照持久化指标。
func RegisterSnapshotMetrics(r prometheus.Registerer) {
	snapshotMetricsRegisterOnce.Do(func() {
		r.MustRegister(SnapshotSaves)
		r.MustRegister(SnapshotSaveLatency)
		r.MustRegister(SnapshotBlobBytes)
		r.MustRegister(SnapshotCoalesced)
	})
}
