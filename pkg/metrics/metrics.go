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
	// #nosec
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// relayNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	relayNamespace = "msgrelay"

	// 以下为当前使用的通用标签名。
	methodLabelName  = "method"
	outcomeLabelName = "outcome"
	queueLabelName   = "queue"
	kindLabelName    = "kind"
	stageLabelName   = "stage"

	SuccessLabel = "success"
	FailureLabel = "failure"

	DeliveredQueueLabel   = "delivered"
	UndeliveredQueueLabel = "undelivered"
)

var (
	// buckets 为请求耗时直方图的桶划分，单位为毫秒。
	// 实际桶分布为：
	// [0.125 0.25 0.5 1 2 4 8 16 32 64 128 256 512 1024 2048 4096]
	buckets = prometheus.ExponentialBuckets(0.125, 2, 16)

	// sizeBuckets 为数据大小的桶划分，单位为字节。
	sizeBuckets = prometheus.ExponentialBuckets(64, 4, 12) // 单位：字节

	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	RegisterNetworkMetrics(r)
	RegisterRelayMetrics(r)
	RegisterSnapshotMetrics(r)
	metricRegisterer = r
}
