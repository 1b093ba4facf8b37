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

const networkMetricSubsystem = "network"

var (
	networkMetricsRegisterOnce sync.Once

	NetworkOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: relayNamespace,
		Subsystem: networkMetricSubsystem,
		Name:      "open_connections",
		Help:      "当前打开的客户端连接数",
	})

	NetworkAcceptedConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: relayNamespace,
		Subsystem: networkMetricSubsystem,
		Name:      "accepted_connections_total",
		Help:      "累计接受的客户端连接数",
	})

	NetworkRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: relayNamespace,
		Subsystem: networkMetricSubsystem,
		Name:      "requests_total",
		Help:      "按方法与结果统计的请求数",
	}, []string{methodLabelName, outcomeLabelName})

	NetworkRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: relayNamespace,
		Subsystem: networkMetricSubsystem,
		Name:      "request_latency",
		Help:      "请求处理耗时（毫秒）",
		Buckets:   buckets,
	}, []string{methodLabelName})

	NetworkConnectionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: relayNamespace,
		Subsystem: networkMetricSubsystem,
		Name:      "connection_errors_total",
		Help:      "按阶段统计的连接错误数（协议错误、读写失败）",
	}, []string{stageLabelName})
)

// RegisterNetworkMetrics 注册接入层指标。
func RegisterNetworkMetrics(r prometheus.Registerer) {
	networkMetricsRegisterOnce.Do(func() {
		r.MustRegister(NetworkOpenConnections)
		r.MustRegister(NetworkAcceptedConnections)
		r.MustRegister(NetworkRequests)
		r.MustRegister(NetworkRequestLatency)
		r.MustRegister(NetworkConnectionErrors)
	})
}
