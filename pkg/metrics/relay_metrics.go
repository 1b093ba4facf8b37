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

const relayMetricSubsystem = "relay"

var (
	relayMetricsRegisterOnce sync.Once

	RelayAccounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: relayNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "accounts",
		Help:      "已注册账号数",
	})

	RelaySessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: relayNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "sessions",
		Help:      "已登录账号数",
	})

	RelayPendingMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: relayNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "pending_messages",
		Help:      "所有收件人未投递队列中的消息总数",
	})

	RelayMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: relayNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "messages_total",
		Help:      "按进入的队列统计的消息数",
	}, []string{queueLabelName})
)

// RegisterRelayMetrics 注册业务状态指标。
func RegisterRelayMetrics(r prometheus.Registerer) {
	relayMetricsRegisterOnce.Do(func() {
		r.MustRegister(RelayAccounts)
		r.MustRegister(RelaySessions)
		r.MustRegister(RelayPendingMessages)
		r.MustRegister(RelayMessages)
	})
}
