// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "posd"

// Tick outcomes reported by the ticks_total counter.
const (
	outcomeSkipped   = "skipped"
	outcomeNoCoins   = "no_coins"
	outcomeAttempted = "attempted"
	outcomeMinted    = "minted"
	outcomeTransient = "transient"
	outcomeFatal     = "fatal"
)

// Metrics are the Prometheus collectors updated by a PoSMinter.  A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ticks         *prometheus.CounterVec
	eligible      prometheus.Gauge
	stakeWeight   prometheus.Gauge
	blocksStaked  prometheus.Counter
	difficulty    prometheus.Gauge
	networkWeight prometheus.Gauge
}

// NewMetrics creates the minter collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "staking",
			Name:      "ticks_total",
			Help:      "Staking loop iterations by outcome.",
		}, []string{"outcome"}),
		eligible: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "staking",
			Name:      "eligible_outputs",
			Help:      "Outputs that passed the eligibility filter on the last attempt.",
		}),
		stakeWeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "staking",
			Name:      "weight_satoshis",
			Help:      "Total value of the eligible outputs on the last attempt.",
		}),
		blocksStaked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "staking",
			Name:      "blocks_total",
			Help:      "Blocks minted by this node.",
		}),
		difficulty: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "chain",
			Name:      "pos_difficulty",
			Help:      "Proof-of-stake difficulty of the chain tip.",
		}),
		networkWeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "chain",
			Name:      "network_weight",
			Help:      "Estimated network staking weight.",
		}),
	}
}

func (m *Metrics) tick(outcome string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) attempt(eligible int, weight int64) {
	if m == nil {
		return
	}
	m.eligible.Set(float64(eligible))
	m.stakeWeight.Set(float64(weight))
}

func (m *Metrics) minted() {
	if m == nil {
		return
	}
	m.blocksStaked.Inc()
}

func (m *Metrics) status(difficulty, networkWeight float64) {
	if m == nil {
		return
	}
	m.difficulty.Set(difficulty)
	m.networkWeight.Set(networkWeight)
}
