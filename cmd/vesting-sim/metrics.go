package main

import (
	"io"
	gobig "math/big"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/support/vm"
)

const metricsNamespace = "vesting_sim"

// claimMetrics counts committed notifications of a deployment.
type claimMetrics struct {
	registry *prometheus.Registry

	claims    prometheus.Counter
	claimed   prometheus.Counter
	mints     prometheus.Counter
	transfers prometheus.Counter
	epoch     prometheus.Gauge

	nft     addr.Address
	vesting addr.Address
}

func newClaimMetrics(d *vm.Deployment) *claimMetrics {
	m := &claimMetrics{
		registry: prometheus.NewRegistry(),
		claims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "claims_total",
			Help:      "Number of successful claims.",
		}),
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "claimed_amount_total",
			Help:      "Sum of amounts paid out by claims, in base units of their assets.",
		}),
		mints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "mints_total",
			Help:      "Number of vesting tokens minted.",
		}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfers_total",
			Help:      "Number of vesting tokens changing hands after mint.",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "epoch",
			Help:      "Last simulated epoch.",
		}),
		nft:     d.NFT,
		vesting: d.Vesting,
	}
	m.registry.MustRegister(m.claims, m.claimed, m.mints, m.transfers, m.epoch)
	return m
}

// Subscribes to every notification of the VM. The returned function stops counting.
func (m *claimMetrics) subscribe(v *vm.VM) (cancel func()) {
	return v.Subscribe("", m.observe)
}

// Only notifications of the deployment's own actors are counted.
func (m *claimMetrics) observe(e vm.Event) {
	switch {
	case e.Topic == vesting.EventTopicClaim && e.Emitter == m.vesting:
		var ce vesting.ClaimEvent
		if err := e.Decode(&ce); err != nil {
			log.Errorw("failed to decode claim event", "emitter", e.Emitter, "error", err)
			return
		}
		m.claims.Inc()
		m.claimed.Add(toFloat(ce.Amount))
	case e.Topic == nft.EventTopicTransfer && e.Emitter == m.nft:
		var te nft.TransferEvent
		if err := e.Decode(&te); err != nil {
			log.Errorw("failed to decode transfer event", "emitter", e.Emitter, "error", err)
			return
		}
		if te.From == m.nft {
			m.mints.Inc()
		} else {
			m.transfers.Inc()
		}
	}
}

func (m *claimMetrics) setEpoch(epoch abi.ChainEpoch) {
	m.epoch.Set(float64(epoch))
}

// Writes every metric in the Prometheus text exposition format.
func (m *claimMetrics) write(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrapf(err, "failed to write metric %s", mf.GetName())
		}
	}
	return nil
}

func toFloat(amount abi.TokenAmount) float64 {
	f, _ := new(gobig.Float).SetInt(amount.Int).Float64()
	return f
}
