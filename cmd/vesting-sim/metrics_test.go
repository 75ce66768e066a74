package main

import (
	"bytes"
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	tutil "github.com/vestnft/vesting-actors/support/testing"
	"github.com/vestnft/vesting-actors/support/vm"
)

// Fills in the encoded payload of e.
func event(t *testing.T, e vm.Event, payload cbg.CBORMarshaler) vm.Event {
	var buf bytes.Buffer
	require.NoError(t, payload.MarshalCBOR(&buf))
	e.Payload = buf.Bytes()
	return e
}

func TestClaimMetricsCountsDeploymentOnly(t *testing.T) {
	d := &vm.Deployment{
		Minter:  tutil.NewIDAddr(t, 100),
		NFT:     tutil.NewIDAddr(t, 101),
		Vesting: tutil.NewIDAddr(t, 102),
	}
	stranger := tutil.NewIDAddr(t, 999)
	owner := tutil.NewIDAddr(t, 103)
	m := newClaimMetrics(d)

	claim := &vesting.ClaimEvent{ID: 0, Recipient: owner, Amount: big.NewInt(250)}
	m.observe(event(t, vm.Event{Emitter: d.Vesting, Topic: vesting.EventTopicClaim}, claim))
	m.observe(event(t, vm.Event{Emitter: stranger, Topic: vesting.EventTopicClaim}, claim))

	mint := &nft.TransferEvent{From: d.NFT, To: owner, ID: 0}
	transfer := &nft.TransferEvent{From: owner, To: stranger, ID: 0}
	m.observe(event(t, vm.Event{Emitter: d.NFT, Topic: nft.EventTopicTransfer}, mint))
	m.observe(event(t, vm.Event{Emitter: d.NFT, Topic: nft.EventTopicTransfer}, transfer))
	m.observe(event(t, vm.Event{Emitter: stranger, Topic: nft.EventTopicTransfer}, transfer))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.claims))
	assert.Equal(t, float64(250), testutil.ToFloat64(m.claimed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mints))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transfers))
}
