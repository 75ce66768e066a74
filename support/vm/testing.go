package vm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/asset"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/actors/states"
)

//
// Genesis like setup
//

// Creates a new VM with a deployed token and vesting actor pair.
func NewVMWithDeployment(ctx context.Context, t testing.TB, allowEmptyClaims bool) (*VM, *Deployment) {
	v, err := NewVMWithBuiltins(ctx)
	require.NoError(t, err)
	minterKey, err := KeyAddress("minter")
	require.NoError(t, err)
	d, err := v.Deploy(DeployConfig{MinterKey: minterKey, AllowEmptyClaims: allowEmptyClaims})
	require.NoError(t, err)
	return v, d
}

// Creates n account actors in the VM, returning their ID addresses.
func CreateAccounts(t testing.TB, v *VM, n int) []addr.Address {
	ids := make([]addr.Address, n)
	for i := range ids {
		a, err := v.CreateNamedAccount(fmt.Sprintf("account-%d", i))
		require.NoError(t, err)
		ids[i] = a
	}
	return ids
}

// Applies a message that must succeed and returns its result.
func ApplyOk(t testing.TB, v *VM, from, to addr.Address, method abi.MethodNum, params interface{}) cbor.Marshaler {
	ret := v.ApplyMessage(from, to, method, params)
	require.Equal(t, exitcode.Ok, ret.Code, "message to %v method %d failed", to, method)
	return ret.Ret
}

// Applies a message that must fail with the given exit code.
func ApplyCode(t testing.TB, v *VM, from, to addr.Address, method abi.MethodNum, params interface{}, code exitcode.ExitCode) {
	ret := v.ApplyMessage(from, to, method, params)
	require.Equal(t, code, ret.Code, "message to %v method %d", to, method)
}

// Mints a token carrying a vesting position to an owner, returning its id.
func Mint(t testing.TB, v *VM, d *Deployment, to addr.Address, terms vesting.Position) uint64 {
	ret := ApplyOk(t, v, d.Minter, d.NFT, builtin.MethodsNFT.Mint, &nft.MintParams{To: to, Terms: terms})
	mintRet, ok := ret.(*nft.MintReturn)
	require.True(t, ok, "unexpected mint return %T", ret)
	return mintRet.ID
}

// Reads the asset balance of a holder.
func AssetBalance(t testing.TB, v *VM, assetAddr, holder addr.Address) abi.TokenAmount {
	var st asset.State
	require.NoError(t, v.GetState(assetAddr, &st))
	bal, err := st.BalanceOf(v.Store(), holder)
	require.NoError(t, err)
	return bal
}

// Checks the invariants of every actor in a deployment.
func CheckDeploymentInvariants(t testing.TB, v *VM, d *Deployment, assets ...addr.Address) {
	var vst vesting.State
	require.NoError(t, v.GetState(d.Vesting, &vst))
	_, msgs := vesting.CheckStateInvariants(&vst, v.Store(), vesting.DefaultCurves(), v.GetEpoch())
	assert.True(t, msgs.IsEmpty(), "vesting invariants: %v", msgs.Messages())

	var nst nft.State
	require.NoError(t, v.GetState(d.NFT, &nst))
	summary, msgs := nft.CheckStateInvariants(&nst, v.Store())
	assert.True(t, msgs.IsEmpty(), "nft invariants: %v", msgs.Messages())
	assert.Equal(t, int(vst.PositionCount), len(summary.Owners), "every token must have a position")

	for _, a := range assets {
		var ast asset.State
		require.NoError(t, v.GetState(a, &ast))
		_, msgs := asset.CheckStateInvariants(&ast, v.Store())
		assert.True(t, msgs.IsEmpty(), "asset %v invariants: %v", a, msgs.Messages())
	}
}

// Checks the invariants of every actor in the VM, and those that span actors.
// Only builtin actors may be present.
func CheckStateInvariants(t testing.TB, v *VM) {
	tree, err := v.StateTree()
	require.NoError(t, err)
	msgs, err := states.CheckStateInvariants(tree, v.GetEpoch(), vesting.DefaultCurves())
	require.NoError(t, err)
	assert.True(t, msgs.IsEmpty(), strings.Join(msgs.Messages(), "\n"))
}

//
// Invocation expectations
//

func ExpectObject(v cbor.Marshaler) *objectExpectation {
	return &objectExpectation{v}
}

// distinguishes a non-expectation from an expectation of nil
type objectExpectation struct {
	val cbor.Marshaler
}

func ExpectExitCode(code exitcode.ExitCode) *exitcode.ExitCode { return &code }

// match by cbor encoding to avoid inconsistencies in internal representations of effectively equal objects
func (oe objectExpectation) matches(obj interface{}) bool {
	if oe.val == nil || obj == nil {
		return oe.val == nil && obj == nil
	}

	paramBuf1 := new(bytes.Buffer)
	oe.val.MarshalCBOR(paramBuf1) // nolint: errcheck
	marshaller, ok := obj.(cbor.Marshaler)
	if !ok {
		return false
	}
	paramBuf2 := new(bytes.Buffer)
	if marshaller != nil {
		marshaller.MarshalCBOR(paramBuf2) // nolint: errcheck
	}
	return bytes.Equal(paramBuf1.Bytes(), paramBuf2.Bytes())
}

type ExpectInvocation struct {
	To       addr.Address
	Method   abi.MethodNum
	Exitcode exitcode.ExitCode

	From           *addr.Address
	Params         *objectExpectation
	Ret            *objectExpectation
	SubInvocations []ExpectInvocation
}

func (ei ExpectInvocation) Matches(t *testing.T, invocations *Invocation) {
	ei.matches(t, "", invocations)
}

func (ei ExpectInvocation) matches(t *testing.T, breadcrumb string, invocation *Invocation) {
	identifier := fmt.Sprintf("%s[%s:%d]", breadcrumb, invocation.Msg.to, invocation.Msg.method)

	// mismatch of to or method probably indicates skipped message or messages out of order. halt.
	require.Equal(t, ei.To, invocation.Msg.to, "%s unexpected `to` address", identifier)
	require.Equal(t, ei.Method, invocation.Msg.method, "%s unexpected method", identifier)

	// other expectations are optional
	if ei.From != nil {
		assert.Equal(t, *ei.From, invocation.Msg.from, "%s unexpected from address", identifier)
	}
	if ei.Params != nil {
		assert.True(t, ei.Params.matches(invocation.Msg.params), "%s params aren't equal (%v != %v)", identifier, ei.Params.val, invocation.Msg.params)
	}
	if ei.SubInvocations != nil {
		for i, invk := range invocation.SubInvocations {
			subidentifier := fmt.Sprintf("%s%d:", identifier, i)
			require.Greater(t, len(ei.SubInvocations), i, "%s unexpected subinvocation [%s:%d]", subidentifier, invk.Msg.to, invk.Msg.method)
			ei.SubInvocations[i].matches(t, subidentifier, invk)
		}
		missingInvocations := len(ei.SubInvocations) - len(invocation.SubInvocations)
		if missingInvocations > 0 {
			missingIndex := len(invocation.SubInvocations)
			missingExpect := ei.SubInvocations[missingIndex]
			require.Failf(t, "missing invocation", "%s%d: expected invocation [%s:%d]", identifier, missingIndex, missingExpect.To, missingExpect.Method)
		}
	}

	// expect results
	assert.Equal(t, ei.Exitcode, invocation.Exitcode, "%s unexpected exitcode", identifier)
	if ei.Ret != nil {
		assert.True(t, ei.Ret.matches(invocation.Ret), "%s unexpected return value (%v != %v)", identifier, ei.Ret, invocation.Ret)
	}
}

// Returns the invocation at a path of indices into the recorded invocation trees.
func InvocationAt(t *testing.T, v *VM, idxs ...int) *Invocation {
	invocations := v.Invocations()
	var invocation *Invocation
	for _, idx := range idxs {
		require.Greater(t, len(invocations), idx)
		invocation = invocations[idx]
		invocations = invocation.SubInvocations
	}
	require.NotNil(t, invocation)
	return invocation
}
