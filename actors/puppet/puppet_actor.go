package puppet

import (
	"bytes"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/manifest"
	"github.com/vestnft/vesting-actors/actors/runtime"
)

// Actor is a test actor that forwards arbitrary messages on request.
//
// It also answers the asset Transfer method, so it can stand in as the payout asset of a
// position. If a hook has been set, every Transfer replays it before returning, which lets
// tests call back into the sender in the middle of a payout.
type Actor struct{}

var PuppetActorCodeID cid.Cid

func init() {
	// Not in the built-in manifest: only tests deploy it.
	c, err := manifest.CodeFor(builtin.ActorsVersion, "puppet")
	if err != nil {
		panic(err)
	}
	PuppetActorCodeID = c
}

var Methods = struct {
	Constructor abi.MethodNum
	Transfer    abi.MethodNum
	Send        abi.MethodNum
	SetHook     abi.MethodNum
}{builtin.MethodConstructor, builtin.MethodsAsset.Transfer, 3, 4}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Transfer,
		3:                         a.Send,
		4:                         a.SetHook,
	}
}

func (a Actor) Code() cid.Cid {
	return PuppetActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type State struct {
	// CBOR encoding of the SendParams replayed on Transfer, or empty.
	Hook []byte
	// Exit code of the last hook invocation.
	LastHookCode exitcode.ExitCode
	// Sum of all amounts passed to Transfer.
	Received abi.TokenAmount
}

type SendParams struct {
	To     addr.Address
	Method abi.MethodNum
	Params []byte
}

type SendReturn struct {
	Code   exitcode.ExitCode
	Return []byte
}

func (a Actor) Constructor(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	rt.StateCreate(&State{Received: big.Zero()})
	return nil
}

func (a Actor) Send(rt runtime.Runtime, params *SendParams) *SendReturn {
	rt.ValidateImmediateCallerAcceptAny()
	var ret builtin.CBORBytes
	code := rt.Send(params.To, params.Method, builtin.CBORBytes(params.Params), &ret)
	return &SendReturn{Code: code, Return: ret}
}

func (a Actor) SetHook(rt runtime.Runtime, params *SendParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	buf := new(bytes.Buffer)
	err := params.MarshalCBOR(buf)
	builtin.RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to encode hook")

	var st State
	rt.StateTransaction(&st, func() {
		st.Hook = buf.Bytes()
	})
	return nil
}

// Accepts any transfer without moving balances, then replays the hook if one is set.
func (a Actor) Transfer(rt runtime.Runtime, params *builtin.AssetTransferParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)

	code := exitcode.Ok
	if len(st.Hook) > 0 {
		var hook SendParams
		err := hook.UnmarshalCBOR(bytes.NewReader(st.Hook))
		builtin.RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to decode hook")
		code = rt.Send(hook.To, hook.Method, builtin.CBORBytes(hook.Params), &builtin.Discard{})
	}

	rt.StateTransaction(&st, func() {
		st.LastHookCode = code
		st.Received = big.Add(st.Received, params.Amount)
	})
	return nil
}
