package account_test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/account"
	"github.com/vestnft/vesting-actors/support/mock"
	tutil "github.com/vestnft/vesting-actors/support/testing"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, account.Actor{})
}

func TestAccountActor(t *testing.T) {
	actor := account.Actor{}
	receiver := tutil.NewIDAddr(t, 100)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID)

	testCases := []struct {
		desc     string
		addr     addr.Address
		exitCode exitcode.ExitCode
	}{
		{"happy path construct SECP256K1 address", tutil.NewSECP256K1Addr(t, "secpaddress"), exitcode.Ok},
		{"happy path construct BLS address", tutil.NewBLSAddr(t, 1), exitcode.Ok},
		{"fail to construct account actor using ID address", tutil.NewIDAddr(t, 1), exitcode.ErrIllegalArgument},
		{"fail to construct account actor using Actor address", tutil.NewActorAddr(t, "actoraddress"), exitcode.ErrIllegalArgument},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			rt := builder.Build(t)
			rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)

			if tc.exitCode.IsSuccess() {
				rt.Call(actor.Constructor, &tc.addr)

				var st account.State
				rt.GetState(&st)
				assert.Equal(t, tc.addr, st.Address)

				rt.ExpectValidateCallerAny()
				pubkeyAddress := rt.Call(actor.PubkeyAddress, nil).(*addr.Address)
				assert.Equal(t, tc.addr, *pubkeyAddress)

				summary, msgs := account.CheckStateInvariants(&st)
				assert.Equal(t, tc.addr, summary.PubKeyAddr)
				assert.True(t, msgs.IsEmpty(), "%v", msgs.Messages())
			} else {
				rt.ExpectAbort(tc.exitCode, func() {
					rt.Call(actor.Constructor, &tc.addr)
				})
			}
			rt.Verify()
		})
	}

	t.Run("only the system actor may construct", func(t *testing.T) {
		rt := builder.Build(t)
		rt.SetCaller(tutil.NewIDAddr(t, 555), builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		a := tutil.NewBLSAddr(t, 2)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(actor.Constructor, &a)
		})
		rt.Verify()
	})
}
