package builtin

import (
	"fmt"
	"io"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/vestnft/vesting-actors/actors/runtime"
)

///// Code shared by multiple built-in actors. /////

// Propagates a failed send by aborting the current method with the same exit code.
func RequireSuccess(rt runtime.Runtime, e exitcode.ExitCode, msg string, args ...interface{}) {
	if !e.IsSuccess() {
		rt.Abortf(e, msg, args...)
	}
}

// Aborts with an ErrIllegalArgument if predicate is not true.
func RequireParam(rt runtime.Runtime, predicate bool, msg string, args ...interface{}) {
	if !predicate {
		rt.Abortf(exitcode.ErrIllegalArgument, msg, args...)
	}
}

// Aborts with an ErrIllegalState if predicate is not true.
func RequireState(rt runtime.Runtime, predicate bool, msg string, args ...interface{}) {
	if !predicate {
		rt.Abortf(exitcode.ErrIllegalState, msg, args...)
	}
}

// Aborts with a formatted message if err is not nil.
// The provided message will be suffixed by ": %s" and the provided args suffixed by the err.
// The exit code is taken from the error if it carries one, else the default.
func RequireNoErr(rt runtime.Runtime, err error, defaultExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	if err != nil {
		newMsg := msg + ": %s"
		newArgs := append(args, err)
		code := exitcode.Unwrap(err, defaultExitCode)
		rt.Abortf(code, newMsg, newArgs...)
	}
}

// Dumps CBOR-encoded return values from sends whose result the caller does not need.
type Discard struct{}

func (d *Discard) MarshalCBOR(_ io.Writer) error {
	// serialization is a noop
	return nil
}

func (d *Discard) UnmarshalCBOR(_ io.Reader) error {
	// deserialization is a noop
	return nil
}

// Wraps already-serialized bytes as CBOR-marshalable.
type CBORBytes []byte

func (b CBORBytes) MarshalCBOR(w io.Writer) error {
	_, err := w.Write(b)
	return err
}

func (b *CBORBytes) UnmarshalCBOR(r io.Reader) error {
	var c []byte
	c, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	*b = c
	return nil
}

///// Parameter types shared between the token, vesting and asset actors. /////

// Identifies a single token (and the vesting position sharing its id).
type TokenIDParams struct {
	ID uint64
}

// Asks the ownership layer whether Spender may act on behalf of the owner of ID.
type IsApprovedOrOwnerParams struct {
	Spender addr.Address
	ID      uint64
}

// Moves Amount of the asset from the caller to To.
type AssetTransferParams struct {
	To     addr.Address
	Amount abi.TokenAmount
}

func (p *AssetTransferParams) String() string {
	return fmt.Sprintf("transfer %v to %v", p.Amount, p.To)
}
