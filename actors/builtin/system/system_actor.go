package system

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/manifest"
	"github.com/vestnft/vesting-actors/actors/runtime"
	"github.com/vestnft/vesting-actors/actors/util/adt"
)

// Actor is the distinguished sender of genesis constructor messages. It exports nothing but its constructor.
// Its state records the manifest of the built-in actors.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.SystemActorCodeID
}

func (a Actor) IsSingleton() bool {
	return true
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type State struct {
	BuiltinActors cid.Cid // ManifestData
}

func (a Actor) Constructor(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	st, err := ConstructState(adt.AsStore(rt))
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.StateCreate(st)
	return nil
}

func ConstructState(store adt.Store) (*State, error) {
	data, err := builtin.ManifestData()
	if err != nil {
		return nil, err
	}
	c, err := store.Put(store.Context(), data)
	if err != nil {
		return nil, xerrors.Errorf("failed to store manifest data: %w", err)
	}
	return &State{BuiltinActors: c}, nil
}

// LoadManifest reads the manifest the state records.
func (st *State) LoadManifest(store adt.Store) (*manifest.Manifest, error) {
	m := &manifest.Manifest{Version: builtin.ActorsVersion, Data: st.BuiltinActors}
	if err := m.Load(store); err != nil {
		return nil, err
	}
	return m, nil
}
