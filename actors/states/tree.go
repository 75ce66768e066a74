package states

import (
	addr "github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/util/adt"
)

var ErrActorNotFound = xerrors.New("actor not found")

// An entry in the actor table.
type Actor struct {
	Head cid.Cid // CID of the actor's state object
	Code cid.Cid
}

// Tree is a read view of the actor table, a map of ID addresses to actors.
type Tree struct {
	m     *adt.Map
	Store adt.Store
}

func LoadTree(s adt.Store, r cid.Cid) (*Tree, error) {
	m, err := adt.AsMap(s, r, adt.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load actor table: %w", err)
	}
	return &Tree{m: m, Store: s}, nil
}

func (t *Tree) Root() (cid.Cid, error) {
	return t.m.Root()
}

// Returns the actor at an ID address.
func (t *Tree) GetActor(a addr.Address) (*Actor, error) {
	if a.Protocol() != addr.ID {
		return nil, xerrors.Errorf("%v is not an ID address", a)
	}
	var actor Actor
	found, err := t.m.Get(adt.AddrKey(a), &actor)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Errorf("%v: %w", a, ErrActorNotFound)
	}
	return &actor, nil
}

// Loads the state of the actor at an ID address into out.
func (t *Tree) GetState(a addr.Address, out interface{}) error {
	actor, err := t.GetActor(a)
	if err != nil {
		return err
	}
	return t.Store.Get(t.Store.Context(), actor.Head, out)
}

func (t *Tree) ForEach(fn func(a addr.Address, actor *Actor) error) error {
	var val Actor
	return t.m.ForEach(&val, func(key string) error {
		a, err := adt.ParseAddrKey(key)
		if err != nil {
			return err
		}
		return fn(a, &val)
	})
}
