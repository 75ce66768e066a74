package adt

import (
	"context"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/actors/runtime"
)

// Store defines an interface required to back the ADTs in this package.
type Store interface {
	Context() context.Context
	ipldcbor.IpldStore
}

// Adapts a vanilla IPLD store as an ADT store.
func WrapStore(ctx context.Context, store ipldcbor.IpldStore) Store {
	return &wstore{
		ctx:       ctx,
		IpldStore: store,
	}
}

type wstore struct {
	ctx context.Context
	ipldcbor.IpldStore
}

var _ Store = &wstore{}

func (s *wstore) Context() context.Context {
	return s.ctx
}

// Adapter for a Runtime as an ADT Store.

// Adapts a Runtime as an ADT store.
func AsStore(rt runtime.Runtime) Store {
	return rtStore{rt}
}

type rtStore struct {
	runtime.Runtime
}

var _ Store = &rtStore{}

func (r rtStore) Context() context.Context {
	return r.Runtime.Context()
}

func (r rtStore) Get(_ context.Context, c cid.Cid, out interface{}) error {
	// The runtime context is used.
	um, ok := out.(cbg.CBORUnmarshaler)
	if !ok {
		r.Abortf(exitcode.ErrIllegalState, "object %T does not implement CBORUnmarshaler", out)
	}
	if !r.StoreGet(c, um) {
		r.Abortf(exitcode.ErrIllegalState, "not found: %s", c)
	}
	return nil
}

func (r rtStore) Put(_ context.Context, v interface{}) (cid.Cid, error) {
	// The runtime context is used.
	m, ok := v.(cbg.CBORMarshaler)
	if !ok {
		r.Abortf(exitcode.ErrIllegalState, "object %T does not implement CBORMarshaler", v)
	}
	return r.StorePut(m), nil
}

// Keyer defines an interface required to put values in mapping.
type Keyer interface {
	Key() string
}

// Adapts an address as a mapping key.
type AddrKey addr.Address

func (kw AddrKey) Key() string {
	return string(addr.Address(kw).Bytes())
}

// Parses a mapping key back into the address it was built from.
func ParseAddrKey(k string) (addr.Address, error) {
	return addr.NewFromBytes([]byte(k))
}
