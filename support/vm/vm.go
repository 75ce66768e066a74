package vm

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/exported"
	"github.com/vestnft/vesting-actors/actors/runtime"
	"github.com/vestnft/vesting-actors/actors/states"
	"github.com/vestnft/vesting-actors/actors/util/adt"
)

var log = logging.Logger("vm")

// VM holds the state and executes messages over the state.
type VM struct {
	ctx   context.Context
	store adt.Store

	currentEpoch abi.ChainEpoch

	actorImpls ActorImplLookup
	actorRoot  cid.Cid  // The last committed root.
	actors     *adt.Map // The current (not necessarily committed) root node.

	addressRoot cid.Cid // HAMT[pubkey address]actor id
	nextID      uint64

	emptyObject cid.Cid

	invocations []*Invocation

	// Writes a vector per top level message when set.
	vectors *vectorGen

	subMu       sync.Mutex
	subscribers []*subscription
}

// VM types

type TestActor = states.Actor

type ActorImplLookup map[cid.Cid]runtime.VMActor

// Returns a lookup of every builtin actor, plus any extra implementations.
func BuiltinLookup(extra ...runtime.VMActor) ActorImplLookup {
	lookup := ActorImplLookup{}
	for _, ba := range exported.BuiltinActors() {
		lookup[ba.Code()] = ba
	}
	for _, a := range extra {
		lookup[a.Code()] = a
	}
	return lookup
}

type internalMessage struct {
	from   addr.Address
	to     addr.Address
	method abi.MethodNum
	params interface{}
}

// The receipt of a top-level message.
type MessageResult struct {
	Ret  cbor.Marshaler
	Code exitcode.ExitCode
	// Notifications emitted by the message, empty unless it succeeded.
	Events []Event
}

// NewVM creates a new runtime for executing messages.
func NewVM(ctx context.Context, actorImpls ActorImplLookup, store adt.Store) (*VM, error) {
	actors, err := adt.MakeEmptyMap(store, adt.DefaultHamtBitwidth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create actor table")
	}
	actorRoot, err := actors.Root()
	if err != nil {
		return nil, err
	}
	addressRoot, err := adt.StoreEmptyMap(store, adt.DefaultHamtBitwidth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create address table")
	}
	emptyObject, err := store.Put(ctx, []struct{}{})
	if err != nil {
		return nil, errors.Wrap(err, "could not store empty object")
	}

	vm := &VM{
		ctx:         ctx,
		actorImpls:  actorImpls,
		store:       store,
		actors:      actors,
		actorRoot:   actorRoot,
		addressRoot: addressRoot,
		nextID:      builtin.FirstNonSingletonActorId,
		emptyObject: emptyObject,
		vectors:     newVectorGen(),
	}

	// The system actor is the sender of constructor messages, so it must exist before anything is constructed.
	if err := vm.setActor(builtin.SystemActorAddr, &TestActor{Head: emptyObject, Code: builtin.SystemActorCodeID}); err != nil {
		return nil, err
	}
	if ret := vm.applyMessage(builtin.SystemActorAddr, builtin.SystemActorAddr, builtin.MethodConstructor, nil); ret.Code != exitcode.Ok {
		return nil, errors.Errorf("failed to construct system actor: exit %v", ret.Code)
	}
	if _, err := vm.checkpoint(); err != nil {
		return nil, err
	}
	return vm, nil
}

func (vm *VM) rollback(root cid.Cid) error {
	var err error
	vm.actors, err = adt.AsMap(vm.store, root, adt.DefaultHamtBitwidth)
	if err != nil {
		return errors.Wrapf(err, "failed to load node for %s", root)
	}

	// reset the root node
	vm.actorRoot = root
	return nil
}

func (vm *VM) GetActor(a addr.Address) (*TestActor, bool, error) {
	var act TestActor
	found, err := vm.actors.Get(adt.AddrKey(a), &act)
	return &act, found, err
}

// setActor sets the the actor to the given value whether it previously existed or not.
func (vm *VM) setActor(key addr.Address, a *TestActor) error {
	if err := vm.actors.Put(adt.AddrKey(key), a); err != nil {
		return errors.Wrap(err, "setting actor in state tree failed")
	}
	return nil
}

func (vm *VM) checkpoint() (cid.Cid, error) {
	root, err := vm.actors.Root()
	if err != nil {
		return cid.Undef, err
	}
	vm.actorRoot = root
	return root, nil
}

// Returns the root of the actor table as of the last checkpoint.
func (vm *VM) StateRoot() cid.Cid {
	return vm.actorRoot
}

// Returns a read view of the current actor table.
func (vm *VM) StateTree() (*states.Tree, error) {
	root, err := vm.actors.Root()
	if err != nil {
		return nil, err
	}
	return states.LoadTree(vm.store, root)
}

func (vm *VM) GetEpoch() abi.ChainEpoch {
	return vm.currentEpoch
}

// Sets the epoch observed by subsequent messages.
func (vm *VM) SetEpoch(epoch abi.ChainEpoch) {
	vm.currentEpoch = epoch
}

// Resolves a public key address to the ID address of its account, or returns an ID address as is.
func (vm *VM) NormalizeAddress(a addr.Address) (addr.Address, bool) {
	// short-circuit if the address is already an ID address
	if a.Protocol() == addr.ID {
		return a, true
	}
	m, err := adt.AsMap(vm.store, vm.addressRoot, adt.DefaultHamtBitwidth)
	if err != nil {
		panic(errors.Wrapf(err, "failed to load address table"))
	}
	var id cbg.CborInt
	found, err := m.Get(adt.AddrKey(a), &id)
	if err != nil {
		panic(err)
	}
	if !found {
		return addr.Undef, false
	}
	idAddr, err := addr.NewIDAddress(uint64(id))
	if err != nil {
		panic(err)
	}
	return idAddr, true
}

// Installs an actor at a fresh ID address and runs its constructor from the system actor.
func (vm *VM) CreateActor(code cid.Cid, params cbor.Marshaler) (addr.Address, MessageResult, error) {
	idAddr, err := vm.ReserveAddress()
	if err != nil {
		return addr.Undef, MessageResult{}, err
	}
	ret, err := vm.CreateActorAt(idAddr, code, params)
	return idAddr, ret, err
}

// Allocates the next ID address without installing an actor there.
// Actors that must know each other's address before construction reserve them up front.
func (vm *VM) ReserveAddress() (addr.Address, error) {
	idAddr, err := addr.NewIDAddress(vm.nextID)
	if err != nil {
		return addr.Undef, err
	}
	vm.nextID++
	return idAddr, nil
}

// Installs an actor at a reserved ID address and runs its constructor from the system actor.
// The actor is left uninstalled if construction fails.
func (vm *VM) CreateActorAt(idAddr addr.Address, code cid.Cid, params cbor.Marshaler) (MessageResult, error) {
	if _, ok := vm.actorImpls[code]; !ok {
		return MessageResult{}, errors.Errorf("no implementation for code %v", code)
	}
	if _, found, err := vm.GetActor(idAddr); err != nil {
		return MessageResult{}, err
	} else if found {
		return MessageResult{}, errors.Errorf("actor already exists at %v", idAddr)
	}

	priorRoot, err := vm.checkpoint()
	if err != nil {
		return MessageResult{}, err
	}
	if err := vm.setActor(idAddr, &TestActor{Head: vm.emptyObject, Code: code}); err != nil {
		return MessageResult{}, err
	}
	var p interface{}
	if params != nil {
		p = params
	}
	ret := vm.applyMessage(builtin.SystemActorAddr, idAddr, builtin.MethodConstructor, p)
	if ret.Code != exitcode.Ok {
		if err := vm.rollback(priorRoot); err != nil {
			return ret, err
		}
		return ret, nil
	}
	if _, err := vm.checkpoint(); err != nil {
		return ret, err
	}
	vm.publish(ret.Events)
	return ret, nil
}

// Creates an account for a public key address and registers the key for address normalization.
func (vm *VM) CreateAccount(pubkey addr.Address) (addr.Address, error) {
	idAddr, ret, err := vm.CreateActor(builtin.AccountActorCodeID, &pubkey)
	if err != nil {
		return addr.Undef, err
	}
	if ret.Code != exitcode.Ok {
		return addr.Undef, errors.Errorf("failed to construct account for %v: exit %v", pubkey, ret.Code)
	}

	m, err := adt.AsMap(vm.store, vm.addressRoot, adt.DefaultHamtBitwidth)
	if err != nil {
		return addr.Undef, err
	}
	id, err := addr.IDFromAddress(idAddr)
	if err != nil {
		return addr.Undef, err
	}
	cbgID := cbg.CborInt(id)
	if err := m.Put(adt.AddrKey(pubkey), &cbgID); err != nil {
		return addr.Undef, err
	}
	if vm.addressRoot, err = m.Root(); err != nil {
		return addr.Undef, err
	}
	return idAddr, nil
}

// ApplyMessage applies the message to the current state.
// The sender must be an account. If the message fails, every state change it made is rolled back
// and the notifications it emitted are dropped.
func (vm *VM) ApplyMessage(from, to addr.Address, method abi.MethodNum, params interface{}) MessageResult {
	// This method does not actually execute the message itself,
	// but rather deals with the pre/post processing of a message.
	// (see: `invocationContext.invoke()` for the dispatch and execution)

	// load actor from global state
	var ok bool
	if from, ok = vm.NormalizeAddress(from); !ok {
		return MessageResult{Code: exitcode.SysErrSenderInvalid}
	}
	fromActor, found, err := vm.GetActor(from)
	if err != nil {
		panic(err)
	}
	if !found {
		// Execution error; sender does not exist at time of message execution.
		return MessageResult{Code: exitcode.SysErrSenderInvalid}
	}
	if !builtin.IsPrincipal(fromActor.Code) {
		// Execution error; sender is not an account.
		return MessageResult{Code: exitcode.SysErrSenderInvalid}
	}
	if to, ok = vm.NormalizeAddress(to); !ok {
		return MessageResult{Code: exitcode.SysErrInvalidReceiver}
	}

	// checkpoint state
	priorRoot, err := vm.checkpoint()
	if err != nil {
		panic(err)
	}

	ret := vm.applyMessage(from, to, method, params)

	// Roll back all state if the receipt's exit code is not ok.
	// This is required in addition to rollback within the invocation context since top level messages can fail for
	// more reasons than internal ones. Invocation context still needs its own rollback so actors can recover and
	// proceed from a nested call failure.
	if ret.Code != exitcode.Ok {
		if err := vm.rollback(priorRoot); err != nil {
			panic(err)
		}
		log.Debugw("message aborted", "from", from, "to", to, "method", method, "exit", ret.Code)
		vm.recordVector(from, to, method, params, priorRoot, ret)
		return ret
	}
	if _, err := vm.checkpoint(); err != nil {
		panic(err)
	}
	vm.recordVector(from, to, method, params, priorRoot, ret)
	vm.publish(ret.Events)
	return ret
}

func (vm *VM) recordVector(from, to addr.Address, method abi.MethodNum, params interface{}, priorRoot cid.Cid, ret MessageResult) {
	if vm.vectors == nil {
		return
	}
	if err := vm.vectors.record(vm, from, to, method, params, priorRoot, ret); err != nil {
		panic(errors.Wrap(err, "failed to write message vector"))
	}
}

// Applies a message without sender checks or rollback.
func (vm *VM) applyMessage(from, to addr.Address, method abi.MethodNum, params interface{}) MessageResult {
	fromActor, _, err := vm.GetActor(from)
	if err != nil {
		panic(err)
	}
	topLevel := topLevelContext{}
	imsg := internalMessage{
		from:   from,
		to:     to,
		method: method,
		params: params,
	}
	ctx := newInvocationContext(vm, &topLevel, imsg, fromActor, vm.emptyObject)
	ret, exitCode := ctx.invoke()
	vm.invocations = append(vm.invocations, ctx.invocation)

	result := MessageResult{Ret: ret.inner, Code: exitCode}
	if exitCode == exitcode.Ok {
		result.Events = ctx.events
	}
	return result
}

// Loads the state of the actor at an address.
func (vm *VM) GetState(a addr.Address, out cbor.Unmarshaler) error {
	act, found, err := vm.GetActor(a)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("actor %v not found", a)
	}
	return vm.store.Get(vm.ctx, act.Head, out)
}

func (vm *VM) Store() adt.Store {
	return vm.store
}

// Returns the invocation trees of every message applied so far.
func (vm *VM) Invocations() []*Invocation {
	return vm.invocations
}

// Clears recorded invocations.
func (vm *VM) ClearInvocations() {
	vm.invocations = nil
}

func (vm *VM) getActorImpl(code cid.Cid) runtime.VMActor {
	actorImpl, ok := vm.actorImpls[code]
	if !ok {
		panic(abort{exitcode.SysErrInvalidReceiver, fmt.Sprintf("actor implementation not found for code %v", code)})
	}
	return actorImpl
}

type abort struct {
	code exitcode.ExitCode
	msg  string
}

func (a abort) String() string {
	return fmt.Sprintf("abort(%v): %s", a.code, a.msg)
}

//
// Notifications
//

// A notification emitted by an actor, delivered to subscribers after its message commits.
type Event struct {
	Emitter addr.Address
	Topic   string
	// CBOR encoding of the payload.
	Payload []byte
}

// Decodes the payload into out.
func (e Event) Decode(out cbor.Unmarshaler) error {
	return out.UnmarshalCBOR(bytes.NewReader(e.Payload))
}

type subscription struct {
	topic string
	fn    func(Event)
}

// Registers a function to receive committed notifications under a topic, or under every topic if topic is empty.
// The returned function removes the subscription.
func (vm *VM) Subscribe(topic string, fn func(Event)) (cancel func()) {
	vm.subMu.Lock()
	defer vm.subMu.Unlock()
	sub := &subscription{topic: topic, fn: fn}
	vm.subscribers = append(vm.subscribers, sub)
	return func() {
		vm.subMu.Lock()
		defer vm.subMu.Unlock()
		for i, s := range vm.subscribers {
			if s == sub {
				vm.subscribers = append(vm.subscribers[:i], vm.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (vm *VM) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	vm.subMu.Lock()
	subs := make([]*subscription, len(vm.subscribers))
	copy(subs, vm.subscribers)
	vm.subMu.Unlock()

	for _, e := range events {
		for _, s := range subs {
			if s.topic == "" || s.topic == e.Topic {
				s.fn(e)
			}
		}
	}
}

//
// implement runtime.Message for internalMessage
//

var _ runtime.Message = (*internalMessage)(nil)

// Caller implements runtime.Message.
func (msg internalMessage) Caller() addr.Address {
	return msg.from
}

// Receiver implements runtime.Message.
func (msg internalMessage) Receiver() addr.Address {
	return msg.to
}
