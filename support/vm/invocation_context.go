package vm

import (
	"bytes"
	"context"
	"fmt"
	"reflect"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/ipfs/go-cid"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/runtime"
)

var _ runtime.Runtime = (*invocationContext)(nil)

// Context for a top-level invocation sequence
type topLevelContext struct {
	sendDepth int
}

// Context for an individual message invocation, including inter-actor sends.
type invocationContext struct {
	vm               *VM
	topLevel         *topLevelContext
	msg              internalMessage // The message being processed
	fromActor        *TestActor      // The immediate calling actor
	toActor          *TestActor      // The actor to which message is addressed
	emptyObject      cid.Cid
	allowSideEffects bool
	callerValidated  bool
	// Notifications emitted by this invocation and its successful sends, in order.
	events     []Event
	invocation *Invocation
}

// The maximum depth of nested sends before a message aborts.
const MaxSendDepth = 64

func newInvocationContext(vm *VM, topLevel *topLevelContext, msg internalMessage, fromActor *TestActor, emptyObject cid.Cid) invocationContext {
	// Note: the toActor and stateHandle are loaded during the `invoke()`
	return invocationContext{
		vm:               vm,
		topLevel:         topLevel,
		msg:              msg,
		fromActor:        fromActor,
		toActor:          nil,
		emptyObject:      emptyObject,
		allowSideEffects: true,
		callerValidated:  false,
		invocation:       &Invocation{Msg: msg},
	}
}

// Invocation records a message and its result, with the sends it made in turn.
type Invocation struct {
	Msg            internalMessage
	Exitcode       exitcode.ExitCode
	Ret            cbor.Marshaler
	SubInvocations []*Invocation
}

func (i *Invocation) From() addr.Address    { return i.Msg.from }
func (i *Invocation) To() addr.Address      { return i.Msg.to }
func (i *Invocation) Method() abi.MethodNum { return i.Msg.method }
func (i *Invocation) Params() interface{}   { return i.Msg.params }

type returnWrapper struct {
	inner cbor.Marshaler
}

func (r returnWrapper) into(o cbor.Unmarshaler) error {
	if r.inner == nil {
		return fmt.Errorf("failed to unmarshal nil return (did you mean abi.Empty?)")
	}
	b := bytes.Buffer{}
	if err := r.inner.MarshalCBOR(&b); err != nil {
		return err
	}
	return o.UnmarshalCBOR(&b)
}

//
// Runtime implementation
//

func (ic *invocationContext) Message() runtime.Message {
	return ic.msg
}

func (ic *invocationContext) CurrEpoch() abi.ChainEpoch {
	return ic.vm.currentEpoch
}

func (ic *invocationContext) ValidateImmediateCallerAcceptAny() {
	ic.assertf(!ic.callerValidated, "caller has been double validated")
	ic.callerValidated = true
}

func (ic *invocationContext) ValidateImmediateCallerIs(addrs ...addr.Address) {
	ic.assertf(!ic.callerValidated, "caller has been double validated")
	ic.callerValidated = true
	for _, a := range addrs {
		if a == ic.msg.from {
			return
		}
	}
	ic.Abortf(exitcode.ErrForbidden, "caller %s is not one of supported", ic.msg.from)
}

func (ic *invocationContext) ValidateImmediateCallerType(types ...cid.Cid) {
	ic.assertf(!ic.callerValidated, "caller has been double validated")
	ic.callerValidated = true
	for _, t := range types {
		if t.Equals(ic.fromActor.Code) {
			return
		}
	}
	ic.Abortf(exitcode.ErrForbidden, "caller type %s is not one of supported", builtin.ActorNameByCode(ic.fromActor.Code))
}

func (ic *invocationContext) GetActorCodeCID(a addr.Address) (ret cid.Cid, ok bool) {
	entry, found, err := ic.vm.GetActor(a)
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to load actor %v: %v", a, err)
	}
	if !found {
		return cid.Undef, false
	}
	return entry.Code, true
}

func (ic *invocationContext) StateCreate(obj cbor.Marshaler) {
	actr := ic.loadActor()
	if !actr.Head.Equals(ic.emptyObject) {
		ic.Abortf(exitcode.SysErrorIllegalActor, "failed to construct actor state: already initialized")
	}
	c := ic.StorePut(obj)
	actr.Head = c
	ic.storeActor(actr)
}

func (ic *invocationContext) StateReadonly(obj cbor.Unmarshaler) {
	actr := ic.loadActor()
	if !ic.StoreGet(actr.Head, obj) {
		ic.Abortf(exitcode.SysErrorIllegalArgument, "failed to read actor state")
	}
}

func (ic *invocationContext) StateTransaction(obj cbor.Er, f func()) {
	if obj == nil {
		ic.Abortf(exitcode.SysErrorIllegalActor, "Must not pass nil to Transaction()")
	}
	if !ic.allowSideEffects {
		ic.Abortf(exitcode.SysErrorIllegalActor, "nested transaction")
	}

	// Load state from the actor's current head, which a nested send may have moved.
	ic.StateReadonly(obj)

	ic.allowSideEffects = false
	f()
	ic.allowSideEffects = true

	actr := ic.loadActor()
	actr.Head = ic.StorePut(obj)
	ic.storeActor(actr)
}

func (ic *invocationContext) StoreGet(c cid.Cid, o cbor.Unmarshaler) bool {
	if err := ic.vm.store.Get(ic.vm.ctx, c, o); err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to load %v: %v", c, err)
	}
	return true
}

func (ic *invocationContext) StorePut(x cbor.Marshaler) cid.Cid {
	c, err := ic.vm.store.Put(ic.vm.ctx, x)
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "could not put object in store: %v", err)
	}
	return c
}

func (ic *invocationContext) Send(toAddr addr.Address, methodNum abi.MethodNum, params cbor.Marshaler, out cbor.Er) exitcode.ExitCode {
	// check if side-effects are allowed
	if !ic.allowSideEffects {
		ic.Abortf(exitcode.SysErrorIllegalActor, "side-effect within transaction")
	}
	if ic.topLevel.sendDepth >= MaxSendDepth {
		ic.Abortf(exitcode.SysErrForbidden, "send depth %d exceeds maximum", ic.topLevel.sendDepth)
	}

	from := ic.msg.to
	fromActor := ic.loadActor()

	// checkpoint the state tree so a failed send leaves no trace
	priorRoot, err := ic.vm.checkpoint()
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to checkpoint state: %v", err)
	}

	newMsg := internalMessage{
		from:   from,
		to:     toAddr,
		method: methodNum,
		params: params,
	}
	newCtx := newInvocationContext(ic.vm, ic.topLevel, newMsg, fromActor, ic.emptyObject)

	ic.topLevel.sendDepth++
	ret, code := newCtx.invoke()
	ic.topLevel.sendDepth--
	ic.invocation.SubInvocations = append(ic.invocation.SubInvocations, newCtx.invocation)

	if code != exitcode.Ok {
		if err := ic.vm.rollback(priorRoot); err != nil {
			ic.Abortf(exitcode.ErrIllegalState, "failed to roll back send: %v", err)
		}
		return code
	}

	ic.events = append(ic.events, newCtx.events...)
	if out != nil && ret.inner != nil {
		if err := ret.into(out); err != nil {
			ic.Abortf(exitcode.ErrSerialization, "failed to unmarshal return value: %v", err)
		}
	}
	return code
}

func (ic *invocationContext) Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	panic(abort{errExitCode, fmt.Sprintf(msg, args...)})
}

func (ic *invocationContext) Emit(topic string, payload cbor.Marshaler) {
	if !ic.allowSideEffects {
		ic.Abortf(exitcode.SysErrorIllegalActor, "side-effect within transaction")
	}
	var buf bytes.Buffer
	if err := payload.MarshalCBOR(&buf); err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to encode %s notification: %v", topic, err)
	}
	ic.events = append(ic.events, Event{Emitter: ic.msg.to, Topic: topic, Payload: buf.Bytes()})
}

func (ic *invocationContext) Context() context.Context {
	return ic.vm.ctx
}

func (ic *invocationContext) Log(level rtt.LogLevel, msg string, args ...interface{}) {
	switch level {
	case rtt.DEBUG:
		log.Debugf(msg, args...)
	case rtt.INFO:
		log.Infof(msg, args...)
	case rtt.WARN:
		log.Warnf(msg, args...)
	case rtt.ERROR:
		log.Errorf(msg, args...)
	}
}

//
// Dispatch
//

// Processes the message, returning its result and exit code. Aborts are recovered and turned into exit codes.
func (ic *invocationContext) invoke() (ret returnWrapper, errcode exitcode.ExitCode) {
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			log.Debugw("invocation aborted", "to", ic.msg.to, "method", ic.msg.method, "exit", a.code, "reason", a.msg)
			ret = returnWrapper{}
			errcode = a.code
		}
		ic.invocation.Exitcode = errcode
		ic.invocation.Ret = ret.inner
	}()

	// 1. load target actor
	toActor, found, err := ic.vm.GetActor(ic.msg.to)
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to load receiver %v: %v", ic.msg.to, err)
	}
	if !found {
		ic.Abortf(exitcode.SysErrInvalidReceiver, "actor %v not found", ic.msg.to)
	}
	ic.toActor = toActor

	// 2. a bare send does not invoke any code
	if ic.msg.method == builtin.MethodSend {
		return returnWrapper{}, exitcode.Ok
	}

	// 3. dispatch to the actor's exported method
	actorImpl := ic.vm.getActorImpl(toActor.Code)
	ret = ic.dispatch(actorImpl, ic.msg.method, ic.msg.params)

	// 4. every method must validate its caller
	if !ic.callerValidated {
		ic.Abortf(exitcode.SysErrorIllegalActor, "caller MUST be validated during method execution")
	}
	return ret, exitcode.Ok
}

var typeOfCborUnmarshaler = reflect.TypeOf((*cbor.Unmarshaler)(nil)).Elem()
var typeOfCborMarshaler = reflect.TypeOf((*cbor.Marshaler)(nil)).Elem()

func (ic *invocationContext) dispatch(actor runtime.VMActor, method abi.MethodNum, params interface{}) returnWrapper {
	exports := actor.Exports()
	if uint64(method) >= uint64(len(exports)) || exports[method] == nil {
		ic.Abortf(exitcode.SysErrInvalidMethod, "method %d undefined for %s", method, builtin.ActorNameByCode(actor.Code()))
	}
	meth := reflect.ValueOf(exports[method])
	methType := meth.Type()
	if methType.NumIn() != 2 || !methType.In(1).Implements(typeOfCborUnmarshaler) || methType.NumOut() != 1 ||
		!methType.Out(0).Implements(typeOfCborMarshaler) {
		ic.Abortf(exitcode.SysErrInvalidMethod, "method %d of %s has an invalid signature", method, builtin.ActorNameByCode(actor.Code()))
	}

	// Decode params into the method's own param type by round-tripping through CBOR,
	// so actors never share mutable values with their callers.
	arg := reflect.New(methType.In(1).Elem())
	if params != nil {
		m, ok := params.(cbor.Marshaler)
		if !ok {
			ic.Abortf(exitcode.ErrSerialization, "params %T are not CBOR-marshalable", params)
		}
		var buf bytes.Buffer
		if err := m.MarshalCBOR(&buf); err != nil {
			ic.Abortf(exitcode.ErrSerialization, "failed to encode params: %v", err)
		}
		if buf.Len() > 0 {
			if err := arg.Interface().(cbor.Unmarshaler).UnmarshalCBOR(&buf); err != nil {
				ic.Abortf(exitcode.ErrSerialization, "failed to decode params for method %d: %v", method, err)
			}
		}
	}

	out := meth.Call([]reflect.Value{reflect.ValueOf(ic), arg})
	if out[0].Kind() == reflect.Ptr && out[0].IsNil() {
		return returnWrapper{}
	}
	return returnWrapper{out[0].Interface().(cbor.Marshaler)}
}

//
// Utilities
//

func (ic *invocationContext) loadActor() *TestActor {
	actr, found, err := ic.vm.GetActor(ic.msg.to)
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to load actor %v: %v", ic.msg.to, err)
	}
	if !found {
		ic.Abortf(exitcode.SysErrInvalidReceiver, "actor %v not found", ic.msg.to)
	}
	return actr
}

func (ic *invocationContext) storeActor(actr *TestActor) {
	if err := ic.vm.setActor(ic.msg.to, actr); err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to store actor %v: %v", ic.msg.to, err)
	}
}

func (ic *invocationContext) assertf(condition bool, msg string, args ...interface{}) {
	if !condition {
		panic(abort{exitcode.SysErrorIllegalActor, fmt.Sprintf(msg, args...)})
	}
}
