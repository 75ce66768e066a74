package mock

import (
	"reflect"
	"testing"

	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/stretchr/testify/assert"

	"github.com/vestnft/vesting-actors/actors/runtime"
)

type exporter interface {
	Exports() []interface{}
}

// Checks that every export of an actor is a method the VM can dispatch to.
func CheckActorExports(t *testing.T, act exporter) {
	for i, m := range act.Exports() {
		if i == 0 { // Send is implicit
			continue
		}
		if m == nil {
			continue
		}
		meth := reflect.ValueOf(m)
		mt := meth.Type()
		assert.Equal(t, reflect.Func, mt.Kind(), "export %d is not a function", i)
		if !assert.Equal(t, 2, mt.NumIn(), "export %d must take two parameters", i) {
			continue
		}
		assert.Equal(t, typeOfRuntimeInterface, mt.In(0), "export %d first parameter must be %v", i, reflect.TypeOf((*runtime.Runtime)(nil)).Elem())
		assert.True(t, mt.In(1).Implements(reflect.TypeOf((*cbor.Unmarshaler)(nil)).Elem()), "export %d params %v are not unmarshalable", i, mt.In(1))
		if assert.Equal(t, 1, mt.NumOut(), "export %d must return a single value", i) {
			assert.True(t, mt.Out(0).Implements(typeOfCborMarshaler), "export %d return %v is not marshalable", i, mt.Out(0))
		}
	}
}
