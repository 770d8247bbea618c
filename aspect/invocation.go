// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"reflect"

	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
)

// Invocation is the context of an intercepted call given to hook callbacks.
// It gives read/write access to the call arguments and results and is only
// valid during the call.
type Invocation struct {
	receiver reflect.Value
	class    *Class
	selector Selector
	// Method function value, the receiver being the first parameter.
	fn       reflect.Value
	variadic bool
	// Addressable argument values, excluding the receiver.
	args []reflect.Value
	// Addressable result values.
	results []reflect.Value
	// Whether the original method was called.
	called bool
}

func newInvocation(receiver reflect.Value, class *Class, sel Selector, fn reflect.Value, args []reflect.Value) *Invocation {
	fnType := fn.Type()
	resultTypes := make([]reflect.Type, fnType.NumOut())
	for i := range resultTypes {
		resultTypes[i] = fnType.Out(i)
	}
	return &Invocation{
		receiver: receiver,
		class:    class,
		selector: sel,
		fn:       fn,
		variadic: fnType.IsVariadic(),
		args:     args,
		results:  zeroValues(resultTypes),
	}
}

// Instance returns the method receiver.
func (inv *Invocation) Instance() interface{} {
	return inv.receiver.Interface()
}

// Class returns the class of the method receiver.
func (inv *Invocation) Class() *Class { return inv.class }

// Selector returns the selector of the called method.
func (inv *Invocation) Selector() Selector { return inv.selector }

// NumArgs returns the number of arguments of the method, excluding the
// receiver. Variadic arguments are counted as a single slice argument.
func (inv *Invocation) NumArgs() int { return len(inv.args) }

// Arg returns the i-th argument value, nil when out of range.
func (inv *Invocation) Arg(i int) interface{} {
	if i < 0 || i >= len(inv.args) {
		return nil
	}
	return inv.args[i].Interface()
}

// ArgValue returns the addressable i-th argument value. It is the zero
// reflect.Value when out of range.
func (inv *Invocation) ArgValue(i int) reflect.Value {
	if i < 0 || i >= len(inv.args) {
		return reflect.Value{}
	}
	return inv.args[i]
}

// Arguments returns the list of argument values.
func (inv *Invocation) Arguments() []interface{} {
	return boxValues(inv.args)
}

// SetArg replaces the i-th argument with `v`, following the same conversion
// rules as `Registry.Send()`.
func (inv *Invocation) SetArg(i int, v interface{}) error {
	if i < 0 || i >= len(inv.args) {
		return sqerrors.Wrapf(InvalidArgumentsError, "argument index `%d` out of range `[0,%d)`", i, len(inv.args))
	}
	arg, err := convert(v, inv.args[i].Type())
	if err != nil {
		return sqerrors.Wrapf(err, "argument %d", i)
	}
	inv.args[i].Set(arg)
	return nil
}

// NumResults returns the number of results of the method.
func (inv *Invocation) NumResults() int { return len(inv.results) }

// Result returns the i-th result value, nil when out of range.
func (inv *Invocation) Result(i int) interface{} {
	if i < 0 || i >= len(inv.results) {
		return nil
	}
	return inv.results[i].Interface()
}

// Results returns the list of result values. They are the zero values until
// the original method or an instead hook sets them.
func (inv *Invocation) Results() Results {
	return boxValues(inv.results)
}

// SetResult replaces the i-th result with `v`.
func (inv *Invocation) SetResult(i int, v interface{}) error {
	if i < 0 || i >= len(inv.results) {
		return sqerrors.Wrapf(InvalidArgumentsError, "result index `%d` out of range `[0,%d)`", i, len(inv.results))
	}
	r, err := convert(v, inv.results[i].Type())
	if err != nil {
		return sqerrors.Wrapf(err, "result %d", i)
	}
	inv.results[i].Set(r)
	return nil
}

// SetResults replaces every result. The number of values must be the number
// of results. Results are left unchanged on error.
func (inv *Invocation) SetResults(values ...interface{}) error {
	if len(values) != len(inv.results) {
		return sqerrors.Wrapf(InvalidArgumentsError, "unexpected number of results: got `%d` instead of `%d`", len(values), len(inv.results))
	}
	converted := make([]reflect.Value, len(values))
	for i, v := range values {
		r, err := convert(v, inv.results[i].Type())
		if err != nil {
			return sqerrors.Wrapf(err, "result %d", i)
		}
		converted[i] = r
	}
	for i, r := range converted {
		inv.results[i].Set(r)
	}
	return nil
}

// OriginalCalled returns true when the original method was called.
func (inv *Invocation) OriginalCalled() bool { return inv.called }

// callOriginal calls the original method with the current arguments and
// stores its results.
func (inv *Invocation) callOriginal() {
	in := make([]reflect.Value, 0, len(inv.args)+1)
	in = append(in, inv.receiver)
	in = append(in, inv.args...)
	var out []reflect.Value
	if inv.variadic {
		out = inv.fn.CallSlice(in)
	} else {
		out = inv.fn.Call(in)
	}
	inv.called = true
	for i, r := range out {
		inv.results[i].Set(r)
	}
}

// Results is the list of result values of a call.
type Results []interface{}

// Err returns the last result when it is a non-nil error, nil otherwise.
func (r Results) Err() error {
	if len(r) == 0 {
		return nil
	}
	err, _ := r[len(r)-1].(error)
	return err
}

func boxValues(values []reflect.Value) []interface{} {
	boxed := make([]interface{}, len(values))
	for i, v := range values {
		boxed[i] = v.Interface()
	}
	return boxed
}
