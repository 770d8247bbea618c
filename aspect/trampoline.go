// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"reflect"

	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Send calls the method `sel` of `receiver` with the given arguments through
// the registry hooks and returns the method results. Arguments are converted
// to the method parameter types: assignable values are used as is, nil
// becomes the zero value of nillable types, and numeric values are converted
// when the conversion doesn't change their value. Variadic arguments are
// given individually.
//
// The returned error is the first error returned by a hook callback, as is,
// or an argument error. Errors returned by the method are part of the
// results (cf. `Results.Err()`).
func (r *Registry) Send(receiver interface{}, sel Selector, args ...interface{}) (Results, error) {
	if receiver == nil {
		return nil, sqerrors.Wrapf(InvalidArgumentsError, "send `%s` to a nil receiver", sel)
	}
	class, err := ClassOf(receiver)
	if err != nil {
		return nil, sqerrors.Wrapf(err, "send `%s`", sel)
	}
	method, ok := class.method(sel)
	if !ok {
		return nil, sqerrors.Wrapf(UnresolvableMethodError, "send `%s`: class `%s` has no method `%s`", sel, class.name, sel)
	}

	recv := reflect.ValueOf(receiver)
	if recv.Type() != class.methodSetType {
		if valueMethod, ok := recv.Type().MethodByName(string(sel)); ok {
			// Value receivers cross the call by value
			method = valueMethod
		} else {
			// Pointer method of a value: call it on a pointer to a copy
			ptr := reflect.New(class.typ)
			ptr.Elem().Set(recv)
			recv = ptr
		}
	}

	in, err := marshalArgs(method.Type, args)
	if err != nil {
		return nil, sqerrors.Wrapf(err, "send `%s` to `%s`", sel, class.name)
	}

	results, err := r.invoke(recv, class, sel, method.Func, in)
	if err != nil {
		return nil, err
	}
	return boxValues(results), nil
}

// marshalArgs converts the values to the parameter types of the method type
// `fnType`, whose first parameter is the receiver. Variadic values are packed
// into the final slice parameter.
func marshalArgs(fnType reflect.Type, args []interface{}) ([]reflect.Value, error) {
	numIn := fnType.NumIn() - 1
	fixed := numIn
	if fnType.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, sqerrors.Wrapf(InvalidArgumentsError, "unexpected number of arguments: got `%d` instead of at least `%d`", len(args), fixed)
		}
	} else if len(args) != numIn {
		return nil, sqerrors.Wrapf(InvalidArgumentsError, "unexpected number of arguments: got `%d` instead of `%d`", len(args), numIn)
	}

	in := make([]reflect.Value, numIn)
	for i := 0; i < fixed; i++ {
		arg, err := convert(args[i], fnType.In(i+1))
		if err != nil {
			return nil, sqerrors.Wrapf(err, "argument %d", i)
		}
		in[i] = arg
	}

	if fixed < numIn {
		sliceType := fnType.In(numIn)
		variadic := reflect.New(sliceType).Elem()
		if n := len(args) - fixed; n > 0 {
			variadic.Set(reflect.MakeSlice(sliceType, n, n))
			for j, v := range args[fixed:] {
				arg, err := convert(v, sliceType.Elem())
				if err != nil {
					return nil, sqerrors.Wrapf(err, "variadic argument %d", fixed+j)
				}
				variadic.Index(j).Set(arg)
			}
		}
		in[fixed] = variadic
	}
	return in, nil
}

// invoke calls the method function `fn` with the receiver and arguments
// through the hooks of the call site, if any.
func (r *Registry) invoke(receiver reflect.Value, class *Class, sel Selector, fn reflect.Value, args []reflect.Value) ([]reflect.Value, error) {
	inv := newInvocation(receiver, class, sel, fn, args)
	var s *site
	if r.Enabled() {
		s = r.lookup(receiver, class, sel)
	}
	if s == nil {
		inv.callOriginal()
		return inv.results, nil
	}
	if err := dispatch(s, inv); err != nil {
		return inv.results, err
	}
	return inv.results, nil
}

// dispatch runs the before hooks, then the instead hook or the original
// method, then the after hooks. The first callback error stops the call.
func dispatch(s *site, inv *Invocation) error {
	set := s.load()
	s.calls.Increment()

	for _, h := range set.before {
		if err := h.call(inv); err != nil {
			return err
		}
	}

	if h := set.effectiveInstead; h != nil {
		if err := h.call(inv); err != nil {
			return err
		}
	} else {
		inv.callOriginal()
	}

	for _, h := range set.after {
		if err := h.call(inv); err != nil {
			return err
		}
	}
	return nil
}

// MakeFunc stores into the function variable pointed to by `fnPtr` a
// function calling the method `sel` through the registry hooks. The function
// parameters are the receiver followed by the method parameters, and its
// results are the method results:
//
//	// func (u *User) Buy(product string, count int) error
//	var buy func(*User, string, int) error
//	err := aspect.MakeFunc(reg, "Buy", &buy)
//
// A hook callback error is returned through the last result when its type is
// `error`, and panics otherwise.
func MakeFunc(r *Registry, sel Selector, fnPtr interface{}) (err error) {
	defer func() {
		if err != nil {
			err = sqerrors.Wrapf(err, "make function of method `%s`", sel)
		}
	}()

	if r == nil {
		return sqerrors.Wrap(InvalidFuncError, "nil registry")
	}
	v := reflect.ValueOf(fnPtr)
	if fnPtr == nil || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Func {
		return sqerrors.Wrapf(InvalidFuncError, "expecting a non-nil pointer to a function variable but got `%T`", fnPtr)
	}
	fnType := v.Elem().Type()
	if fnType.NumIn() == 0 {
		return sqerrors.Wrapf(InvalidFuncError, "function type `%s` has no receiver parameter", fnType)
	}
	recvType := fnType.In(0)
	class, err := classOfType(recvType)
	if err != nil {
		return err
	}
	method, ok := recvType.MethodByName(string(sel))
	if !ok {
		if class.RespondsTo(sel) {
			return sqerrors.Wrapf(InvalidFuncError, "the receiver parameter must have type `%s`", class.methodSetType)
		}
		return sqerrors.Wrapf(UnresolvableMethodError, "class `%s` has no method `%s`", class.name, sel)
	}
	if !sameSignature(method.Type, fnType) {
		return sqerrors.Wrapf(InvalidFuncError, "function type `%s` doesn't match the method type `%s`", fnType, method.Type)
	}
	errorResult := fnType.NumOut() > 0 && fnType.Out(fnType.NumOut()-1) == errorType

	fn := reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		results, err := r.invoke(in[0], class, sel, method.Func, copyValues(in[1:]))
		if err != nil {
			if !errorResult {
				panic(err)
			}
			// The error value is set through its pointer because ValueOf returns
			// the concrete type value and error is an interface
			results[len(results)-1].Set(reflect.ValueOf(&err).Elem())
		}
		return results
	})
	v.Elem().Set(fn)
	r.logger.Debugf("aspect: trampoline created for %s.%s", class.name, sel)
	return nil
}

func sameSignature(a, b reflect.Type) bool {
	if a.NumIn() != b.NumIn() || a.NumOut() != b.NumOut() || a.IsVariadic() != b.IsVariadic() {
		return false
	}
	for i := 0; i < a.NumIn(); i++ {
		if a.In(i) != b.In(i) {
			return false
		}
	}
	for i := 0; i < a.NumOut(); i++ {
		if a.Out(i) != b.Out(i) {
			return false
		}
	}
	return true
}

// MustMakeFunc is like MakeFunc but panics on error. It simplifies the
// initialization of package-level trampolines.
func MustMakeFunc(r *Registry, sel Selector, fnPtr interface{}) {
	if err := MakeFunc(r, sel, fnPtr); err != nil {
		panic(err)
	}
}
