// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
)

// Callback is a hook callback. The supported types are:
//
// - `Func` or `func(*Invocation) error`, getting the call invocation.
// - `SelectorFunc` or `func(*Invocation, Selector) error`, also getting the
//   selector triggering the call.
// - `func(*Invocation)` for callbacks that cannot fail.
// - `CallbackGetter` values, returning one of the above.
//
// A non-nil error returned by a callback stops the call and is returned to
// the caller.
type (
	Callback       interface{}
	Func           func(*Invocation) error
	SelectorFunc   func(*Invocation, Selector) error
	CallbackGetter interface {
		Callback() Callback
	}
)

// normalizeCallback returns the SelectorFunc calling the given callback.
func normalizeCallback(cb Callback) (SelectorFunc, error) {
	// Loop until the callback type is not one of the above
	for {
		switch actual := cb.(type) {
		case SelectorFunc:
			if actual == nil {
				return nil, sqerrors.Wrap(InvalidCallbackError, "nil callback")
			}
			return actual, nil
		case func(*Invocation, Selector) error:
			cb = SelectorFunc(actual)
		case Func:
			if actual == nil {
				return nil, sqerrors.Wrap(InvalidCallbackError, "nil callback")
			}
			return func(inv *Invocation, _ Selector) error {
				return actual(inv)
			}, nil
		case func(*Invocation) error:
			cb = Func(actual)
		case func(*Invocation):
			if actual == nil {
				return nil, sqerrors.Wrap(InvalidCallbackError, "nil callback")
			}
			return func(inv *Invocation, _ Selector) error {
				actual(inv)
				return nil
			}, nil
		case CallbackGetter:
			cb = actual.Callback()
		case nil:
			return nil, sqerrors.Wrap(InvalidCallbackError, "nil callback")
		default:
			return nil, sqerrors.Wrapf(InvalidCallbackError, "unexpected callback type `%T`", cb)
		}
	}
}
