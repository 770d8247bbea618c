// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"reflect"

	"github.com/modern-go/reflect2"
	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
	"github.com/sqreen/go-aspect/internal/sqlib/sqsafe"
	"golang.org/x/xerrors"
)

// convert returns an addressable value of type `t` holding `v`. Assignable
// values are used as is, untyped nil values become the zero value of nillable
// types, and numeric values are converted when the conversion is exact.
func convert(v interface{}, t reflect.Type) (result reflect.Value, err error) {
	if rv, ok := v.(reflect.Value); ok {
		if !rv.IsValid() {
			v = nil
		} else if rv.CanInterface() {
			v = rv.Interface()
		}
	}

	result = reflect.New(t).Elem()
	if v == nil {
		if !reflect2.IsNullable(t.Kind()) {
			return reflect.Value{}, sqerrors.Wrapf(InvalidArgumentsError, "cannot use nil as type `%s`", t)
		}
		return result, nil
	}

	err = sqsafe.Call(func() error {
		rv := reflect.ValueOf(v)
		vt := rv.Type()
		switch {
		case vt.AssignableTo(t):
			result.Set(rv)
		case isNumber(vt.Kind()) && isNumber(t.Kind()):
			converted, ok := convertNumber(rv, t)
			if !ok {
				return sqerrors.Wrapf(InvalidArgumentsError, "inexact conversion of `%v` from `%s` to `%s`", v, vt, t)
			}
			result.Set(converted)
		case vt.Kind() == t.Kind() && (t.Kind() == reflect.String || t.Kind() == reflect.Bool):
			// Named string and bool types
			result.Set(rv.Convert(t))
		default:
			return sqerrors.Wrapf(InvalidArgumentsError, "cannot use value of type `%s` as type `%s`", vt, t)
		}
		return nil
	})
	if err != nil {
		var panicErr *sqsafe.PanicError
		if xerrors.As(err, &panicErr) {
			return reflect.Value{}, sqerrors.Wrapf(InvalidArgumentsError, "conversion to `%s`: %v", t, panicErr.Err)
		}
		return reflect.Value{}, err
	}
	return result, nil
}

func isNumber(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// convertNumber converts the numeric value `v` to the numeric type `t` when
// the conversion doesn't change the value.
func convertNumber(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	from, to := v.Kind(), t.Kind()
	switch {
	case isInt(from) && v.Int() < 0 && isUint(to):
		return reflect.Value{}, false
	case isUint(from) && isInt(to) && v.Uint() > 1<<63-1:
		return reflect.Value{}, false
	case isFloat(from) && v.Float() != v.Float():
		// NaN can only be converted to another float type
		if isFloat(to) {
			return v.Convert(t), true
		}
		return reflect.Value{}, false
	}
	converted := v.Convert(t)
	if back := converted.Convert(v.Type()); back.Interface() != v.Interface() {
		return reflect.Value{}, false
	}
	if (isInt(from) && isInt(to)) || (isUint(from) && isUint(to)) {
		return converted, true
	}
	// Also check the sign was kept by conversions between int, uint and float
	// kinds.
	if sign(converted) != sign(v) {
		return reflect.Value{}, false
	}
	return converted, true
}

func sign(v reflect.Value) int {
	switch k := v.Kind(); {
	case isInt(k):
		switch n := v.Int(); {
		case n < 0:
			return -1
		case n > 0:
			return 1
		}
	case isUint(k):
		if v.Uint() > 0 {
			return 1
		}
	case isFloat(k):
		switch f := v.Float(); {
		case f < 0:
			return -1
		case f > 0:
			return 1
		}
	}
	return 0
}

// zeroValues returns addressable zero values of the given types.
func zeroValues(types []reflect.Type) []reflect.Value {
	values := make([]reflect.Value, len(types))
	for i, t := range types {
		values[i] = reflect.New(t).Elem()
	}
	return values
}

// copyValues returns addressable copies of the given values.
func copyValues(values []reflect.Value) []reflect.Value {
	copies := make([]reflect.Value, len(values))
	for i, v := range values {
		c := reflect.New(v.Type()).Elem()
		c.Set(v)
		copies[i] = c
	}
	return copies
}
