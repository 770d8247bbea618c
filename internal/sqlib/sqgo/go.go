// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package sqgo

import (
	"reflect"
	"runtime"
	"strings"
)

// Unvendor returns the given symbol name without the vendor directory prefix
// if any. For example, given `my-app/vendor/github.com/sqreen/go-aspect`,
// the function returns `github.com/sqreen/go-aspect`
func Unvendor(symbol string) (unvendored string) {
	vendorDir := "/vendor/"
	i := strings.Index(symbol, vendorDir)
	if i == -1 {
		return symbol
	}
	return symbol[i+len(vendorDir):]
}

// FuncSymbol returns the unvendored symbol name of function value `fn`, or
// the empty string when `fn` is not a non-nil function.
func FuncSymbol(fn interface{}) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	return Unvendor(f.Name())
}
