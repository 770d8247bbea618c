// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"strings"

	"github.com/sqreen/go-aspect/internal/sqlib/sqgo"
)

// Selector identifies a method by its name.
type Selector string

// SelectorOf returns the selector of the given method expression or method
// value, such as `(*User).Logout` or `user.Logout`. The empty selector is
// returned when `method` is not a function.
func SelectorOf(method interface{}) Selector {
	symbol := sqgo.FuncSymbol(method)
	if symbol == "" {
		return ""
	}
	// Method values are suffixed with `-fm`
	symbol = strings.TrimSuffix(symbol, "-fm")
	if i := strings.LastIndexByte(symbol, '.'); i != -1 {
		symbol = symbol[i+1:]
	}
	return Selector(symbol)
}

func (s Selector) String() string { return string(s) }
