// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package sqgo_test

import (
	"strings"
	"testing"

	"github.com/sqreen/go-aspect/internal/sqlib/sqgo"
	"github.com/stretchr/testify/require"
)

type example struct{}

func (*example) Method() {}

func function() {}

func TestUnvendor(t *testing.T) {
	for _, tc := range []struct {
		Symbol   string
		Expected string
	}{
		{
			Symbol:   "github.com/sqreen/go-aspect/aspect",
			Expected: "github.com/sqreen/go-aspect/aspect",
		},
		{
			Symbol:   "github.com/my-org/my-app/vendor/github.com/sqreen/go-aspect/aspect",
			Expected: "github.com/sqreen/go-aspect/aspect",
		},
		{
			Symbol:   "my-app/vendor/github.com/sqreen/go-aspect/aspect.(*Registry).Send",
			Expected: "github.com/sqreen/go-aspect/aspect.(*Registry).Send",
		},
	} {
		tc := tc
		t.Run("", func(t *testing.T) {
			require.Equal(t, tc.Expected, sqgo.Unvendor(tc.Symbol))
		})
	}
}

func TestFuncSymbol(t *testing.T) {
	require.True(t, strings.HasSuffix(sqgo.FuncSymbol(function), "sqgo_test.function"))
	require.True(t, strings.HasSuffix(sqgo.FuncSymbol((*example).Method), "sqgo_test.(*example).Method"))
	require.Equal(t, "", sqgo.FuncSymbol(nil))
	require.Equal(t, "", sqgo.FuncSymbol(33))
	var nilFunc func()
	require.Equal(t, "", sqgo.FuncSymbol(nilFunc))
}
