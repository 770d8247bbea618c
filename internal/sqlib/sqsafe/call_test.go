// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package sqsafe_test

import (
	"reflect"
	"testing"

	"github.com/sqreen/go-aspect/internal/sqlib/sqsafe"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestCall(t *testing.T) {
	t.Run("without error", func(t *testing.T) {
		err := sqsafe.Call(func() error {
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("with a regular error", func(t *testing.T) {
		err := sqsafe.Call(func() error {
			return xerrors.New("oops")
		})
		require.Error(t, err)
		require.Equal(t, "oops", err.Error())
	})

	t.Run("with a panic string error", func(t *testing.T) {
		err := sqsafe.Call(func() error {
			panic("oops")
		})
		var panicErr *sqsafe.PanicError
		require.Error(t, err)
		require.True(t, xerrors.As(err, &panicErr))
		require.Equal(t, "oops", panicErr.Err.Error())
		require.Equal(t, "oops", panicErr.Value)
	})

	t.Run("with a panic error", func(t *testing.T) {
		origErr := xerrors.New("oops")
		err := sqsafe.Call(func() error {
			panic(origErr)
		})
		var panicErr *sqsafe.PanicError
		require.Error(t, err)
		require.True(t, xerrors.As(err, &panicErr))
		require.True(t, xerrors.Is(err, origErr))
	})

	t.Run("with another panic argument type", func(t *testing.T) {
		err := sqsafe.Call(func() error {
			panic(33.7)
		})
		var panicErr *sqsafe.PanicError
		require.Error(t, err)
		require.True(t, xerrors.As(err, &panicErr))
		require.Equal(t, "33.7", panicErr.Err.Error())
	})

	t.Run("with a reflect panic", func(t *testing.T) {
		err := sqsafe.Call(func() error {
			reflect.ValueOf(33).Set(reflect.ValueOf(34))
			return nil
		})
		var panicErr *sqsafe.PanicError
		require.Error(t, err)
		require.True(t, xerrors.As(err, &panicErr))
	})
}
