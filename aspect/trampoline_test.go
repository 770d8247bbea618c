// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect_test

import (
	"testing"

	"github.com/sqreen/go-aspect/aspect"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestSend(t *testing.T) {
	reg := aspect.NewRegistry()

	t.Run("results", func(t *testing.T) {
		user := &User{Price: 2.5, Count: 4}
		results, err := reg.Send(user, "Total")
		require.NoError(t, err)
		require.Equal(t, aspect.Results{10.0}, results)
		require.NoError(t, results.Err())
	})

	t.Run("method errors are results", func(t *testing.T) {
		results, err := reg.Send(&User{}, "Checkout")
		require.NoError(t, err)
		require.Equal(t, aspect.Results{0, errEmptyCart}, results)
		require.Equal(t, errEmptyCart, results.Err())
	})

	t.Run("converted arguments", func(t *testing.T) {
		user := &User{}
		results, err := reg.Send(user, "Buy", "MacBook", 10000, int8(5))
		require.NoError(t, err)
		require.Empty(t, results)
		require.Equal(t, "MacBook", *user.ProductName)
		require.Equal(t, 10000.0, user.Price)
		require.Equal(t, 5, user.Count)
	})

	t.Run("nil arguments", func(t *testing.T) {
		user := &User{}
		_, err := reg.Send(user, "BuyProducts", nil, nil)
		require.NoError(t, err)
		require.Nil(t, user.Products)
		require.Nil(t, user.Completion)
	})

	t.Run("value receiver", func(t *testing.T) {
		results, err := reg.Send(Point{X: 1, Y: 2}, "Add", Point{X: 3, Y: 4})
		require.NoError(t, err)
		require.Equal(t, aspect.Results{Point{X: 4, Y: 6}}, results)

		t.Run("hooks observe the value", func(t *testing.T) {
			reg := aspect.NewRegistry()
			var instances []interface{}
			_, err := reg.HookClass(Point{}, "Add", aspect.Before, func(inv *aspect.Invocation) {
				instances = append(instances, inv.Instance())
			})
			require.NoError(t, err)

			_, err = reg.Send(Point{X: 1, Y: 2}, "Add", Point{X: 3, Y: 4})
			require.NoError(t, err)
			var add func(Point, Point) Point
			require.NoError(t, aspect.MakeFunc(reg, "Add", &add))
			add(Point{X: 5, Y: 6}, Point{})

			require.Equal(t, []interface{}{Point{X: 1, Y: 2}, Point{X: 5, Y: 6}}, instances)
		})
	})

	t.Run("typed nil receiver", func(t *testing.T) {
		results, err := reg.Send((*Cat)(nil), "Run")
		require.NoError(t, err)
		require.Equal(t, aspect.Results{"cat"}, results)
	})

	for _, tc := range []struct {
		Name     string
		Receiver interface{}
		Selector aspect.Selector
		Args     []interface{}
		Expected error
	}{
		{Name: "nil receiver", Receiver: nil, Selector: "Logout", Expected: aspect.InvalidArgumentsError},
		{Name: "unknown selector", Receiver: &User{}, Selector: "Fly", Expected: aspect.UnresolvableMethodError},
		{Name: "missing arguments", Receiver: &User{}, Selector: "Buy", Args: []interface{}{"MacBook"}, Expected: aspect.InvalidArgumentsError},
		{Name: "too many arguments", Receiver: &User{}, Selector: "Logout", Args: []interface{}{1}, Expected: aspect.InvalidArgumentsError},
		{Name: "inexact argument", Receiver: &User{}, Selector: "Buy", Args: []interface{}{"MacBook", 10000, 1.5}, Expected: aspect.InvalidArgumentsError},
		{Name: "wrong argument type", Receiver: &User{}, Selector: "Login", Args: []interface{}{LoginTypeEmail, "yes"}, Expected: aspect.InvalidArgumentsError},
	} {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			results, err := reg.Send(tc.Receiver, tc.Selector, tc.Args...)
			require.Error(t, err)
			require.True(t, xerrors.Is(err, tc.Expected), "%+v", err)
			require.Nil(t, results)
		})
	}
}

func TestInvocation(t *testing.T) {
	reg := aspect.NewRegistry()
	user := &User{}

	_, err := reg.HookInstance(user, "Checkout", aspect.Before, func(inv *aspect.Invocation) error {
		require.Same(t, user, inv.Instance())
		require.Equal(t, aspect.MustClassOf(user), inv.Class())
		require.Equal(t, aspect.Selector("Checkout"), inv.Selector())
		require.Equal(t, 1, inv.NumArgs())
		require.Equal(t, []string{"a"}, inv.Arg(0))
		require.Nil(t, inv.Arg(1))
		require.False(t, inv.ArgValue(-1).IsValid())
		require.Equal(t, 2, inv.NumResults())
		require.Equal(t, aspect.Results{0, nil}, inv.Results())
		require.False(t, inv.OriginalCalled())

		require.True(t, xerrors.Is(inv.SetArg(1, "b"), aspect.InvalidArgumentsError))
		require.True(t, xerrors.Is(inv.SetArg(0, 33), aspect.InvalidArgumentsError))
		// Variadic arguments are a single slice argument
		return inv.SetArg(0, []string{"a", "b", "c"})
	})
	require.NoError(t, err)

	_, err = reg.HookInstance(user, "Checkout", aspect.After, func(inv *aspect.Invocation) error {
		require.True(t, inv.OriginalCalled())
		require.Equal(t, []interface{}{[]string{"a", "b", "c"}}, inv.Arguments())
		require.Equal(t, 3, inv.Result(0))
		require.Nil(t, inv.Result(1))
		require.Nil(t, inv.Result(2))

		// Results are left unchanged on error
		require.True(t, xerrors.Is(inv.SetResults(1), aspect.InvalidArgumentsError))
		require.True(t, xerrors.Is(inv.SetResults("one", nil), aspect.InvalidArgumentsError))
		require.True(t, xerrors.Is(inv.SetResult(2, nil), aspect.InvalidArgumentsError))
		require.Equal(t, aspect.Results{3, nil}, inv.Results())

		return inv.SetResult(1, errEmptyCart)
	})
	require.NoError(t, err)

	results, err := reg.Send(user, "Checkout", "a")
	require.NoError(t, err)
	require.Equal(t, aspect.Results{3, errEmptyCart}, results)
}

func TestMakeFunc(t *testing.T) {
	t.Run("hooked calls", func(t *testing.T) {
		reg := aspect.NewRegistry()
		var buy func(*User, string, float64, int)
		require.NoError(t, aspect.MakeFunc(reg, "Buy", &buy))

		_, err := reg.HookClass((*User)(nil), "Buy", aspect.Before, func(inv *aspect.Invocation) error {
			return inv.SetArg(2, inv.Arg(2).(int)*2)
		})
		require.NoError(t, err)

		user := &User{}
		buy(user, "iPhone", 999.99, 2)
		require.Equal(t, "iPhone", *user.ProductName)
		require.Equal(t, 999.99, user.Price)
		require.Equal(t, 4, user.Count)
	})

	t.Run("hook errors are returned through the error result", func(t *testing.T) {
		reg := aspect.NewRegistry()
		var checkout func(*User, ...string) (int, error)
		aspect.MustMakeFunc(reg, "Checkout", &checkout)

		n, err := checkout(&User{}, "a", "b")
		require.NoError(t, err)
		require.Equal(t, 2, n)

		errHook := xerrors.New("denied")
		_, err = reg.HookClass((*User)(nil), "Checkout", aspect.Before, func(*aspect.Invocation) error {
			return errHook
		})
		require.NoError(t, err)
		n, err = checkout(&User{}, "a", "b")
		require.Equal(t, errHook, err)
		require.Equal(t, 0, n)
	})

	t.Run("hook errors panic without error result", func(t *testing.T) {
		reg := aspect.NewRegistry()
		var total func(*User) float64
		require.NoError(t, aspect.MakeFunc(reg, "Total", &total))
		errHook := xerrors.New("denied")
		_, err := reg.HookClass((*User)(nil), "Total", aspect.Instead, func(*aspect.Invocation) error {
			return errHook
		})
		require.NoError(t, err)
		require.PanicsWithValue(t, errHook, func() { total(&User{}) })
	})

	t.Run("instance hooks", func(t *testing.T) {
		reg := aspect.NewRegistry()
		var logout func(*User)
		require.NoError(t, aspect.MakeFunc(reg, "Logout", &logout))

		userA, userB := &User{}, &User{}
		var count int
		_, err := reg.HookInstance(userA, "Logout", aspect.Instead, func(*aspect.Invocation) { count++ })
		require.NoError(t, err)
		logout(userA)
		logout(userB)
		require.Equal(t, 1, count)
		require.Equal(t, 0, userA.logouts)
		require.Equal(t, 1, userB.logouts)
	})

	t.Run("documented usage", func(t *testing.T) {
		reg := aspect.NewRegistry()
		var buy func(*Shopper, string, int) error
		require.NoError(t, aspect.MakeFunc(reg, "Buy", &buy))
		_, err := reg.HookClass((*Shopper)(nil), "Buy", aspect.Before, func(*aspect.Invocation) {})
		require.NoError(t, err)

		shopper := &Shopper{}
		require.NoError(t, buy(shopper, "MacBook", 1))
		require.Equal(t, []string{"MacBook"}, shopper.basket)
		require.Equal(t, errEmptyCart, buy(shopper, "iPad", 0))
	})

	t.Run("value receiver", func(t *testing.T) {
		reg := aspect.NewRegistry()
		var add func(Point, Point) Point
		require.NoError(t, aspect.MakeFunc(reg, "Add", &add))
		_, err := reg.HookClass(Point{}, "Add", aspect.After, func(inv *aspect.Invocation) error {
			p := inv.Result(0).(Point)
			return inv.SetResult(0, Point{X: p.X * 10, Y: p.Y * 10})
		})
		require.NoError(t, err)
		require.Equal(t, Point{X: 40, Y: 60}, add(Point{X: 1, Y: 2}, Point{X: 3, Y: 4}))
	})

	for _, tc := range []struct {
		Name     string
		Selector aspect.Selector
		FnPtr    func() interface{}
		Expected error
	}{
		{
			Name:     "not a pointer",
			Selector: "Logout",
			FnPtr:    func() interface{} { return func(*User) {} },
			Expected: aspect.InvalidFuncError,
		},
		{
			Name:     "nil",
			Selector: "Logout",
			FnPtr:    func() interface{} { return nil },
			Expected: aspect.InvalidFuncError,
		},
		{
			Name:     "not a function pointer",
			Selector: "Logout",
			FnPtr:    func() interface{} { var n int; return &n },
			Expected: aspect.InvalidFuncError,
		},
		{
			Name:     "no receiver",
			Selector: "Logout",
			FnPtr:    func() interface{} { var fn func(); return &fn },
			Expected: aspect.InvalidFuncError,
		},
		{
			Name:     "value receiver of pointer method",
			Selector: "Logout",
			FnPtr:    func() interface{} { var fn func(User); return &fn },
			Expected: aspect.InvalidFuncError,
		},
		{
			Name:     "signature mismatch",
			Selector: "Buy",
			FnPtr:    func() interface{} { var fn func(*User, string, int, int); return &fn },
			Expected: aspect.InvalidFuncError,
		},
		{
			Name:     "missing result",
			Selector: "Total",
			FnPtr:    func() interface{} { var fn func(*User); return &fn },
			Expected: aspect.InvalidFuncError,
		},
		{
			Name:     "unknown method",
			Selector: "Fly",
			FnPtr:    func() interface{} { var fn func(*User); return &fn },
			Expected: aspect.UnresolvableMethodError,
		},
		{
			Name:     "interface receiver",
			Selector: "Error",
			FnPtr:    func() interface{} { var fn func(error) string; return &fn },
			Expected: aspect.NotHookableError,
		},
	} {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			err := aspect.MakeFunc(aspect.NewRegistry(), tc.Selector, tc.FnPtr())
			require.Error(t, err)
			require.True(t, xerrors.Is(err, tc.Expected), "%+v", err)
		})
	}

	t.Run("nil registry", func(t *testing.T) {
		var logout func(*User)
		require.True(t, xerrors.Is(aspect.MakeFunc(nil, "Logout", &logout), aspect.InvalidFuncError))
		require.Nil(t, logout)
		require.Panics(t, func() { aspect.MustMakeFunc(nil, "Logout", &logout) })
	})
}
