// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

// Package aspect allows to attach at run time (ie. hook) callbacks before,
// after or instead of the methods of a type or of a single instance, without
// modifying the methods. Go has no mutable method tables, so interception
// happens at call sites opting into it:
//
// - Dynamic message sending through `Registry.Send()`:
//		results, err := reg.Send(user, "Logout")
//
// - Typed trampolines created with `MakeFunc()` and stored into function
//   variables having the method signature, the first parameter being the
//   receiver:
//		// func (u *User) Buy(product string, count int) error
//		var buy func(*User, string, int) error
//		_ = aspect.MakeFunc(reg, "Buy", &buy)
//		err := buy(user, "MacBook", 1)
//
// Hooks are registered into an explicit `Registry`:
//
// - Type-level hooks apply to every present and future instance of a type
//   and of the types embedding it ("subclasses"):
//		token, err := reg.HookClass((*User)(nil), "Logout", aspect.After, cb)
//
// - Instance-level hooks apply to a single instance whose type embeds
//   `aspect.Object`, and take precedence over type-level hooks:
//		token, err := reg.HookInstance(user, "Logout", aspect.After, cb)
//
// Given a hooked call, before hooks run in registration order with the call
// invocation, then the instead hook when any, or the original method
// otherwise, then the after hooks in registration order. A callback error
// stops the call and is returned to the caller as is.
//
// Main requirements
//
// - Concurrent hooking, unhooking and calls: the call path reads immutable
//   snapshots updated atomically.
// - Read/write access to the argument and result values of the call.
// - Precise and synchronous registration errors.
// - Instance-level hooks are freed along with the instance.
//
package aspect
