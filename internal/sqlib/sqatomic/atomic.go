// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package sqatomic

import "sync/atomic"

// Uint64 is a wrapper type of a uint64 providing convenience methods of
// commonly used atomic operations. It is used by call counters updated on
// every intercepted call.
type Uint64 uint64

func (i *Uint64) unwrap() *uint64 { return (*uint64)(i) }

func (i *Uint64) Load() uint64 {
	return atomic.LoadUint64(i.unwrap())
}

func (i *Uint64) Increment() uint64 {
	return i.Add(1)
}

func (i *Uint64) Add(delta uint64) uint64 {
	return atomic.AddUint64(i.unwrap(), delta)
}
