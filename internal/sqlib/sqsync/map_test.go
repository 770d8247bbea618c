// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package sqsync_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sqreen/go-aspect/internal/sqlib/sqsync"
	"github.com/stretchr/testify/require"
)

func TestUInt64Map(t *testing.T) {
	var (
		m  sqsync.UInt64Map
		wg sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Add("a", 1)
				m.Add(j%2, 2)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, uint64(800), atomic.LoadUint64(m.Get("a")))
	require.Equal(t, uint64(800), atomic.LoadUint64(m.Get(0)))
	require.Equal(t, uint64(800), atomic.LoadUint64(m.Get(1)))
	require.Equal(t, uint64(0), atomic.LoadUint64(m.Get("unknown")))
}
