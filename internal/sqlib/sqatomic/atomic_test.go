// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package sqatomic_test

import (
	"sync"
	"testing"

	"github.com/sqreen/go-aspect/internal/sqlib/sqatomic"
	"github.com/stretchr/testify/require"
)

func TestUint64(t *testing.T) {
	var (
		v  sqatomic.Uint64
		wg sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v.Increment()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, uint64(10000), v.Load())
	require.Equal(t, uint64(10005), v.Add(5))
}
