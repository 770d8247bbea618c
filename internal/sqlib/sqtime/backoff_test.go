// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package sqtime_test

import (
	"testing"

	"github.com/sqreen/go-aspect/internal/sqlib/sqtime"
	"github.com/stretchr/testify/require"
)

func TestBackoffCounter(t *testing.T) {
	var (
		counter sqtime.BackoffCounter
		calls   []uint64
	)
	for i := 0; i < 20; i++ {
		counter.Do(func(count uint64) {
			calls = append(calls, count)
		})
	}
	require.Equal(t, []uint64{1, 2, 4, 8, 16}, calls)
}
