// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"strings"

	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
)

// Position tells when a hook runs relatively to the original method.
type Position int

const (
	_ Position = iota
	// Before the original method.
	Before
	// Instead of the original method, which is then never called.
	Instead
	// After the original method or the instead hook.
	After
)

// Positions lists the valid positions in execution order.
var Positions = []Position{Before, Instead, After}

func (p Position) String() string {
	switch p {
	case Before:
		return "before"
	case Instead:
		return "instead"
	case After:
		return "after"
	default:
		return "unknown"
	}
}

func (p Position) valid() bool {
	return p >= Before && p <= After
}

// ParsePosition returns the position of the given case-insensitive name.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "before":
		return Before, nil
	case "instead":
		return Instead, nil
	case "after":
		return After, nil
	default:
		return 0, sqerrors.Wrapf(InvalidPositionError, "position `%s`", s)
	}
}

// InsteadPolicy is the policy applied when an instead hook is attached to a
// method already having one.
type InsteadPolicy int

const (
	// RejectDuplicateInstead rejects the registration with a
	// `DuplicateInsteadError`.
	RejectDuplicateInstead InsteadPolicy = iota
	// LastInsteadWins keeps every instead hook and the last registered one is
	// the only one called.
	LastInsteadWins
	// FirstInsteadWins keeps every instead hook and the first registered one
	// is the only one called.
	FirstInsteadWins
)

func (p InsteadPolicy) String() string {
	switch p {
	case RejectDuplicateInstead:
		return "reject"
	case LastInsteadWins:
		return "last"
	case FirstInsteadWins:
		return "first"
	default:
		return "unknown"
	}
}

// ParseInsteadPolicy returns the instead policy of the given case-insensitive
// name, `reject`, `last` or `first`.
func ParseInsteadPolicy(s string) (InsteadPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reject", "":
		return RejectDuplicateInstead, nil
	case "last":
		return LastInsteadWins, nil
	case "first":
		return FirstInsteadWins, nil
	default:
		return 0, sqerrors.Errorf("unexpected instead policy `%s`", s)
	}
}
