// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

// Error values returned by the registry. They are wrapped with context and
// can be matched with `errors.Is()`.
type Error int

const (
	_ Error = iota
	// The selector is not in the method set of the class.
	UnresolvableMethodError
	// An instead hook is already attached to the method and the instead policy
	// rejects more.
	DuplicateInsteadError
	// The target cannot be hooked, such as a nil value or an instance whose
	// type doesn't embed `Object`.
	NotHookableError
	// The callback type is not supported.
	InvalidCallbackError
	// The hook position is unknown.
	InvalidPositionError
	// The values cannot be used as arguments or results of the method.
	InvalidArgumentsError
	// The function variable given to `MakeFunc()` doesn't match the method.
	InvalidFuncError
)

func (e Error) Error() string {
	switch e {
	case UnresolvableMethodError:
		return "unresolvable method"
	case DuplicateInsteadError:
		return "duplicate instead hook"
	case NotHookableError:
		return "not hookable"
	case InvalidCallbackError:
		return "invalid callback"
	case InvalidPositionError:
		return "invalid position"
	case InvalidArgumentsError:
		return "invalid arguments"
	case InvalidFuncError:
		return "invalid function"
	default:
		return "unknown"
	}
}

// Static assertion that `Error` implements interface `error`
var _ error = Error(0)
