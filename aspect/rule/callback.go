// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package rule

import (
	"fmt"
	"sync"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/dop251/goja"
	"github.com/sqreen/go-aspect/aspect"
	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
	"github.com/sqreen/go-aspect/internal/sqlib/sqsafe"
)

// Call is the environment of rule conditions, such as
// `Selector == "Buy" && Args[1] > 1000`.
type Call struct {
	Class    string
	Selector string
	Position string
	Args     []interface{}
	Results  []interface{}
}

func newCall(inv *aspect.Invocation, pos aspect.Position) Call {
	return Call{
		Class:    inv.Class().Name(),
		Selector: string(inv.Selector()),
		Position: pos.String(),
		Args:     inv.Arguments(),
		Results:  inv.Results(),
	}
}

// jsValue returns the object given to the JavaScript callback. Map keys are
// used instead of the struct fields to get lower-case JS property names.
func (c Call) jsValue() map[string]interface{} {
	return map[string]interface{}{
		"class":    c.Class,
		"selector": c.Selector,
		"position": c.Position,
		"args":     c.Args,
		"results":  c.Results,
	}
}

// AbortError is the error returned to the caller of a method when a rule
// callback returns an object with an `error` property.
type AbortError struct {
	Rule    string
	Message string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("rule `%s`: %s", e.Rule, e.Message)
}

func compileCondition(condition string) (*vm.Program, error) {
	if condition == "" {
		return nil, nil
	}
	program, err := expr.Compile(condition, expr.Env(Call{}), expr.AsBool())
	if err != nil {
		return nil, sqerrors.Wrap(err, "condition compilation")
	}
	return program, nil
}

// jsCallback is a JavaScript function `callback(call)` executed by a pool of
// virtual machines, goja runtimes not being safe for concurrent use.
type jsCallback struct {
	pool sync.Pool
}

type jsVM struct {
	runtime *goja.Runtime
	fn      goja.Callable
}

func newJSCallback(name, src string) (*jsCallback, error) {
	if src == "" {
		return nil, sqerrors.New("missing javascript callback")
	}
	program, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, sqerrors.Wrap(err, "javascript compilation")
	}
	// Check the program at least once before pooling it
	first, err := newJSVM(program)
	if err != nil {
		return nil, err
	}
	c := &jsCallback{}
	c.pool.New = func() interface{} {
		jsvm, err := newJSVM(program)
		if err != nil {
			return nil
		}
		return jsvm
	}
	c.pool.Put(first)
	return c, nil
}

func newJSVM(program *goja.Program) (*jsVM, error) {
	runtime := goja.New()
	if _, err := runtime.RunProgram(program); err != nil {
		return nil, sqerrors.Wrap(err, "javascript program execution")
	}
	v := runtime.Get("callback")
	if v == nil || goja.IsUndefined(v) {
		return nil, sqerrors.New("the javascript program doesn't define function `callback`")
	}
	var fn goja.Callable
	if err := runtime.ExportTo(v, &fn); err != nil || fn == nil {
		return nil, sqerrors.New("javascript value `callback` is not a function")
	}
	return &jsVM{runtime: runtime, fn: fn}, nil
}

// call calls the JavaScript function and returns the exported object it
// returned, nil when it returned nothing.
func (c *jsCallback) call(arg map[string]interface{}) (map[string]interface{}, error) {
	jsvm, _ := c.pool.Get().(*jsVM)
	if jsvm == nil {
		return nil, sqerrors.New("could not create a javascript virtual machine")
	}
	defer c.pool.Put(jsvm)

	v, err := jsvm.fn(goja.Undefined(), jsvm.runtime.ToValue(arg))
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	result, ok := v.Export().(map[string]interface{})
	if !ok {
		return nil, sqerrors.Errorf("unexpected javascript return value `%v`: an object was expected", v)
	}
	return result, nil
}

// descriptor is a compiled rule.
type descriptor struct {
	name      string
	class     *aspect.Class
	selector  aspect.Selector
	position  aspect.Position
	condition *vm.Program
	js        *jsCallback
	logger    Logger
}

// callback is the hook callback of the rule. Rule errors are logged and the
// call goes on, unless the JS callback asks to abort it.
func (d *descriptor) callback(inv *aspect.Invocation) error {
	var abortErr error
	err := sqsafe.Call(func() error {
		call := newCall(inv, d.position)
		if d.condition != nil {
			v, err := expr.Run(d.condition, call)
			if err != nil {
				return sqerrors.Wrap(err, "condition evaluation")
			}
			if matched, _ := v.(bool); !matched {
				return nil
			}
		}
		result, err := d.js.call(call.jsValue())
		if err != nil {
			return sqerrors.Wrap(err, "javascript callback")
		}
		abortErr, err = d.apply(inv, result)
		return err
	})
	if err != nil {
		d.logger.Error(sqerrors.WithKey(sqerrors.Wrapf(err, "rules: rule `%s`", d.name), d.name))
	}
	return abortErr
}

// apply applies the object returned by the JavaScript callback:
// - `args`: the new list of arguments.
// - `results`: the new list of results.
// - `error`: the message of the AbortError to return.
func (d *descriptor) apply(inv *aspect.Invocation, result map[string]interface{}) (abortErr error, err error) {
	if result == nil {
		return nil, nil
	}
	if v, exists := result["args"]; exists && v != nil {
		args, ok := v.([]interface{})
		if !ok || len(args) != inv.NumArgs() {
			return nil, sqerrors.Errorf("unexpected `args` value `%v`: an array of %d values was expected", v, inv.NumArgs())
		}
		for i, arg := range args {
			if err := inv.SetArg(i, arg); err != nil {
				return nil, err
			}
		}
	}
	if v, exists := result["results"]; exists && v != nil {
		results, ok := v.([]interface{})
		if !ok {
			return nil, sqerrors.Errorf("unexpected `results` value `%v`: an array was expected", v)
		}
		if err := inv.SetResults(results...); err != nil {
			return nil, err
		}
	}
	if v, exists := result["error"]; exists && v != nil {
		return &AbortError{Rule: d.name, Message: fmt.Sprint(v)}, nil
	}
	return nil, nil
}
