// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

// Package rule implements the engine managing declarative aspects, called
// rules, attaching JavaScript callbacks to class methods.
//
// Main requirements:
// - Rules can be globally enabled or disabled, independently from setting
//   the list of rules.
// - Rule hookpoints can be undefined, ie. the pack can have more rules than
//   the classes of the program, and are then ignored.
// - Errors regarding hookpoints, conditions or callbacks are logged and
//   never stop a hooked method call, unless a callback explicitly aborts it.
// - Setting new rules when already enabled should not introduce a time
//   when the methods of both the previous and new rules are not hooked: new
//   hooks are attached before removing the previous ones.
package rule

import (
	"os"
	"sync"

	"github.com/sqreen/go-aspect/aspect"
	"github.com/sqreen/go-aspect/internal/config"
	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
	"golang.org/x/xerrors"
)

// Logger interface required by this package. The registry logger implements
// it.
type Logger interface {
	Debugf(format string, v ...interface{})
	Error(err error)
}

type Engine struct {
	registry *aspect.Registry
	logger   Logger

	mu          sync.Mutex
	packID      string
	enabled     bool
	descriptors []*descriptor
	// Tokens of the hooks of the enabled descriptors.
	tokens map[*descriptor]aspect.Token
}

// NewEngine returns a new rule engine hooking the registry. The registry
// logger is used when `logger` is nil.
func NewEngine(registry *aspect.Registry, logger Logger) *Engine {
	if logger == nil {
		logger = registry.Logger()
	}
	return &Engine{
		registry: registry,
		logger:   logger,
		tokens:   make(map[*descriptor]aspect.Token),
	}
}

// NewEngineFromEnv returns a new enabled rule engine having the rules of the
// file configured by `SQREEN_ASPECT_RULES` or the configuration file.
func NewEngineFromEnv(registry *aspect.Registry) (*Engine, error) {
	cfg, err := config.NewFromEnv(os.Stderr)
	if err != nil {
		return nil, sqerrors.Wrap(err, "configuration")
	}
	e := NewEngine(registry, nil)
	if path := cfg.RulesFile(); path != "" {
		pack, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		e.SetRules(pack.ID, pack.Rules)
	}
	e.Enable()
	return e, nil
}

// PackID returns the ID of the current pack of rules.
func (e *Engine) PackID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.packID
}

// Count returns the number of correctly compiled rules.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.descriptors)
}

// Enabled returns true when the rules are enabled.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetRules sets the current rules. If rules were already set and enabled, the
// hooks of the new rules are attached before removing the previous ones.
func (e *Engine) SetRules(packID string, rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var descriptors []*descriptor
	if len(rules) > 0 {
		e.logger.Debugf("rules: loading rules from pack `%s`", packID)
		descriptors = e.newDescriptors(rules)
	}

	previous := e.tokens
	e.tokens = make(map[*descriptor]aspect.Token, len(descriptors))
	if e.enabled {
		for _, d := range descriptors {
			token, err := e.hook(d)
			if xerrors.Is(err, aspect.DuplicateInsteadError) {
				// Instead hooks cannot overlap: release the previous ones first
				e.unhookInstead(previous, d)
				token, err = e.hook(d)
			}
			if err != nil {
				e.logger.Error(sqerrors.Wrapf(err, "rules: rule `%s`: could not attach the callback", d.name))
				continue
			}
			e.tokens[d] = token
		}
	}

	for d, token := range previous {
		e.logger.Debugf("rules: removing no longer needed rule `%s`", d.name)
		e.registry.Unhook(token)
	}

	e.packID = packID
	e.descriptors = descriptors
}

func (e *Engine) unhookInstead(tokens map[*descriptor]aspect.Token, d *descriptor) {
	for prev, token := range tokens {
		if prev.position == aspect.Instead && prev.class == d.class && prev.selector == d.selector {
			e.registry.Unhook(token)
			delete(tokens, prev)
		}
	}
}

func (e *Engine) hook(d *descriptor) (aspect.Token, error) {
	return e.registry.HookClass(d.class, d.selector, d.position, aspect.Func(d.callback))
}

// newDescriptors compiles the list of rules. Rules with errors are logged and
// skipped.
func (e *Engine) newDescriptors(rules []Rule) []*descriptor {
	descriptors := make([]*descriptor, 0, len(rules))
	for _, r := range rules {
		if r.Disabled {
			e.logger.Debugf("rules: rule `%s`: disabled", r.Name)
			continue
		}
		hookpoint := r.Hookpoint
		class, exists := aspect.LookupClass(hookpoint.Class)
		if !exists {
			e.logger.Debugf("rules: rule `%s`: could not find class `%s`", r.Name, hookpoint.Class)
			continue
		}
		if !class.RespondsTo(hookpoint.Method) {
			e.logger.Error(sqerrors.Errorf("rules: rule `%s`: class `%s` has no method `%s`", r.Name, hookpoint.Class, hookpoint.Method))
			continue
		}
		pos, err := aspect.ParsePosition(hookpoint.Position)
		if err != nil {
			e.logger.Error(sqerrors.Wrapf(err, "rules: rule `%s`", r.Name))
			continue
		}
		condition, err := compileCondition(r.Condition)
		if err != nil {
			e.logger.Error(sqerrors.Wrapf(err, "rules: rule `%s`", r.Name))
			continue
		}
		js, err := newJSCallback(r.Name, r.Callback)
		if err != nil {
			e.logger.Error(sqerrors.Wrapf(err, "rules: rule `%s`", r.Name))
			continue
		}
		e.logger.Debugf("rules: rule `%s`: successfully compiled for `%s.%s`", r.Name, hookpoint.Class, hookpoint.Method)
		descriptors = append(descriptors, &descriptor{
			name:      r.Name,
			class:     class,
			selector:  hookpoint.Method,
			position:  pos,
			condition: condition,
			js:        js,
			logger:    e.logger,
		})
	}
	if len(descriptors) == 0 {
		return nil
	}
	return descriptors
}

// Enable attaches the hooks of the current rules.
func (e *Engine) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled {
		return
	}
	for _, d := range e.descriptors {
		token, err := e.hook(d)
		if err != nil {
			e.logger.Error(sqerrors.Wrapf(err, "rules: rule `%s`: could not attach the callback", d.name))
			continue
		}
		e.tokens[d] = token
	}
	e.enabled = true
	e.logger.Debugf("rules: %d rules enabled", len(e.tokens))
}

// Disable removes the hooks of the current rules.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for d, token := range e.tokens {
		e.registry.Unhook(token)
		delete(e.tokens, d)
	}
	e.enabled = false
	e.logger.Debugf("rules: %d rules disabled", len(e.descriptors))
}
