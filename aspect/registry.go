// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"
	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/modern-go/reflect2"
	"github.com/sqreen/go-aspect/internal/plog"
	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
	"github.com/sqreen/go-aspect/internal/sqlib/squnsafe"
)

// Logger is the interface of the registry logger.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Error(err error)
}

// Registry is a set of hooks. Registries are independent from each other and
// safe for concurrent use: hooks can be added and removed while hooked
// methods are being called, calls using the hooks of the snapshot taken when
// they started.
type Registry struct {
	logger   Logger
	policy   InsteadPolicy
	disabled atomic.Bool

	// Lock serializing the modifications of the registry.
	mu sync.Mutex
	// Immutable radix tree of class-level *site values, indexed by class name
	// and selector. Readers load the current tree without locking.
	classSites atomic.Value
	// Map of hook records by token.
	records map[Token]*hookRecord
	// Map of the tokens of instance-level hooks by weak reference of
	// instance state.
	instances map[weak.Pointer[objectState]]map[Token]struct{}
}

type hookRecord struct {
	token    Token
	position Position
	selector Selector
	class    *Class
	// Instance-level records only keep a weak reference to the instance
	// state, which owns the site and the callbacks.
	instance bool
	object   weak.Pointer[objectState]
}

// Option is a registry option.
type Option func(*Registry)

// WithLogger sets the registry logger. The default logger discards
// everything.
func WithLogger(logger Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithInsteadPolicy sets the policy applied when several instead hooks are
// attached to the same method. The default policy is
// `RejectDuplicateInstead`.
func WithInsteadPolicy(policy InsteadPolicy) Option {
	return func(r *Registry) {
		r.policy = policy
	}
}

// NewRegistry returns a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:    plog.Discard(),
		records:   make(map[Token]*hookRecord),
		instances: make(map[weak.Pointer[objectState]]map[Token]struct{}),
	}
	r.classSites.Store(iradix.New())
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Logger returns the registry logger.
func (r *Registry) Logger() Logger { return r.logger }

// InsteadPolicy returns the registry instead policy.
func (r *Registry) InsteadPolicy() InsteadPolicy { return r.policy }

// SetEnabled globally enables or disables the registry hooks. Calls are
// dispatched directly to the original methods while disabled, and hooks can
// still be added and removed.
func (r *Registry) SetEnabled(enabled bool) {
	r.disabled.Store(!enabled)
}

// Enabled returns true when the registry hooks are enabled, which is the
// default.
func (r *Registry) Enabled() bool {
	return !r.disabled.Load()
}

func (r *Registry) loadClassSites() *iradix.Tree {
	return r.classSites.Load().(*iradix.Tree)
}

func classSiteKey(class string, sel Selector) []byte {
	return squnsafe.StringToBytes(class + "\x00" + string(sel))
}

func newToken() Token {
	return Token(uuid.New().String())
}

// HookClass attaches a callback at the given position of the method `sel`
// of every present and future instance of the class and of its subclasses.
// `class` is a `*Class`, a `reflect.Type` or a value of the type, such as
// `(*User)(nil)`. It returns the token identifying the hook, to be used by
// `Unhook()`. Nothing is modified on error.
func (r *Registry) HookClass(class interface{}, sel Selector, pos Position, cb Callback) (token Token, err error) {
	defer func() {
		if err != nil {
			err = sqerrors.Wrapf(err, "hook %s method `%s`", pos, sel)
		}
	}()

	c, err := ClassOf(class)
	if err != nil {
		return "", err
	}
	callback, err := validateHook(c, sel, pos, cb)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tree := r.loadClassSites()
	key := classSiteKey(c.name, sel)
	var s *site
	if v, exists := tree.Get(key); exists {
		s = v.(*site)
	}
	installed := s == nil
	if installed {
		s = newSite(c.name, sel, false)
	}
	if err := r.checkInstead(s.load(), pos); err != nil {
		return "", err
	}

	h := &hook{token: newToken(), position: pos, callback: callback}
	s.hooks.Store(s.load().with(h, r.policy))
	if installed {
		tree, _, _ = tree.Insert(key, s)
		r.classSites.Store(tree)
		r.logger.Debugf("aspect: interception site installed for %s.%s", c.name, sel)
	}
	r.records[h.token] = &hookRecord{
		token:    h.token,
		position: pos,
		selector: sel,
		class:    c,
	}
	return h.token, nil
}

// HookInstance attaches a callback at the given position of the method `sel`
// of instance `obj` only. `obj` must be a non-nil pointer to a value
// embedding `Object`. Instance-level hooks take precedence over class-level
// hooks and are removed when the instance is garbage collected.
func (r *Registry) HookInstance(obj interface{}, sel Selector, pos Position, cb Callback) (token Token, err error) {
	defer func() {
		if err != nil {
			err = sqerrors.Wrapf(err, "hook instance %s method `%s`", pos, sel)
		}
	}()

	o, err := objectOf(obj)
	if err != nil {
		return "", err
	}
	c, err := ClassOf(obj)
	if err != nil {
		return "", err
	}
	callback, err := validateHook(c, sel, pos, cb)
	if err != nil {
		return "", err
	}

	state := o.getOrCreateState()
	ref := weak.Make(state)

	r.mu.Lock()
	defer r.mu.Unlock()

	s := state.site(r, sel)
	installed := s == nil
	if installed {
		s = newSite(fmt.Sprintf("%s(%p)", c.name, obj), sel, true)
	}
	if err := r.checkInstead(s.load(), pos); err != nil {
		return "", err
	}

	h := &hook{token: newToken(), position: pos, callback: callback}
	s.hooks.Store(s.load().with(h, r.policy))
	if installed {
		state.setSite(r, sel, s)
		r.logger.Debugf("aspect: interception site installed for %s.%s", s.target, sel)
	}

	tokens, exists := r.instances[ref]
	if !exists {
		tokens = make(map[Token]struct{})
		r.instances[ref] = tokens
		runtime.AddCleanup(state, r.purgeInstance, ref)
	}
	tokens[h.token] = struct{}{}
	r.records[h.token] = &hookRecord{
		token:    h.token,
		position: pos,
		selector: sel,
		class:    c,
		instance: true,
		object:   ref,
	}
	return h.token, nil
}

func objectOf(obj interface{}) (*Object, error) {
	if reflect2.IsNil(obj) {
		return nil, sqerrors.Wrap(NotHookableError, "nil instance")
	}
	o := ownObject(obj)
	if o == nil {
		return nil, sqerrors.Wrapf(NotHookableError, "type `%T` is not a pointer to a struct embedding aspect.Object by value", obj)
	}
	return o, nil
}

func validateHook(c *Class, sel Selector, pos Position, cb Callback) (SelectorFunc, error) {
	if !pos.valid() {
		return nil, sqerrors.Wrapf(InvalidPositionError, "position `%d`", int(pos))
	}
	if !c.RespondsTo(sel) {
		return nil, sqerrors.Wrapf(UnresolvableMethodError, "class `%s` has no method `%s`", c.name, sel)
	}
	return normalizeCallback(cb)
}

func (r *Registry) checkInstead(set *hookSet, pos Position) error {
	if pos == Instead && r.policy == RejectDuplicateInstead && len(set.instead) > 0 {
		return sqerrors.Wrap(DuplicateInsteadError, "the method already has an instead hook")
	}
	return nil
}

// Unhook removes the hook identified by the token. It returns false when the
// token is unknown, such as an already removed hook.
func (r *Registry) Unhook(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[token]
	if !exists {
		return false
	}
	delete(r.records, token)

	if rec.instance {
		if tokens := r.instances[rec.object]; tokens != nil {
			delete(tokens, token)
		}
		state := rec.object.Value()
		if state == nil {
			// Garbage collected instance whose cleanup didn't run yet
			return true
		}
		r.removeHook(state.site(r, rec.selector), token, func() {
			state.deleteSite(r, rec.selector)
		})
		return true
	}

	tree := r.loadClassSites()
	key := classSiteKey(rec.class.name, rec.selector)
	v, exists := tree.Get(key)
	if !exists {
		return true
	}
	r.removeHook(v.(*site), token, func() {
		tree, _, _ = tree.Delete(key)
		r.classSites.Store(tree)
	})
	return true
}

// removeHook removes the hook from the site and calls `remove` when the site
// no longer has hooks.
func (r *Registry) removeHook(s *site, token Token, remove func()) {
	if s == nil {
		return
	}
	set, removed := s.load().without(token, r.policy)
	if !removed {
		return
	}
	s.hooks.Store(set)
	if set.len() == 0 {
		remove()
		r.logger.Debugf("aspect: interception site removed for %s.%s", s.target, s.selector)
	}
}

// UnhookClass removes every class-level hook of the method `sel` of the
// class, and returns the number of removed hooks. The hooks of the
// superclasses and subclasses are left untouched.
func (r *Registry) UnhookClass(class interface{}, sel Selector) int {
	c, err := ClassOf(class)
	if err != nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tree := r.loadClassSites()
	key := classSiteKey(c.name, sel)
	v, exists := tree.Get(key)
	if !exists {
		return 0
	}
	s := v.(*site)
	tokens := s.load().tokens()
	for _, token := range tokens {
		delete(r.records, token)
	}
	s.hooks.Store(&hookSet{})
	tree, _, _ = tree.Delete(key)
	r.classSites.Store(tree)
	r.logger.Debugf("aspect: interception site removed for %s.%s", s.target, sel)
	return len(tokens)
}

// UnhookInstance removes every instance-level hook of the method `sel` of
// the instance, and returns the number of removed hooks.
func (r *Registry) UnhookInstance(obj interface{}, sel Selector) int {
	o, err := objectOf(obj)
	if err != nil {
		return 0
	}
	state := o.loadState()
	if state == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := state.site(r, sel)
	if s == nil {
		return 0
	}
	tokens := s.load().tokens()
	instanceTokens := r.instances[weak.Make(state)]
	for _, token := range tokens {
		delete(r.records, token)
		delete(instanceTokens, token)
	}
	s.hooks.Store(&hookSet{})
	state.deleteSite(r, sel)
	r.logger.Debugf("aspect: interception site removed for %s.%s", s.target, sel)
	return len(tokens)
}

// UnhookAll removes every hook of the registry and returns the number of
// removed hooks.
func (r *Registry) UnhookAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.records)
	for ref := range r.instances {
		state := ref.Value()
		if state == nil {
			continue
		}
		for _, s := range state.registrySites(r) {
			s.hooks.Store(&hookSet{})
		}
		state.deleteRegistrySites(r)
	}
	r.loadClassSites().Root().Walk(func(_ []byte, v interface{}) bool {
		v.(*site).hooks.Store(&hookSet{})
		return false
	})
	r.classSites.Store(iradix.New())
	r.records = make(map[Token]*hookRecord)
	r.instances = make(map[weak.Pointer[objectState]]map[Token]struct{})
	if n > 0 {
		r.logger.Debugf("aspect: %d hooks removed", n)
	}
	return n
}

// purgeInstance removes the records of a garbage collected instance. It is
// called by the runtime cleanup of the instance state.
func (r *Registry) purgeInstance(ref weak.Pointer[objectState]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tokens, exists := r.instances[ref]
	if !exists {
		return
	}
	for token := range tokens {
		delete(r.records, token)
	}
	delete(r.instances, ref)
	if len(tokens) > 0 {
		r.logger.Debugf("aspect: %d hooks of a garbage collected instance removed", len(tokens))
	}
}

// Len returns the number of hooks of the registry.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Sites returns the list of interception sites of the registry, sorted by
// target and selector.
func (r *Registry) Sites() []SiteInfo {
	var infos []SiteInfo
	r.loadClassSites().Root().Walk(func(_ []byte, v interface{}) bool {
		infos = append(infos, v.(*site).info())
		return false
	})

	r.mu.Lock()
	for ref := range r.instances {
		state := ref.Value()
		if state == nil {
			continue
		}
		for _, s := range state.registrySites(r) {
			infos = append(infos, s.info())
		}
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Target != infos[j].Target {
			return infos[i].Target < infos[j].Target
		}
		return infos[i].Selector < infos[j].Selector
	})
	return infos
}

// HookedSelectors returns the sorted selectors of the class having
// class-level hooks. The hooks of superclasses are not included.
func (r *Registry) HookedSelectors(class interface{}) []Selector {
	c, err := ClassOf(class)
	if err != nil {
		return nil
	}
	var selectors []Selector
	prefix := squnsafe.StringToBytes(c.name + "\x00")
	r.loadClassSites().Root().WalkPrefix(prefix, func(_ []byte, v interface{}) bool {
		selectors = append(selectors, v.(*site).selector)
		return false
	})
	return selectors
}

// lookup returns the site of the method call, nil when none. The instance
// site comes first, then the first class site found in the class hierarchy.
func (r *Registry) lookup(receiver reflect.Value, class *Class, sel Selector) *site {
	if receiver.CanInterface() {
		instance := receiver.Interface()
		// Typed nil receivers only have class-level sites
		if !reflect2.IsNil(instance) {
			if o := ownObject(instance); o != nil {
				if state := o.loadState(); state != nil {
					if s := state.site(r, sel); s != nil {
						return s
					}
				}
			}
		}
	}

	tree := r.loadClassSites()
	if tree.Len() == 0 {
		return nil
	}
	for _, c := range class.Hierarchy() {
		if v, exists := tree.Get(classSiteKey(c.name, sel)); exists {
			return v.(*site)
		}
	}
	return nil
}
