// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"sync/atomic"

	"github.com/sqreen/go-aspect/internal/sqlib/sqatomic"
)

// Token identifies a hook registration. The zero value is never returned by
// a successful registration.
type Token string

type hook struct {
	token    Token
	position Position
	callback SelectorFunc
}

func (h *hook) call(inv *Invocation) error {
	return h.callback(inv, inv.selector)
}

// hookSet is an immutable snapshot of the hooks of a site. Every
// modification creates a new set.
type hookSet struct {
	before, instead, after []*hook
	// The instead hook called according to the instead policy, nil when none.
	effectiveInstead *hook
}

func (s *hookSet) len() int {
	return len(s.before) + len(s.instead) + len(s.after)
}

func (s *hookSet) tokens() []Token {
	tokens := make([]Token, 0, s.len())
	for _, list := range [][]*hook{s.before, s.instead, s.after} {
		for _, h := range list {
			tokens = append(tokens, h.token)
		}
	}
	return tokens
}

func (s *hookSet) with(h *hook, policy InsteadPolicy) *hookSet {
	set := &hookSet{
		before:  s.before,
		instead: s.instead,
		after:   s.after,
	}
	// Appending may share the backing array of the previous set, so the lists
	// are copied.
	switch h.position {
	case Before:
		set.before = appendHook(s.before, h)
	case Instead:
		set.instead = appendHook(s.instead, h)
	case After:
		set.after = appendHook(s.after, h)
	}
	set.setEffectiveInstead(policy)
	return set
}

func (s *hookSet) without(token Token, policy InsteadPolicy) (set *hookSet, removed bool) {
	set = &hookSet{}
	var r0, r1, r2 bool
	set.before, r0 = removeHook(s.before, token)
	set.instead, r1 = removeHook(s.instead, token)
	set.after, r2 = removeHook(s.after, token)
	set.setEffectiveInstead(policy)
	return set, r0 || r1 || r2
}

func (s *hookSet) setEffectiveInstead(policy InsteadPolicy) {
	if len(s.instead) == 0 {
		s.effectiveInstead = nil
		return
	}
	if policy == LastInsteadWins {
		s.effectiveInstead = s.instead[len(s.instead)-1]
	} else {
		s.effectiveInstead = s.instead[0]
	}
}

func appendHook(list []*hook, h *hook) []*hook {
	l := make([]*hook, len(list), len(list)+1)
	copy(l, list)
	return append(l, h)
}

func removeHook(list []*hook, token Token) ([]*hook, bool) {
	for i, h := range list {
		if h.token == token {
			l := make([]*hook, 0, len(list)-1)
			l = append(l, list[:i]...)
			return append(l, list[i+1:]...), true
		}
	}
	return list, false
}

// site is the interception site of a selector on a class or instance. Its
// hook set is atomically replaced so that calls read a consistent snapshot
// without locking.
type site struct {
	target   string
	selector Selector
	instance bool
	hooks    atomic.Pointer[hookSet]
	calls    sqatomic.Uint64
}

func newSite(target string, sel Selector, instance bool) *site {
	s := &site{
		target:   target,
		selector: sel,
		instance: instance,
	}
	s.hooks.Store(&hookSet{})
	return s
}

func (s *site) load() *hookSet {
	return s.hooks.Load()
}

// SiteInfo describes an interception site.
type SiteInfo struct {
	// Class name, or class name and address of the instance.
	Target   string
	Selector Selector
	Instance bool
	Before   int
	Instead  int
	After    int
	// Number of calls intercepted by the site.
	Calls uint64
}

func (s *site) info() SiteInfo {
	set := s.load()
	return SiteInfo{
		Target:   s.target,
		Selector: s.selector,
		Instance: s.instance,
		Before:   len(set.before),
		Instead:  len(set.instead),
		After:    len(set.after),
		Calls:    s.calls.Load(),
	}
}
