// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Object makes the instances of the types embedding it hookable individually
// with `Registry.HookInstance()`. The zero value is ready to use. It owns the
// instance-level hooks, which are therefore freed along with the instance.
// An Object must be embedded by value and must not be copied after its first
// hook. Types reaching it through an embedded pointer, possibly nil or shared
// with other instances, only have type-level hooks.
//
//	type User struct {
//		aspect.Object
//		Name string
//	}
type Object struct {
	state atomic.Pointer[objectState]
}

// objectFields caches the offset of the Object owned by the struct types,
// found with objectOffsetOf().
var objectFields sync.Map

type objectField struct {
	offset uintptr
	owned  bool
}

// ownObject returns the Object owned by the instance, nil when none. The
// instance must be a non-nil pointer to a struct embedding an Object by value,
// directly or through other value-embedded structs. An Object reached through
// an embedded pointer can be shared with other instances and is not owned.
func ownObject(instance interface{}) *Object {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil
	}
	offset, owned := objectOffsetOf(v.Type().Elem())
	if !owned {
		return nil
	}
	return (*Object)(unsafe.Add(v.UnsafePointer(), offset))
}

func objectOffsetOf(t reflect.Type) (offset uintptr, owned bool) {
	if f, ok := objectFields.Load(t); ok {
		f := f.(objectField)
		return f.offset, f.owned
	}
	offset, owned = findObjectField(t)
	objectFields.Store(t, objectField{offset: offset, owned: owned})
	return offset, owned
}

// findObjectField walks the value-embedded fields breadth first, as the
// selector promotion rules do, and returns the offset of the shallowest
// Object.
func findObjectField(t reflect.Type) (uintptr, bool) {
	if t == objectType {
		return 0, true
	}
	type node struct {
		typ    reflect.Type
		offset uintptr
	}
	level := []node{{typ: t}}
	for len(level) > 0 {
		var next []node
		for _, n := range level {
			if n.typ.Kind() != reflect.Struct {
				continue
			}
			for i := 0; i < n.typ.NumField(); i++ {
				f := n.typ.Field(i)
				if !f.Anonymous {
					continue
				}
				offset := n.offset + f.Offset
				if f.Type == objectType {
					return offset, true
				}
				// Embedded pointers are skipped
				if f.Type.Kind() == reflect.Struct {
					next = append(next, node{typ: f.Type, offset: offset})
				}
			}
		}
		level = next
	}
	return 0, false
}

func (o *Object) loadState() *objectState {
	return o.state.Load()
}

func (o *Object) getOrCreateState() *objectState {
	if s := o.state.Load(); s != nil {
		return s
	}
	s := new(objectState)
	if o.state.CompareAndSwap(nil, s) {
		return s
	}
	return o.state.Load()
}

// objectState is the heap-allocated state of an Object. Registries only keep
// weak references to it so that its lifetime is bound to the instance.
type objectState struct {
	// Map of *site by siteKey
	sites sync.Map
}

// Instance sites are indexed per registry so that several registries can hook
// the same instance independently.
type siteKey struct {
	registry *Registry
	selector Selector
}

func (s *objectState) site(r *Registry, sel Selector) *site {
	v, ok := s.sites.Load(siteKey{registry: r, selector: sel})
	if !ok {
		return nil
	}
	return v.(*site)
}

func (s *objectState) setSite(r *Registry, sel Selector, site *site) {
	s.sites.Store(siteKey{registry: r, selector: sel}, site)
}

func (s *objectState) deleteSite(r *Registry, sel Selector) {
	s.sites.Delete(siteKey{registry: r, selector: sel})
}

func (s *objectState) registrySites(r *Registry) (sites []*site) {
	s.sites.Range(func(k, v interface{}) bool {
		if k.(siteKey).registry == r {
			sites = append(sites, v.(*site))
		}
		return true
	})
	return sites
}

func (s *objectState) deleteRegistrySites(r *Registry) {
	s.sites.Range(func(k, _ interface{}) bool {
		if k.(siteKey).registry == r {
			s.sites.Delete(k)
		}
		return true
	})
}
