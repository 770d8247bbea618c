// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect

import (
	"reflect"
	"sort"
	"sync"

	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
	"github.com/sqreen/go-aspect/internal/sqlib/sqgo"
)

// Class describes a Go type whose methods can be hooked. The class of a type
// `T` and of `*T` is the same, and its method set is the method set of `*T`.
// The superclasses of a struct type are its embedded fields.
type Class struct {
	name string
	// Base type, never a pointer to a named type.
	typ reflect.Type
	// Type whose method set is the class method set.
	methodSetType reflect.Type

	supersOnce sync.Once
	supers     []*Class

	hierarchyOnce sync.Once
	hierarchy     []*Class
}

var (
	// Cache of classes by reflect.Type. Both T and *T are stored.
	classCache sync.Map
	// Table of classes by name.
	classTableLock sync.RWMutex
	classTable     = make(map[string]*Class)
)

var (
	objectType = reflect.TypeOf((*Object)(nil)).Elem()
	classType  = reflect.TypeOf((*Class)(nil)).Elem()
)

// ClassOf returns the class of `v` which can be a `*Class`, a `reflect.Type`
// or a value of the type such as `(*User)(nil)`.
func ClassOf(v interface{}) (*Class, error) {
	switch actual := v.(type) {
	case nil:
		return nil, sqerrors.Wrap(NotHookableError, "nil class value")
	case *Class:
		if actual == nil {
			return nil, sqerrors.Wrap(NotHookableError, "nil class value")
		}
		return actual, nil
	case reflect.Type:
		return classOfType(actual)
	default:
		return classOfType(reflect.TypeOf(v))
	}
}

func classOfType(t reflect.Type) (*Class, error) {
	if t == nil {
		return nil, sqerrors.Wrap(NotHookableError, "nil class type")
	}
	if c, ok := classCache.Load(t); ok {
		return c.(*Class), nil
	}

	base := t
	if t.Kind() == reflect.Ptr && t.Elem().Name() != "" && t.Elem().Kind() != reflect.Ptr {
		base = t.Elem()
	}
	if base == classType || base.Kind() == reflect.Interface {
		return nil, sqerrors.Wrapf(NotHookableError, "type `%s` cannot be a class", t)
	}
	var methodSetType reflect.Type
	if base.Kind() == reflect.Ptr {
		methodSetType = base
	} else {
		methodSetType = reflect.PtrTo(base)
	}

	c := &Class{
		name:          className(base),
		typ:           base,
		methodSetType: methodSetType,
	}

	// Concurrent creations share the first stored class
	actual, _ := classCache.LoadOrStore(base, c)
	c = actual.(*Class)
	classCache.LoadOrStore(methodSetType, c)
	classCache.LoadOrStore(t, c)
	registerClassName(c)
	return c, nil
}

func className(t reflect.Type) string {
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return sqgo.Unvendor(t.PkgPath()) + "." + t.Name()
}

func registerClassName(c *Class) {
	classTableLock.RLock()
	_, exists := classTable[c.name]
	classTableLock.RUnlock()
	if exists {
		return
	}
	classTableLock.Lock()
	defer classTableLock.Unlock()
	if _, exists := classTable[c.name]; !exists {
		classTable[c.name] = c
	}
}

// MustClassOf is like ClassOf but panics on error. It simplifies the
// initialization of package-level class variables.
func MustClassOf(v interface{}) *Class {
	c, err := ClassOf(v)
	if err != nil {
		panic(err)
	}
	return c
}

// RegisterClass adds the classes of the given sample values to the class
// table so that they can be found by name with `LookupClass()`. It is usually
// called from package init functions, such as the ones generated by
// aspectgen.
func RegisterClass(samples ...interface{}) ([]*Class, error) {
	classes := make([]*Class, 0, len(samples))
	for _, sample := range samples {
		c, err := ClassOf(sample)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, nil
}

// LookupClass returns the class registered with the given name, such as
// `github.com/my/app/model.User`.
func LookupClass(name string) (c *Class, exists bool) {
	classTableLock.RLock()
	defer classTableLock.RUnlock()
	c, exists = classTable[name]
	return
}

// Classes returns the sorted list of registered class names.
func Classes() []string {
	classTableLock.RLock()
	defer classTableLock.RUnlock()
	names := make([]string, 0, len(classTable))
	for name := range classTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the class name made of the package path and type name.
func (c *Class) Name() string { return c.name }

func (c *Class) String() string { return c.name }

// Type returns the type of the class instances.
func (c *Class) Type() reflect.Type { return c.methodSetType }

// RespondsTo returns true when the class method set has the given selector,
// defined by the class or promoted from a superclass.
func (c *Class) RespondsTo(sel Selector) bool {
	_, ok := c.method(sel)
	return ok
}

func (c *Class) method(sel Selector) (reflect.Method, bool) {
	if sel == "" {
		return reflect.Method{}, false
	}
	return c.methodSetType.MethodByName(string(sel))
}

// Selectors returns the sorted selectors of the class method set.
func (c *Class) Selectors() []Selector {
	n := c.methodSetType.NumMethod()
	selectors := make([]Selector, 0, n)
	for i := 0; i < n; i++ {
		selectors = append(selectors, Selector(c.methodSetType.Method(i).Name))
	}
	return selectors
}

// Superclasses returns the classes of the embedded fields, in declaration
// order.
func (c *Class) Superclasses() []*Class {
	c.supersOnce.Do(func() {
		t := c.typ
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := f.Type
			if ft == objectType || (ft.Kind() == reflect.Ptr && ft.Elem() == objectType) {
				continue
			}
			super, err := classOfType(ft)
			if err != nil {
				// Embedded interfaces are not classes
				continue
			}
			c.supers = append(c.supers, super)
		}
	})
	return c.supers
}

// Hierarchy returns the class followed by its superclasses, breadth first
// and without duplicates. It is the lookup order of class-level hooks.
func (c *Class) Hierarchy() []*Class {
	c.hierarchyOnce.Do(func() {
		visited := map[*Class]struct{}{c: {}}
		queue := []*Class{c}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			c.hierarchy = append(c.hierarchy, current)
			for _, super := range current.Superclasses() {
				if _, exists := visited[super]; exists {
					continue
				}
				visited[super] = struct{}{}
				queue = append(queue, super)
			}
		}
	})
	return c.hierarchy
}

// IsSubclassOf returns true when `super` is in the class hierarchy.
func (c *Class) IsSubclassOf(super *Class) bool {
	for _, class := range c.Hierarchy() {
		if class == super {
			return true
		}
	}
	return false
}
