package stats

import (
	"sort"
	"sync"
)

// Registry is the ordered list of statistics types that a source can provide.
// Readers always receive copies, so a hit test or a loading check works on a
// consistent snapshot even if the registry is changed while it runs.
type Registry struct {
	lock  sync.RWMutex
	types []Type
	nextZ int
}

// Add registers a new type, and returns the type as it was stored.
// If t.TypeID is InvalidTypeID, an ID is assigned: one more than the largest ID
// in the registry (so the first auto-assigned ID is 1). In that case, a type
// with the same name as an existing type is dropped, and Add returns false.
// Types with explicit IDs are appended as-is. The caller is responsible for
// keeping those unique.
func (r *Registry) Add(t Type) (Type, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if t.TypeID == InvalidTypeID {
		maxID := 0
		for i := range r.types {
			if r.types[i].TypeName == t.TypeName {
				return Type{}, false
			}
			maxID = max(maxID, r.types[i].TypeID)
		}
		t.TypeID = maxID + 1
	}
	t = cloneType(t)
	t.ZOrder = r.nextZ
	r.nextZ++
	r.types = append(r.types, t)
	return cloneType(t), true
}

// Len returns the number of registered types
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.types)
}

// Types returns a copy of all types, in registration order
func (r *Registry) Types() []Type {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make([]Type, len(r.types))
	for i := range r.types {
		out[i] = cloneType(r.types[i])
	}
	return out
}

// Topmost returns a copy of all types, with the type that is drawn on top first.
// Types with equal ZOrder are ordered by reverse registration.
func (r *Registry) Topmost() []Type {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make([]Type, len(r.types))
	for i := range r.types {
		out[len(r.types)-1-i] = cloneType(r.types[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZOrder > out[j].ZOrder
	})
	return out
}

// AnyRendered returns true if at least one type has Render set
func (r *Registry) AnyRendered() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for i := range r.types {
		if r.types[i].Render {
			return true
		}
	}
	return false
}

// Find returns the type with the given ID
func (r *Registry) Find(typeID int) (Type, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for i := range r.types {
		if r.types[i].TypeID == typeID {
			return cloneType(r.types[i]), true
		}
	}
	return Type{}, false
}

// SetRender turns rendering of a type on or off. Returns false if the type does not exist.
func (r *Registry) SetRender(typeID int, render bool) bool {
	return r.update(typeID, func(t *Type) {
		t.Render = render
	})
}

// SetZOrder moves a type up or down the drawing order. Returns false if the type does not exist.
func (r *Registry) SetZOrder(typeID int, z int) bool {
	return r.update(typeID, func(t *Type) {
		t.ZOrder = z
	})
}

// Clear removes all types
func (r *Registry) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.types = nil
	r.nextZ = 0
}

func (r *Registry) update(typeID int, f func(t *Type)) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i := range r.types {
		if r.types[i].TypeID == typeID {
			f(&r.types[i])
			return true
		}
	}
	return false
}

// Run f on every type, in registration order, while holding the write lock
func (r *Registry) updateAll(f func(t *Type)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i := range r.types {
		f(&r.types[i])
	}
}
