package scene

import (
	"reflect"
	"slices"
	"sync/atomic"
)

// IDAllocator hands out object and panel ids. Ids are never reused within a
// session: the counter only moves forward, including past ids seen on
// restore or hydrate.
type IDAllocator struct {
	last atomic.Int64
}

// Next returns a fresh id.
func (a *IDAllocator) Next() int64 {
	return a.last.Add(1)
}

// Observe advances the counter so that id will never be handed out.
func (a *IDAllocator) Observe(id int64) {
	for {
		cur := a.last.Load()
		if id <= cur || a.last.CompareAndSwap(cur, id) {
			return
		}
	}
}

// Last returns the most recently allocated or observed id.
func (a *IDAllocator) Last() int64 {
	return a.last.Load()
}

// Reason says which operation changed the document.
type Reason string

const (
	ReasonAppend  Reason = "append"
	ReasonReplace Reason = "replace"
	ReasonRemove  Reason = "remove"
	ReasonClear   Reason = "clear"
	ReasonRestore Reason = "restore"
)

// Change describes a successful mutation.
type Change struct {
	Reason Reason
	IDs    []int64
}

// ChangeFunc observes document mutations.
type ChangeFunc func(Change)

// Snapshot is an immutable deep copy of the document's objects.
type Snapshot struct {
	Objects []Object
}

// Len returns the number of objects in the snapshot.
func (s Snapshot) Len() int { return len(s.Objects) }

// Clone deep copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Objects: cloneAll(s.Objects)}
}

// Equal reports structural equality.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.Objects) != len(other.Objects) {
		return false
	}
	for i := range s.Objects {
		if !reflect.DeepEqual(s.Objects[i], other.Objects[i]) {
			return false
		}
	}
	return true
}

// Document is the ordered collection of committed drawable objects. Array
// order is paint order: later objects draw on top.
type Document struct {
	objects  []Object
	ids      *IDAllocator
	onChange []ChangeFunc
}

// NewDocument returns an empty document with its own id allocator.
func NewDocument() *Document {
	return NewDocumentWithIDs(&IDAllocator{})
}

// NewDocumentWithIDs returns an empty document drawing ids from ids.
func NewDocumentWithIDs(ids *IDAllocator) *Document {
	return &Document{ids: ids}
}

// IDs returns the allocator shared with everything else that needs an id.
func (d *Document) IDs() *IDAllocator {
	return d.ids
}

// OnChange registers fn to run after every successful mutation.
func (d *Document) OnChange(fn ChangeFunc) {
	d.onChange = append(d.onChange, fn)
}

func (d *Document) notify(reason Reason, ids ...int64) {
	c := Change{Reason: reason, IDs: ids}
	for _, fn := range d.onChange {
		fn(c)
	}
}

// Len returns the number of objects.
func (d *Document) Len() int {
	return len(d.objects)
}

// Objects returns a copy of the object list. Variants are values, but stroke
// point slices are shared, so callers must not modify them.
func (d *Document) Objects() []Object {
	return slices.Clone(d.objects)
}

// Get looks up an object by id.
func (d *Document) Get(id int64) (Object, bool) {
	for _, o := range d.objects {
		if o.Header().ID == id {
			return o, true
		}
	}
	return nil, false
}

// Append stamps obj with a fresh id, adds it on top and returns the id.
func (d *Document) Append(obj Object) int64 {
	id := d.ids.Next()
	d.objects = append(d.objects, obj.withID(id).clone())
	d.notify(ReasonAppend, id)
	return id
}

// ReplaceLast swaps the last object for mutate(last). The id is preserved
// whatever the mutator returns. Returns false on an empty document or when
// the mutator returns nil.
func (d *Document) ReplaceLast(mutate func(Object) Object) bool {
	if len(d.objects) == 0 {
		return false
	}
	i := len(d.objects) - 1
	id := d.objects[i].Header().ID
	next := mutate(d.objects[i].clone())
	if next == nil {
		return false
	}
	d.objects[i] = next.withID(id)
	d.notify(ReasonReplace, id)
	return true
}

// RemoveWhere drops every object matching pred and returns how many went.
func (d *Document) RemoveWhere(pred func(Object) bool) int {
	var removed []int64
	kept := d.objects[:0:0]
	for _, o := range d.objects {
		if pred(o) {
			removed = append(removed, o.Header().ID)
			continue
		}
		kept = append(kept, o)
	}
	if len(removed) == 0 {
		return 0
	}
	d.objects = kept
	d.notify(ReasonRemove, removed...)
	return len(removed)
}

// RemoveByID removes the object with the given id.
func (d *Document) RemoveByID(id int64) bool {
	return d.RemoveWhere(func(o Object) bool { return o.Header().ID == id }) > 0
}

// Clear removes everything.
func (d *Document) Clear() {
	if len(d.objects) == 0 {
		return
	}
	d.objects = nil
	d.notify(ReasonClear)
}

// Snapshot returns a deep copy of the current objects.
func (d *Document) Snapshot() Snapshot {
	return Snapshot{Objects: cloneAll(d.objects)}
}

// Restore replaces the contents with a deep copy of s. Ids in s are observed
// so the allocator never reissues them. An object without an id, or with one
// already taken by an earlier object, gets a fresh id.
func (d *Document) Restore(s Snapshot) {
	d.objects = cloneAll(s.Objects)
	for _, o := range d.objects {
		d.ids.Observe(o.Header().ID)
	}
	seen := make(map[int64]bool, len(d.objects))
	for i, o := range d.objects {
		id := o.Header().ID
		if id <= 0 || seen[id] {
			id = d.ids.Next()
			d.objects[i] = o.withID(id)
		}
		seen[id] = true
	}
	d.notify(ReasonRestore)
}

func cloneAll(objs []Object) []Object {
	if len(objs) == 0 {
		return nil
	}
	out := make([]Object, len(objs))
	for i, o := range objs {
		out[i] = o.clone()
	}
	return out
}
