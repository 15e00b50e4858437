package page

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// Kind distinguishes data-bearing leaf pages from pointer-bearing
// non-leaf pages.
type Kind byte

const (
	// Leaf pages hold PageObject records that are row data.
	Leaf Kind = 0
	// NonLeaf pages hold PageObject records whose value is a child
	// page number.
	NonLeaf Kind = 1
)

// HeaderLen is the fixed page header: 1 byte kind, 2 bytes used.
const HeaderLen = 3

// DefaultSize is the default page size used for file-backed databases.
const DefaultSize = 4096

// ErrSerializationFailure is returned when a third version of a key
// would be introduced into a page; the caller (a writer) must retry
// its transaction. SQLSTATE 40001.
var ErrSerializationFailure = errors.New("page: serialization failure")

// ErrPageFull is returned when an object does not fit on a page. The
// B-tree is expected to call Fits before Add and split rather than
// let this occur; seeing it means a caller invariant was violated.
var ErrPageFull = errors.New("page: object does not fit")

// Page is a fixed-size, in-memory representation of one page of the
// file: a kind, and an ascending-by-key list of PageObjects.
type Page struct {
	kind    Kind
	size    int
	objects []*Object
}

// New creates an empty page of the given kind and size.
func New(kind Kind, size int) *Page {
	return &Page{kind: kind, size: size}
}

// Kind returns the page's kind.
func (p *Page) Kind() Kind { return p.kind }

// SetKind changes the page's kind in place (used when demoting an
// emptied non-leaf root to a leaf).
func (p *Page) SetKind(k Kind) { p.kind = k }

// Size returns the configured page size in bytes.
func (p *Page) Size() int { return p.size }

// Used returns the header size plus the sum of all contained object
// lengths.
func (p *Page) Used() int {
	used := HeaderLen
	for _, o := range p.objects {
		used += o.Len()
	}
	return used
}

// Free returns the number of unused bytes remaining on the page.
func (p *Page) Free() int {
	return p.size - p.Used()
}

// Fits reports whether an object of the given serialized length would
// fit on the page without exceeding its size.
func (p *Page) Fits(objLen int) bool {
	return p.Used()+objLen <= p.size
}

// Count returns the number of objects stored on the page.
func (p *Page) Count() int { return len(p.objects) }

// Empty reports whether the page holds no objects.
func (p *Page) Empty() bool { return len(p.objects) == 0 }

// Objects returns the page's objects in ascending key order. The
// returned slice must not be mutated by the caller.
func (p *Page) Objects() []*Object { return p.objects }

// Keys returns the distinct, ascending keys represented on the page.
func (p *Page) Keys() [][]byte {
	keys := make([][]byte, 0, len(p.objects))
	var last []byte
	for _, o := range p.objects {
		if last == nil || !bytes.Equal(last, o.Key) {
			keys = append(keys, o.Key)
			last = o.Key
		}
	}
	return keys
}

// Head returns the first object on the page, establishing the page's
// head key.
func (p *Page) Head() (*Object, bool) {
	if len(p.objects) == 0 {
		return nil, false
	}
	return p.objects[0], true
}

// HeadKey returns the smallest key on the page.
func (p *Page) HeadKey() []byte {
	if len(p.objects) == 0 {
		return nil
	}
	return p.objects[0].Key
}

// insertionPoint returns the index at which a new object with the
// given key should be inserted to keep objects sorted; ties among
// objects with an equal key are broken by insertion order (the
// existing versions of a key stay contiguous).
func (p *Page) insertionPoint(key []byte) int {
	return sort.Search(len(p.objects), func(i int) bool {
		return bytes.Compare(p.objects[i].Key, key) > 0
	})
}

// versionsOf returns the index range [start, end) of objects sharing key.
func (p *Page) versionsOf(key []byte) (start, end int) {
	start = sort.Search(len(p.objects), func(i int) bool {
		return bytes.Compare(p.objects[i].Key, key) >= 0
	})
	end = start
	for end < len(p.objects) && bytes.Equal(p.objects[end].Key, key) {
		end++
	}
	return start, end
}

// Add inserts obj in sorted position by key. It fails with
// ErrSerializationFailure if two versions of obj.Key already exist on
// the page, and with ErrPageFull if the object does not fit (the
// B-tree is expected to have already checked Fits and split if
// necessary, so this indicates a caller bug rather than a normal
// condition).
func (p *Page) Add(obj *Object) error {
	objLen := obj.Len()
	if !p.Fits(objLen) {
		return fmt.Errorf("%w: need %d, have %d", ErrPageFull, objLen, p.Free())
	}

	start, end := p.versionsOf(obj.Key)
	if end-start >= 2 {
		return ErrSerializationFailure
	}

	idx := p.insertionPoint(obj.Key)
	p.objects = append(p.objects, nil)
	copy(p.objects[idx+1:], p.objects[idx:])
	p.objects[idx] = obj
	return nil
}

// Delete removes every object with matching key and tid. It returns
// whether any object was removed.
func (p *Page) Delete(key []byte, tid uint32) bool {
	removed := false
	out := p.objects[:0]
	for _, o := range p.objects {
		if bytes.Equal(o.Key, key) && o.Tid == tid {
			removed = true
			continue
		}
		out = append(out, o)
	}
	p.objects = out
	return removed
}

// Expire sets xid on every object with matching key and tid. It
// returns whether any object was modified.
func (p *Page) Expire(key []byte, tid uint32, xid uint32) bool {
	modified := false
	for _, o := range p.objects {
		if bytes.Equal(o.Key, key) && o.Tid == tid {
			o.Xid = xid
			modified = true
		}
	}
	return modified
}

// Replace deletes the version of key created by tid, then adds a new
// object with the given value, used for non-leaf pointer updates
// (key plus child page number).
func (p *Page) Replace(key []byte, tid uint32, value []byte) error {
	p.Delete(key, tid)
	return p.Add(&Object{Key: append([]byte(nil), key...), Value: value, Tid: tid})
}

// Update performs an atomic per-key replace under the two-version
// rule: zero existing versions inserts new; one version expires the
// existing one (stamped with tid) before adding new; two versions
// deletes the one created by tid (collapsing an in-flight duplicate)
// before adding new, or fails with ErrSerializationFailure if neither
// existing version was created by tid. Space is checked before any
// mutation so a failed Update never leaves the page half-changed.
func (p *Page) Update(old *Object, newObj *Object, tid uint32) error {
	start, end := p.versionsOf(newObj.Key)
	count := end - start
	newLen := newObj.Len()

	switch count {
	case 0:
		if !p.Fits(newLen) {
			return fmt.Errorf("%w: need %d, have %d", ErrPageFull, newLen, p.Free())
		}
		return p.Add(newObj)
	case 1:
		if !p.Fits(newLen) {
			return fmt.Errorf("%w: need %d, have %d", ErrPageFull, newLen, p.Free())
		}
		p.Expire(newObj.Key, p.objects[start].Tid, tid)
		return p.Add(newObj)
	default:
		matchIdx := -1
		for i := start; i < end; i++ {
			if p.objects[i].Tid == tid {
				matchIdx = i
				break
			}
		}
		if matchIdx == -1 {
			return ErrSerializationFailure
		}
		projected := p.Used() - p.objects[matchIdx].Len() + newLen
		if projected > p.size {
			return fmt.Errorf("%w: need %d, have %d", ErrPageFull, newLen, p.Free())
		}
		p.Delete(newObj.Key, tid)
		return p.Add(newObj)
	}
}

// CountVersions reports how many objects on the page currently carry
// key, used by the B-tree to validate the two-version rule before
// attempting a mutation that may require a split.
func (p *Page) CountVersions(key []byte) int {
	start, end := p.versionsOf(key)
	return end - start
}

// VersionTids returns the tids of every object currently carrying key,
// in page order.
func (p *Page) VersionTids(key []byte) []uint32 {
	start, end := p.versionsOf(key)
	tids := make([]uint32, 0, end-start)
	for i := start; i < end; i++ {
		tids = append(tids, p.objects[i].Tid)
	}
	return tids
}

// Clone returns a deep copy of the page, used by pagers that hand out
// private copies so B-tree traversal never mutates cached state
// without an explicit StorePage.
func (p *Page) Clone() *Page {
	out := &Page{kind: p.kind, size: p.size, objects: make([]*Object, len(p.objects))}
	for i, o := range p.objects {
		out.objects[i] = &Object{
			Key:   append([]byte(nil), o.Key...),
			Value: append([]byte(nil), o.Value...),
			Tid:   o.Tid,
			Xid:   o.Xid,
		}
	}
	return out
}

// FromSortedObjects builds a page directly from a caller-supplied,
// already key-sorted slice of objects, bypassing Add's per-call
// conflict and fit checks. Used by the B-tree when redistributing
// objects across a split, where the whole resulting set has already
// been validated.
func FromSortedObjects(kind Kind, size int, objects []*Object) *Page {
	return &Page{kind: kind, size: size, objects: objects}
}

// Bytes serializes the page to a size-byte buffer: 1 byte kind, 2
// bytes used, then the concatenated serialized objects, zero-padded
// to size.
func (p *Page) Bytes() ([]byte, error) {
	buf := make([]byte, p.size)
	buf[0] = byte(p.kind)

	offset := HeaderLen
	for _, o := range p.objects {
		data, err := o.Serialize()
		if err != nil {
			return nil, err
		}
		if offset+len(data) > p.size {
			return nil, fmt.Errorf("page: object overflow while serializing page")
		}
		copy(buf[offset:], data)
		offset += len(data)
	}

	used := p.Used()
	buf[1] = byte(used >> 8)
	buf[2] = byte(used)
	return buf, nil
}

// FromBytes parses a size-byte buffer into a Page.
func FromBytes(size int, data []byte) (*Page, error) {
	if len(data) != size {
		return nil, fmt.Errorf("page: expected %d bytes, got %d", size, len(data))
	}

	kind := Kind(data[0])
	used := int(data[1])<<8 | int(data[2])
	if used < HeaderLen || used > size {
		return nil, fmt.Errorf("page: corrupt header: used=%d size=%d", used, size)
	}

	p := &Page{kind: kind, size: size}
	offset := HeaderLen
	for offset < used {
		obj, n, err := ParseObject(data[offset:used])
		if err != nil {
			return nil, fmt.Errorf("page: parsing object at offset %d: %w", offset, err)
		}
		p.objects = append(p.objects, obj)
		offset += n
	}

	return p, nil
}
