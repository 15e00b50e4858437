package btree

import (
	"bytes"
	"sort"

	"github.com/coredb/coredb/internal/page"
)

// RangeIterator performs a lazy, forward scan over the half-open key
// range [start, end). A nil start begins at the smallest key; a nil
// end has no upper bound. There are no sibling pointers between
// leaves, so once a leaf is exhausted the iterator re-descends from
// the root using that leaf's own last key plus one (its lexicographic
// successor); descendToLeaf steps right to the next leaf whenever the
// leaf a floor-based descent reaches holds nothing at or after the
// seek key.
//
// A RangeIterator holds no lock and is not invalidated by concurrent
// writes in other transactions; callers that need a stable view
// materialize what they need before mutating within the same
// transaction, matching how every other read against this B-tree
// behaves.
type RangeIterator struct {
	bt    *BTree
	start []byte
	end   []byte

	leaf    *page.Page
	idx     int
	seeded  bool
	lastKey []byte
	done    bool
}

// NewRangeIterator constructs an iterator over [start, end). It
// performs no I/O until the first call to Next.
func (b *BTree) NewRangeIterator(start, end []byte) *RangeIterator {
	return &RangeIterator{bt: b, start: start, end: end}
}

// Next returns the next live-or-not object in key order along with
// true, or (nil, false) once the range is exhausted.
func (it *RangeIterator) Next() (*page.Object, bool, error) {
	if it.done {
		return nil, false, nil
	}

	descended := false
	for {
		if it.leaf == nil {
			seekKey := it.start
			if it.seeded {
				seekKey = successorKey(it.lastKey)
			}

			p, err := it.descendToLeaf(seekKey)
			if err != nil {
				it.done = true
				return nil, false, err
			}
			if p == nil {
				it.done = true
				return nil, false, nil
			}
			it.leaf = p
			it.idx = firstIndexAtOrAfter(p, seekKey)
			descended = true
		}

		if it.idx >= it.leaf.Count() {
			// This leaf holds nothing more at or after the resume
			// point. Either earlier yields used it up, in which case
			// advance past its last key and re-descend, or a fresh
			// descent just landed here, in which case descendToLeaf
			// found no further key anywhere to the right.
			objs := it.leaf.Objects()
			if len(objs) == 0 {
				it.done = true
				return nil, false, nil
			}
			advanceKey := append([]byte(nil), objs[len(objs)-1].Key...)
			if it.end != nil && bytes.Compare(advanceKey, it.end) >= 0 {
				it.done = true
				return nil, false, nil
			}
			if descended {
				// A fresh descent found nothing at or after its seek
				// key: the range is genuinely exhausted.
				it.done = true
				return nil, false, nil
			}
			it.lastKey = advanceKey
			it.seeded = true
			it.leaf = nil
			continue
		}

		obj := it.leaf.Objects()[it.idx]
		it.idx++

		if it.end != nil && bytes.Compare(obj.Key, it.end) >= 0 {
			it.done = true
			return nil, false, nil
		}

		it.lastKey = append([]byte(nil), obj.Key...)
		it.seeded = true
		return obj, true, nil
	}
}

// descendToLeaf walks from the root to the first leaf holding a key
// >= key, stepping right past a leaf that holds none; when no such
// leaf exists it returns the rightmost leaf the walk reached. A nil
// key descends to the leftmost non-empty leaf. It returns (nil, nil)
// for an empty tree.
func (it *RangeIterator) descendToLeaf(key []byte) (*page.Page, error) {
	if it.bt.pager.TotalPages() == 0 {
		return nil, nil
	}

	pageNum := it.bt.pager.RootPage()
	next := -1
	for {
		p, err := it.bt.fetch(pageNum)
		if err != nil {
			return nil, err
		}
		if p.Kind() == page.Leaf {
			if next >= 0 && firstIndexAtOrAfter(p, key) >= p.Count() {
				pageNum, next, key = next, -1, nil
				continue
			}
			return p, nil
		}
		objs := p.Objects()
		idx := 0
		if key != nil {
			idx = chooseChild(p, key)
		}
		if idx+1 < len(objs) {
			next = childPageNum(objs[idx+1])
		}
		pageNum = childPageNum(objs[idx])
	}
}

// firstIndexAtOrAfter returns the index of the first object on p whose
// key is >= key (0 if key is nil).
func firstIndexAtOrAfter(p *page.Page, key []byte) int {
	if key == nil {
		return 0
	}
	objs := p.Objects()
	return sort.Search(len(objs), func(i int) bool {
		return bytes.Compare(objs[i].Key, key) >= 0
	})
}

// successorKey returns the lexicographically smallest byte string
// strictly greater than key, used to resume a range scan just past
// the last key emitted from an exhausted leaf.
func successorKey(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}
