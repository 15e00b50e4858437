package btree

import (
	"bytes"

	"github.com/coredb/coredb/internal/page"
)

// removeOutcome tells a non-leaf caller what happened to one of its
// children so it can fix up its own entry, or fold the change further
// upward.
type removeOutcome struct {
	found bool

	// vanished is set when the child page is now completely empty;
	// the caller must drop its entry for it and queue it for reclaim.
	vanished bool

	// collapseTo is set when the child page has exactly one entry
	// left and is not the root; the caller should replace its own
	// pointer to the child directly with collapseTo (skipping the
	// now-redundant intermediate page, which is queued for reclaim).
	collapseTo *page.Object

	headChanged bool
	newHead     []byte
}

// Remove physically deletes the version of key created by tid. It
// reports whether a matching object was found, handling leaf underflow
// by unlinking empty pages and collapsing single-child parents, and
// compacting the freed page numbers once the whole operation completes.
func (b *BTree) Remove(key []byte, tid uint32) (bool, error) {
	if b.pager.TotalPages() == 0 {
		return false, nil
	}

	var toFree []int
	rootNum := b.pager.RootPage()
	outcome, err := b.removeAt(rootNum, key, tid, &toFree)
	if err != nil {
		return false, err
	}
	if !outcome.found {
		return false, nil
	}

	if err := b.finishRoot(rootNum, &toFree); err != nil {
		return false, err
	}
	if err := b.reclaimPages(toFree); err != nil {
		return false, err
	}
	return true, nil
}

func (b *BTree) removeAt(pageNum int, key []byte, tid uint32, toFree *[]int) (*removeOutcome, error) {
	p, err := b.fetch(pageNum)
	if err != nil {
		return nil, err
	}

	if p.Kind() == page.Leaf {
		return b.removeLeaf(pageNum, p, key, tid)
	}
	return b.removeNonLeaf(pageNum, p, key, tid, toFree)
}

func (b *BTree) removeLeaf(pageNum int, p *page.Page, key []byte, tid uint32) (*removeOutcome, error) {
	oldHead := append([]byte(nil), p.HeadKey()...)

	if !p.Delete(key, tid) {
		return &removeOutcome{found: false}, nil
	}

	if p.Empty() && pageNum != b.pager.RootPage() {
		return &removeOutcome{found: true, vanished: true}, nil
	}

	if err := b.store(pageNum, p); err != nil {
		return nil, err
	}
	newHead := p.HeadKey()
	return &removeOutcome{
		found:       true,
		headChanged: !bytes.Equal(oldHead, newHead),
		newHead:     newHead,
	}, nil
}

func (b *BTree) removeNonLeaf(pageNum int, p *page.Page, key []byte, tid uint32, toFree *[]int) (*removeOutcome, error) {
	oldHead := append([]byte(nil), p.HeadKey()...)

	idx := chooseChild(p, key)
	entry := p.Objects()[idx]
	childNum := childPageNum(entry)
	childKey := append([]byte(nil), entry.Key...)

	childOutcome, err := b.removeAt(childNum, key, tid, toFree)
	if err != nil {
		return nil, err
	}
	if !childOutcome.found {
		return &removeOutcome{found: false}, nil
	}

	switch {
	case childOutcome.vanished:
		p.Delete(childKey, 0)
		*toFree = append(*toFree, childNum)

	case childOutcome.collapseTo != nil:
		p.Delete(childKey, 0)
		survivor := childOutcome.collapseTo
		if err := p.Add(newChildPointer(survivor.Key, childPageNum(survivor))); err != nil {
			return nil, err
		}
		*toFree = append(*toFree, childNum)

	case childOutcome.headChanged:
		p.Delete(childKey, 0)
		if err := p.Add(newChildPointer(childOutcome.newHead, childNum)); err != nil {
			return nil, err
		}
	}

	if err := b.store(pageNum, p); err != nil {
		return nil, err
	}

	if pageNum == b.pager.RootPage() {
		// Root shape-changes (demotion, collapse to leaf) are handled
		// once by finishRoot after the whole recursion unwinds.
		return &removeOutcome{found: true}, nil
	}

	if p.Empty() {
		return &removeOutcome{found: true, vanished: true}, nil
	}
	if p.Count() == 1 {
		return &removeOutcome{found: true, collapseTo: p.Objects()[0]}, nil
	}

	newHead := p.HeadKey()
	return &removeOutcome{
		found:       true,
		headChanged: !bytes.Equal(oldHead, newHead),
		newHead:     newHead,
	}, nil
}

// finishRoot applies the root-specific shape changes that a regular
// non-leaf page can't perform on itself: demoting a single surviving
// child to be the new root, or converting an emptied non-leaf root
// into an empty leaf (the terminal, zero-row state of a table).
func (b *BTree) finishRoot(rootNum int, toFree *[]int) error {
	p, err := b.fetch(rootNum)
	if err != nil {
		return err
	}
	if p.Kind() != page.NonLeaf {
		return nil
	}

	switch {
	case p.Empty():
		p.SetKind(page.Leaf)
		return b.store(rootNum, p)
	case p.Count() == 1:
		survivor := p.Objects()[0]
		if err := b.pager.SetRootPage(childPageNum(survivor)); err != nil {
			return err
		}
		*toFree = append(*toFree, rootNum)
	}
	return nil
}

// reclaimPages compacts every freed page number out of existence by
// swapping each with the current highest-numbered page and truncating,
// patching whichever entry referenced the page that moved. Pages in
// the batch are themselves known unreferenced on entry (every caller
// above already removed or redirected its own pointer to them), so the
// only bookkeeping left is closing the holes in the page array.
func (b *BTree) reclaimPages(freed []int) error {
	remaining := make(map[int]bool, len(freed))
	for _, n := range freed {
		remaining[n] = true
	}

	for len(remaining) > 0 {
		last := b.pager.TotalPages() - 1
		if remaining[last] {
			if err := b.pager.TruncateLastPage(); err != nil {
				return err
			}
			delete(remaining, last)
			continue
		}

		var hole int
		for n := range remaining {
			hole = n
			break
		}

		lastPage, err := b.fetch(last)
		if err != nil {
			return err
		}
		if err := b.store(hole, lastPage); err != nil {
			return err
		}

		if last == b.pager.RootPage() {
			if err := b.pager.SetRootPage(hole); err != nil {
				return err
			}
		} else if parentNum, parentKey, err := b.findParentPointer(b.pager.RootPage(), last); err != nil {
			return err
		} else if parentNum >= 0 {
			parentPage, err := b.fetch(parentNum)
			if err != nil {
				return err
			}
			if err := parentPage.Replace(parentKey, 0, encodePageNum(hole)); err != nil {
				return err
			}
			if err := b.store(parentNum, parentPage); err != nil {
				return err
			}
		}

		if err := b.pager.TruncateLastPage(); err != nil {
			return err
		}
		delete(remaining, hole)
	}
	return nil
}

// findParentPointer walks the tree from pageNum looking for a non-leaf
// entry whose value is target, returning the page holding that entry
// and the key it's stored under. It returns -1 when target is the
// root (which has no parent) or isn't found.
func (b *BTree) findParentPointer(pageNum, target int) (int, []byte, error) {
	if pageNum == target {
		return -1, nil, nil
	}
	p, err := b.fetch(pageNum)
	if err != nil {
		return -1, nil, err
	}
	if p.Kind() == page.Leaf {
		return -1, nil, nil
	}
	for _, o := range p.Objects() {
		if childPageNum(o) == target {
			return pageNum, append([]byte(nil), o.Key...), nil
		}
	}
	for _, o := range p.Objects() {
		found, key, err := b.findParentPointer(childPageNum(o), target)
		if err != nil {
			return -1, nil, err
		}
		if found >= 0 {
			return found, key, nil
		}
	}
	return -1, nil, nil
}
