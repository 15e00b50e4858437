// Package btree implements the paged, MVCC-aware B-tree that backs
// every table and the schema catalog: a single data structure mapping
// byte-string keys to PageObjects, split across fixed-size pages
// addressed through a Pager.
//
// Non-leaf pages hold no transaction-visibility information of their
// own; every entry's key is the head key of the child subtree it
// points to, and its value is the child's page number. Leaf pages
// hold the live data, one or two MVCC versions per key. There are no
// sibling or parent pointers on disk: operations that need an
// ancestor path build it by descending from the root during that
// single operation, as the design explicitly allows.
package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/coredb/coredb/internal/page"
	"github.com/coredb/coredb/internal/pager"
)

// BTree is a handle onto one tree rooted at its Pager's root page.
// A BTree holds no state of its own between calls; every operation
// re-fetches what it needs from the Pager, which is where the tree's
// actual root page number lives.
type BTree struct {
	pager pager.Pager

	// OnDirty, if set, is called with the number of every page
	// written by a mutating operation (Add, Update, Expire, Remove).
	// The Storage Coordinator uses this to maintain its per-writer
	// dirty-page set for commit/rollback cleanup.
	OnDirty func(pageNum int)
}

// New wraps pager in a BTree. If the pager has no pages yet, the tree
// is created lazily on the first Add.
func New(p pager.Pager) *BTree {
	return &BTree{pager: p}
}

func (b *BTree) markDirty(n int) {
	if b.OnDirty != nil {
		b.OnDirty(n)
	}
}

// childPageNum decodes a non-leaf object's value into a page number.
func childPageNum(obj *page.Object) int {
	return obj.ChildPage()
}

// newChildPointer builds a non-leaf entry pointing at childPage,
// keyed by the head key of that child's subtree.
func newChildPointer(key []byte, childPage int) *page.Object {
	return page.NewChildPointer(append([]byte(nil), key...), childPage)
}

// chooseChild returns the index of the child a key belongs under: the
// rightmost entry whose key is <= target, or index 0 if every entry's
// key is greater (the key belongs left of everything on the page).
func chooseChild(p *page.Page, key []byte) int {
	idx := 0
	for i, o := range p.Objects() {
		if bytes.Compare(o.Key, key) <= 0 {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// fetch is a small convenience wrapper so call sites read naturally.
func (b *BTree) fetch(n int) (*page.Page, error) {
	p, err := b.pager.FetchPage(n)
	if err != nil {
		return nil, fmt.Errorf("btree: fetching page %d: %w", n, err)
	}
	return p, nil
}

func (b *BTree) store(n int, p *page.Page) error {
	if err := b.pager.StorePage(n, p); err != nil {
		return fmt.Errorf("btree: storing page %d: %w", n, err)
	}
	b.markDirty(n)
	return nil
}

func (b *BTree) append(p *page.Page) (int, error) {
	n, err := b.pager.AppendPage(p)
	if err != nil {
		return 0, err
	}
	b.markDirty(n)
	return n, nil
}

// upsertResult is what a recursive level returns to its caller about
// what happened one level below.
type upsertResult struct {
	// split is set when the child page could not hold the new/updated
	// object and had to split; the caller must link the new sibling
	// into its own page (recursively splitting itself if needed).
	split *splitResult

	// headChanged/newHead report that the child's smallest key
	// changed (its first object was replaced or removed), so the
	// caller must update the key it uses to reference that child.
	headChanged bool
	newHead     []byte
}

type splitResult struct {
	key     []byte
	pageNum int
}

// Add inserts obj as a brand-new key version. It fails with
// page.ErrSerializationFailure if two versions of obj.Key (expired or
// not) already exist anywhere a single leaf would hold them.
func (b *BTree) Add(obj *page.Object) error {
	return b.upsert(obj, false)
}

// Update performs Page.Update's 0/1/2-version replace semantics at the
// leaf that owns newObj.Key, splitting that leaf first if the
// resulting page would overflow.
func (b *BTree) Update(newObj *page.Object, tid uint32) error {
	_ = tid // tid travels inside newObj.Tid; kept for call-site clarity
	return b.upsert(newObj, true)
}

func (b *BTree) upsert(obj *page.Object, isUpdate bool) error {
	if b.pager.TotalPages() == 0 {
		root := page.New(page.Leaf, b.pager.PageSize())
		if err := root.Add(obj); err != nil {
			return err
		}
		n, err := b.append(root)
		if err != nil {
			return err
		}
		return b.pager.SetRootPage(n)
	}

	rootNum := b.pager.RootPage()
	result, err := b.upsertAt(rootNum, obj, isUpdate)
	if err != nil {
		return err
	}
	if result.split == nil {
		return nil
	}

	// The root itself split: build a fresh non-leaf root with two
	// entries, the reused (left) root page and the new sibling.
	leftPage, err := b.fetch(rootNum)
	if err != nil {
		return err
	}
	newRoot := page.New(page.NonLeaf, b.pager.PageSize())
	if err := newRoot.Add(newChildPointer(leftPage.HeadKey(), rootNum)); err != nil {
		return err
	}
	if err := newRoot.Add(newChildPointer(result.split.key, result.split.pageNum)); err != nil {
		return err
	}
	newRootNum, err := b.append(newRoot)
	if err != nil {
		return err
	}
	return b.pager.SetRootPage(newRootNum)
}

func (b *BTree) upsertAt(pageNum int, obj *page.Object, isUpdate bool) (*upsertResult, error) {
	p, err := b.fetch(pageNum)
	if err != nil {
		return nil, err
	}

	if p.Kind() == page.Leaf {
		return b.upsertLeaf(pageNum, p, obj, isUpdate)
	}
	return b.upsertNonLeaf(pageNum, p, obj, isUpdate)
}

// upsertLeaf applies obj to leaf p, splitting it if the result would
// not fit. It never leaves the stored page partially mutated: the
// combined post-operation object set is built in memory first, and
// only written back (or split across two pages) once validated.
func (b *BTree) upsertLeaf(pageNum int, p *page.Page, obj *page.Object, isUpdate bool) (*upsertResult, error) {
	oldHead := append([]byte(nil), p.HeadKey()...)

	combined, err := projectLeaf(p, obj, isUpdate)
	if err != nil {
		return nil, err
	}

	total := page.HeaderLen
	for _, o := range combined {
		total += o.Len()
	}

	if total <= p.Size() {
		newPage := page.FromSortedObjects(page.Leaf, p.Size(), combined)
		if err := b.store(pageNum, newPage); err != nil {
			return nil, err
		}
		return headResult(oldHead, newPage.HeadKey()), nil
	}

	left, right := splitObjects(combined, p.Size())
	leftPage := page.FromSortedObjects(page.Leaf, p.Size(), left)
	rightPage := page.FromSortedObjects(page.Leaf, p.Size(), right)

	if err := b.store(pageNum, leftPage); err != nil {
		return nil, err
	}
	rightNum, err := b.append(rightPage)
	if err != nil {
		return nil, err
	}

	res := headResult(oldHead, leftPage.HeadKey())
	res.split = &splitResult{key: rightPage.HeadKey(), pageNum: rightNum}
	return res, nil
}

// projectLeaf builds the sorted object set that would result from
// applying obj to p's current contents, without mutating p, validating
// the two-version rule along the way.
func projectLeaf(p *page.Page, obj *page.Object, isUpdate bool) ([]*page.Object, error) {
	count := p.CountVersions(obj.Key)

	if !isUpdate && count >= 2 {
		return nil, page.ErrSerializationFailure
	}
	if isUpdate && count >= 2 {
		matched := false
		for _, tid := range p.VersionTids(obj.Key) {
			if tid == obj.Tid {
				matched = true
			}
		}
		if !matched {
			return nil, page.ErrSerializationFailure
		}
	}

	out := make([]*page.Object, 0, len(p.Objects())+1)
	for _, o := range p.Objects() {
		if !bytes.Equal(o.Key, obj.Key) {
			out = append(out, o)
			continue
		}
		if isUpdate && count == 2 && o.Tid == obj.Tid {
			// Collapse: the in-flight duplicate created by this
			// writer is dropped, not carried forward.
			continue
		}
		if isUpdate && count == 1 {
			expired := &page.Object{Key: o.Key, Value: o.Value, Tid: o.Tid, Xid: obj.Tid}
			out = append(out, expired)
			continue
		}
		out = append(out, o)
	}
	out = append(out, obj)

	sortObjects(out)
	return out, nil
}

func headResult(oldHead, newHead []byte) *upsertResult {
	return &upsertResult{headChanged: !bytes.Equal(oldHead, newHead), newHead: newHead}
}

// upsertNonLeaf descends into the appropriate child, then folds the
// child's reported head-key change and/or split back into p.
func (b *BTree) upsertNonLeaf(pageNum int, p *page.Page, obj *page.Object, isUpdate bool) (*upsertResult, error) {
	oldHead := append([]byte(nil), p.HeadKey()...)

	idx := chooseChild(p, obj.Key)
	entry := p.Objects()[idx]
	childNum := childPageNum(entry)
	childKey := append([]byte(nil), entry.Key...)

	childResult, err := b.upsertAt(childNum, obj, isUpdate)
	if err != nil {
		return nil, err
	}

	if childResult.headChanged {
		p.Delete(childKey, 0)
		if err := p.Add(newChildPointer(childResult.newHead, childNum)); err != nil {
			return nil, err
		}
	}

	if childResult.split == nil {
		if err := b.store(pageNum, p); err != nil {
			return nil, err
		}
		return headResult(oldHead, p.HeadKey()), nil
	}

	ptr := newChildPointer(childResult.split.key, childResult.split.pageNum)
	if p.Fits(ptr.Len()) {
		if err := p.Add(ptr); err != nil {
			return nil, err
		}
		if err := b.store(pageNum, p); err != nil {
			return nil, err
		}
		return headResult(oldHead, p.HeadKey()), nil
	}

	combined := append(append([]*page.Object(nil), p.Objects()...), ptr)
	sortObjects(combined)
	left, right := splitObjects(combined, p.Size())

	leftPage := page.FromSortedObjects(page.NonLeaf, p.Size(), left)
	rightPage := page.FromSortedObjects(page.NonLeaf, p.Size(), right)
	if err := b.store(pageNum, leftPage); err != nil {
		return nil, err
	}
	rightNum, err := b.append(rightPage)
	if err != nil {
		return nil, err
	}

	res := headResult(oldHead, leftPage.HeadKey())
	res.split = &splitResult{key: rightPage.HeadKey(), pageNum: rightNum}
	return res, nil
}

func encodePageNum(n int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	return buf
}

// Expire descends to the leaf owning key and stamps the version
// created by tid with xid, with no structural change to the tree.
func (b *BTree) Expire(key []byte, tid, xid uint32) (bool, error) {
	if b.pager.TotalPages() == 0 {
		return false, nil
	}
	pageNum := b.pager.RootPage()
	for {
		p, err := b.fetch(pageNum)
		if err != nil {
			return false, err
		}
		if p.Kind() == page.Leaf {
			modified := p.Expire(key, tid, xid)
			if modified {
				if err := b.store(pageNum, p); err != nil {
					return false, err
				}
			}
			return modified, nil
		}
		idx := chooseChild(p, key)
		pageNum = childPageNum(p.Objects()[idx])
	}
}
