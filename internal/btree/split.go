package btree

import (
	"bytes"
	"sort"

	"github.com/coredb/coredb/internal/page"
)

// sortObjects orders a freshly combined object slice by key, breaking
// ties by keeping existing relative order (so a key's two live
// versions, or an expiring version next to its replacement, stay
// adjacent rather than swapping).
func sortObjects(objs []*page.Object) {
	sort.SliceStable(objs, func(i, j int) bool {
		return bytes.Compare(objs[i].Key, objs[j].Key) < 0
	})
}

// splitObjects divides a sorted, over-full object set into a left and
// right half. Objects are assigned to the left half while doing so
// keeps the running total at or under half of the page's usable
// capacity; the first object always goes left even if it alone
// exceeds that target, so a split never produces an empty page. Ties
// at the boundary keep the lower key on the left, since the walk only
// moves an object to the right once adding it would cross the target.
func splitObjects(objs []*page.Object, pageSize int) (left, right []*page.Object) {
	target := (pageSize - page.HeaderLen) / 2

	running := 0
	cut := len(objs)
	for i, o := range objs {
		l := o.Len()
		if i > 0 && running+l > target {
			cut = i
			break
		}
		running += l
	}

	left = append([]*page.Object(nil), objs[:cut]...)
	right = append([]*page.Object(nil), objs[cut:]...)
	return left, right
}
