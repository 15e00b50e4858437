package storage

import "github.com/coredb/coredb/internal/page"

// visible implements the MVCC visibility rule: an object is visible
// to a reader holding snapshot iff it was created at or before the
// snapshot and either was never expired or was expired strictly after
// the snapshot. A reader's own in-flight writes (tid == snapshot) are
// always visible to itself.
func visible(obj *page.Object, snapshot uint32) bool {
	if obj.Tid > snapshot {
		return false
	}
	if obj.Xid == 0 {
		return true
	}
	return obj.Xid > snapshot
}
