// Package storage implements the Storage & Transaction Coordinator:
// the layer above the B-tree that maps table names to key-prefixed
// ranges, allocates and tracks transaction identifiers, enforces the
// connection's transaction state machine, and applies the dirty-page
// cleanup that makes MVCC commit/rollback physical rather than
// merely logical.
package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/coredb/coredb/internal/btree"
	"github.com/coredb/coredb/internal/page"
	"github.com/coredb/coredb/internal/pager"
	"github.com/coredb/coredb/internal/sqlerr"
	"github.com/coredb/coredb/internal/value"
)

// Coordinator owns one connection's view of a single backing file (or
// in-memory database): its Pager, the B-tree built over it, the
// table catalog rebuilt from that tree at Open, and the connection's
// own transaction state. Coordinators opened against the same path
// share file-level exclusion through their writerLock but otherwise
// hold no state in common, matching the per-connection table map and
// process-wide-only sharing the concurrency model calls for.
type Coordinator struct {
	path   string
	memory bool

	pager pager.Pager
	tree  *btree.BTree
	lock  writerLock
	log   logrus.FieldLogger

	tables    map[string]*value.Table // folded name -> table
	tableTIDs map[string]uint32       // folded name -> creator tid of its catalog record
	tx        *Transaction
}

// Open opens (creating if necessary) the database at path. path may
// be ":memory:" for a purely in-memory database, which uses no file
// lock and is not visible to any other process.
func Open(path string, pageSize int, log logrus.FieldLogger) (*Coordinator, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var p pager.Pager
	var lock writerLock
	memory := path == ":memory:"

	if memory {
		p = pager.NewMemPager(pageSize)
		lock = memLock{}
	} else {
		var err error
		p, err = pager.OpenFile(path, pageSize)
		if err != nil {
			return nil, fmt.Errorf("storage: opening %s: %w", path, err)
		}
		lock = newFileLock(path)
	}

	c := &Coordinator{
		path:      path,
		memory:    memory,
		pager:     p,
		tree:      btree.New(p),
		lock:      lock,
		log:       log.WithField("path", path),
		tables:    make(map[string]*value.Table),
		tableTIDs: make(map[string]uint32),
		tx:        newTransaction(),
	}

	if err := c.loadCatalog(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases the underlying Pager's resources. It does not touch
// the file lock: Close is expected to run outside any held lock.
func (c *Coordinator) Close() error {
	return c.pager.Close()
}

// loadCatalog scans the catalog range and rebuilds the in-memory table
// map, run once when a Coordinator is opened against an existing file.
func (c *Coordinator) loadCatalog() error {
	it := c.tree.NewRangeIterator(catalogScanStart(), catalogScanEnd())
	snapshot := c.pager.PeekTxID()
	for {
		obj, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("storage: scanning catalog: %w", err)
		}
		if !ok {
			return nil
		}
		if !visible(obj, snapshot) {
			continue
		}
		table, err := value.DecodeTable(obj.Value)
		if err != nil {
			return fmt.Errorf("storage: decoding catalog entry: %w", err)
		}
		folded := value.FoldName(table.Name)
		c.tables[folded] = table
		c.tableTIDs[folded] = obj.Tid
	}
}

// Status reports the connection's current transaction state.
func (c *Coordinator) Status() TxStatus { return c.tx.Status() }

// Begin starts an explicit transaction, holding the exclusive writer
// lock until Commit or Rollback ends it.
func (c *Coordinator) Begin() error {
	if err := c.tx.begin(0); err != nil {
		return err
	}
	token, err := c.lock.Lock()
	if err != nil {
		c.tx.reset()
		return fmt.Errorf("storage: acquiring writer lock: %w", err)
	}
	tid := c.pager.AllocateTxID()
	c.tx.tid = tid
	c.log.WithFields(logrus.Fields{"tid": tid, "lock_token": token}).Debug("transaction started")
	return nil
}

// Commit applies the dirty-page cleanup for the active transaction,
// persists the result, releases the writer lock, and returns the
// connection to not_active.
func (c *Coordinator) Commit() error {
	if err := c.tx.endTransition(); err != nil {
		return err
	}
	if c.tx.status == Aborted {
		// A failed transaction can only be terminated by ROLLBACK.
		return sqlerr.New(sqlerr.ErrInFailedTransaction.Code,
			"current transaction is aborted, commands ignored until end of transaction block")
	}
	return c.applyCommit(c.tx)
}

// Rollback undoes the active transaction's writes and returns the
// connection to not_active. Permitted from both active and aborted.
func (c *Coordinator) Rollback() error {
	if err := c.tx.endTransition(); err != nil {
		return err
	}
	return c.applyRollback(c.tx)
}

// applyCommit physically purges every dirty page's expired-by-us
// objects (permanent deletion) per the dirty-page tracking contract,
// then clears the transaction and releases the lock.
func (c *Coordinator) applyCommit(t *Transaction) error {
	for _, n := range t.dirtyPages() {
		if err := c.cleanPage(n, func(o *page.Object) (keep bool, clearXid bool) {
			if o.Xid == t.tid {
				return false, false // permanently expired
			}
			return true, false
		}); err != nil {
			return err
		}
	}
	c.log.WithField("tid", t.tid).Debug("transaction committed")
	return c.endTransaction(t)
}

// applyRollback physically removes every object this transaction
// created (undoing inserts) and un-expires every object it expired
// (undoing deletes/updates), per the dirty-page tracking contract.
func (c *Coordinator) applyRollback(t *Transaction) error {
	for _, n := range t.dirtyPages() {
		if err := c.cleanPage(n, func(o *page.Object) (keep bool, clearXid bool) {
			if o.Tid == t.tid {
				return false, false // undo our own insert
			}
			if o.Xid == t.tid {
				return true, true // undo our own delete
			}
			return true, false
		}); err != nil {
			return err
		}
	}
	c.log.WithField("tid", t.tid).Debug("transaction rolled back")
	return c.endTransaction(t)
}

// cleanPage rewrites page n, dropping or patching objects per decide.
// A page that ends up empty is left in place: the B-tree's own
// Remove/merge machinery owns page reclamation, and dirty-page cleanup
// never deletes structural (non-leaf) entries.
func (c *Coordinator) cleanPage(n int, decide func(*page.Object) (keep, clearXid bool)) error {
	p, err := c.pager.FetchPage(n)
	if err != nil {
		return fmt.Errorf("storage: fetching dirty page %d: %w", n, err)
	}
	if p.Kind() != page.Leaf {
		return nil
	}

	kept := make([]*page.Object, 0, p.Count())
	changed := false
	for _, o := range p.Objects() {
		keep, clearXid := decide(o)
		if !keep {
			changed = true
			continue
		}
		if clearXid && o.Xid != 0 {
			o.Xid = 0
			changed = true
		}
		kept = append(kept, o)
	}
	if !changed {
		return nil
	}
	rewritten := page.FromSortedObjects(page.Leaf, p.Size(), kept)
	if err := c.pager.StorePage(n, rewritten); err != nil {
		return fmt.Errorf("storage: rewriting dirty page %d: %w", n, err)
	}
	return nil
}

func (c *Coordinator) endTransaction(t *Transaction) error {
	wasLocked := t.status != NotActive
	t.reset()
	if wasLocked {
		if err := c.lock.Unlock(); err != nil {
			return fmt.Errorf("storage: releasing writer lock: %w", err)
		}
	}
	return nil
}

// writerTx runs fn under a transaction id: the connection's explicit
// transaction if one is active, or a fresh implicit one that is
// committed (or rolled back, on error) immediately around fn. Every
// page fn's btree calls touch is recorded against that transaction's
// dirty set via the shared BTree's OnDirty hook.
func (c *Coordinator) writerTx(fn func(tid uint32) error) error {
	if err := c.tx.requireActive(); err != nil {
		return err
	}

	if c.tx.status == Active {
		c.tree.OnDirty = c.tx.markDirty
		if err := fn(c.tx.tid); err != nil {
			c.tx.fail()
			return err
		}
		return nil
	}

	if _, err := c.lock.Lock(); err != nil {
		return fmt.Errorf("storage: acquiring writer lock: %w", err)
	}
	implicit := newTransaction()
	tid := c.pager.AllocateTxID()
	implicit.status = Active
	implicit.tid = tid
	c.tree.OnDirty = implicit.markDirty

	if err := fn(tid); err != nil {
		_ = c.applyRollback(implicit)
		return err
	}
	return c.applyCommit(implicit)
}

// guard marks the active transaction aborted when a statement fails,
// per the active/statement-error -> aborted transition (a no-op when
// no transaction is active), and reports the page layer's third-
// version conflict as serialization_failure (40001). A nil err passes
// through unchanged.
func (c *Coordinator) guard(err error) error {
	if err != nil {
		c.tx.fail()
	}
	if err == page.ErrSerializationFailure {
		return sqlerr.Wrap(sqlerr.ErrSerializationFailure.Code,
			"could not serialize access due to concurrent update", err)
	}
	return err
}

// readerSnapshot returns the transaction id a read should use as its
// MVCC snapshot: the connection's own in-flight transaction id, or,
// for an autocommit read, the next unused id taken non-destructively
// so the read sees everything committed so far without claiming an id
// of its own.
func (c *Coordinator) readerSnapshot() uint32 {
	if c.tx.status == Active {
		return c.tx.tid
	}
	return c.pager.PeekTxID()
}
