package storage

import "github.com/coredb/coredb/internal/sqlerr"

// TxStatus is a connection's position in the transaction state
// machine described by the coordinator: not_active, active, or
// aborted.
type TxStatus int

const (
	// NotActive is the default state: every statement runs as its own
	// implicit (autocommit) transaction.
	NotActive TxStatus = iota
	// Active means a START TRANSACTION has been issued and not yet
	// terminated by COMMIT or ROLLBACK.
	Active
	// Aborted means a statement inside an active transaction failed;
	// every statement except ROLLBACK is rejected until the
	// transaction ends.
	Aborted
)

func (s TxStatus) String() string {
	switch s {
	case NotActive:
		return "not_active"
	case Active:
		return "active"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Transaction tracks one connection's current transaction: its state,
// the transaction id it claimed on entering Active (0 when
// not_active), and the set of page numbers its writes have touched,
// used to apply commit/rollback cleanup per the dirty-page tracking
// contract.
type Transaction struct {
	status TxStatus
	tid    uint32
	dirty  map[int]bool
}

func newTransaction() *Transaction {
	return &Transaction{status: NotActive, dirty: make(map[int]bool)}
}

// Status reports the transaction's current state.
func (t *Transaction) Status() TxStatus { return t.status }

// TID returns the transaction id claimed for the active transaction,
// or 0 if not_active.
func (t *Transaction) TID() uint32 { return t.tid }

// markDirty records that a writer operating under this transaction
// touched page n.
func (t *Transaction) markDirty(n int) { t.dirty[n] = true }

// begin transitions not_active -> active, claiming tid.
func (t *Transaction) begin(tid uint32) error {
	switch t.status {
	case NotActive:
		t.status = Active
		t.tid = tid
		return nil
	case Active:
		return sqlerr.New(sqlerr.ErrActiveTransaction.Code, "a transaction is already in progress")
	default: // Aborted
		return sqlerr.New(sqlerr.ErrInFailedTransaction.Code,
			"current transaction is aborted, commands ignored until end of transaction block")
	}
}

// requireActive checks a statement is permitted to run, per the
// not_active/active/aborted transition table: not_active statements
// run as their own implicit transaction (always permitted), active
// statements are permitted, aborted statements are rejected.
func (t *Transaction) requireActive() error {
	if t.status == Aborted {
		return sqlerr.New(sqlerr.ErrInFailedTransaction.Code,
			"current transaction is aborted, commands ignored until end of transaction block")
	}
	return nil
}

// fail transitions active -> aborted after a statement error. It is a
// no-op outside an active transaction (an implicit-transaction
// statement failing does not change connection state).
func (t *Transaction) fail() {
	if t.status == Active {
		t.status = Aborted
	}
}

// endTransition validates a COMMIT or ROLLBACK against the current
// state, returning invalid_transaction_termination when issued
// outside a transaction.
func (t *Transaction) endTransition() error {
	if t.status == NotActive {
		return sqlerr.New(sqlerr.ErrInvalidTransactionTermination.Code, "no transaction is active")
	}
	return nil
}

// reset clears the transaction back to not_active, dropping the
// dirty-page set. Called after commit and rollback cleanup has run.
func (t *Transaction) reset() {
	t.status = NotActive
	t.tid = 0
	t.dirty = make(map[int]bool)
}

// dirtyPages returns the page numbers touched since the transaction
// began.
func (t *Transaction) dirtyPages() []int {
	pages := make([]int, 0, len(t.dirty))
	for n := range t.dirty {
		pages = append(pages, n)
	}
	return pages
}
