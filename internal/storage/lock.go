package storage

import (
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// writerLock serializes access to one backing file across both
// processes (via an advisory flock) and goroutines within this
// process (via a mutex shared by every Coordinator opened against the
// same resolved path): a writer takes both, a reader takes only the
// shared flock. ":memory:" databases use a no-op lock, since nothing
// outside the process can see them and a single Coordinator already
// serializes its own callers.
type writerLock interface {
	// Lock acquires exclusive access for a writer, returning a token
	// identifying this lock acquisition for logging.
	Lock() (string, error)
	Unlock() error
	// RLock acquires shared access for a reader.
	RLock() error
	RUnlock() error
}

// processLocks maps a resolved database path to the mutex shared by
// every fileLock opened against it in this process, so two
// Coordinators opened against the same path serialize against each
// other in-process rather than relying solely on flock (which only
// arbitrates across distinct os.File descriptors, not goroutines
// sharing one).
var (
	processLocksMu sync.Mutex
	processLocks   = make(map[string]*sync.Mutex)
)

func processLockFor(path string) *sync.Mutex {
	resolved, err := filepath.Abs(path)
	if err != nil {
		resolved = path
	}

	processLocksMu.Lock()
	defer processLocksMu.Unlock()
	mu, ok := processLocks[resolved]
	if !ok {
		mu = &sync.Mutex{}
		processLocks[resolved] = mu
	}
	return mu
}

// fileLock backs a file-resident database: process-level mutual
// exclusion, shared by resolved path across every Coordinator that
// opens it in this process, plus an advisory flock so other processes
// opening the same path respect it too.
type fileLock struct {
	mu *sync.Mutex
	fl *flock.Flock
}

func newFileLock(path string) *fileLock {
	return &fileLock{mu: processLockFor(path), fl: flock.New(path + ".lock")}
}

func (l *fileLock) Lock() (string, error) {
	l.mu.Lock()
	if err := l.fl.Lock(); err != nil {
		l.mu.Unlock()
		return "", err
	}
	return uuid.New().String(), nil
}

func (l *fileLock) Unlock() error {
	defer l.mu.Unlock()
	return l.fl.Unlock()
}

func (l *fileLock) RLock() error {
	return l.fl.RLock()
}

func (l *fileLock) RUnlock() error {
	return l.fl.Unlock()
}

// memLock is the no-op lock used for ":memory:" databases.
type memLock struct{}

func (memLock) Lock() (string, error) { return "", nil }
func (memLock) Unlock() error         { return nil }
func (memLock) RLock() error          { return nil }
func (memLock) RUnlock() error        { return nil }
