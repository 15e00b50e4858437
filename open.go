// Package coredb is an embeddable SQL database engine: a paged B-tree
// storage core with MVCC transactions underneath a small direct-AST-
// walking SQL executor. Open a Connection against a file path or
// ":memory:" and issue statements through Query/Exec/Prepare.
package coredb

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/coredb/coredb/internal/exec"
	"github.com/coredb/coredb/internal/storage"
)

// defaultPageSize is used when Options.PageSize is zero.
const defaultPageSize = 4096

// Options configures a Connection. The zero value is valid: a default
// page size and no shared query cache.
type Options struct {
	// QueryCache, if set, is consulted and populated by Prepare and
	// Query instead of parsing every statement from scratch. Share one
	// QueryCache across every Open call against the same path so
	// repeated statement text (a REPL, a connection pool) benefits
	// from the cache regardless of which Connection issued it first.
	QueryCache *QueryCache

	// PageSize sets the B-tree's page size for a newly created
	// in-memory database. It is ignored for file-backed databases,
	// whose page size is fixed at file creation and read back from
	// the file itself on every subsequent Open.
	PageSize int

	// Log receives the engine's structured log output. A discarding
	// logger is used when nil.
	Log logrus.FieldLogger
}

// Connection is a session against one database. It is not safe for
// concurrent use by multiple goroutines: internal/storage.Coordinator,
// which Connection wraps, holds per-connection transaction state with
// no locking of its own, matching spec.md's single-goroutine-per-
// connection concurrency model.
type Connection struct {
	id       string
	coord    *storage.Coordinator
	executor *exec.Executor
	cache    *QueryCache
	log      logrus.FieldLogger
}

// Open opens (creating if necessary) the database at path. path may be
// ":memory:" for a purely in-memory database, visible only to this
// Connection.
func Open(path string, opts Options) (*Connection, error) {
	pageSize := opts.PageSize
	if pageSize == 0 || path != ":memory:" {
		pageSize = defaultPageSize
	}
	log := opts.Log
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(discardWriter{})
		log = discard
	}

	connID := uuid.New().String()
	connLog := log.WithField("conn_id", connID)

	coord, err := storage.Open(path, pageSize, connLog)
	if err != nil {
		return nil, fmt.Errorf("coredb: opening %s: %w", path, err)
	}

	return &Connection{
		id:       connID,
		coord:    coord,
		executor: exec.New(coord),
		cache:    opts.QueryCache,
		log:      connLog,
	}, nil
}

// Close releases the Connection's resources. It does not end an
// in-flight transaction; callers must Commit or Rollback first.
func (c *Connection) Close() error {
	return c.coord.Close()
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
