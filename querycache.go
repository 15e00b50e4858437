package coredb

import (
	"strings"
	"sync"

	radix "github.com/armon/go-radix"

	"github.com/coredb/coredb/internal/sqlfront"
)

// QueryCache maps normalized SQL text to its parsed statement, shared
// across every Connection opened against the same path (Options.QueryCache
// passed to Open). A radix tree shares prefix storage across statements
// that differ only in trailing literals, the common shape of repeated
// parameterized-looking INSERT/SELECT text a REPL or application issues
// in a loop.
type QueryCache struct {
	mu   sync.Mutex
	tree *radix.Tree
}

// NewQueryCache returns an empty cache ready to share across Connections.
func NewQueryCache() *QueryCache {
	return &QueryCache{tree: radix.New()}
}

func normalize(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// lookup returns the cached parse of sql, parsing and storing it on a
// miss. Parse errors are never cached: a caller who fixes a typo and
// retries the same statement shouldn't have to clear the cache first.
func (c *QueryCache) lookup(sql string) (sqlfront.Statement, error) {
	key := normalize(sql)

	c.mu.Lock()
	if cached, ok := c.tree.Get(key); ok {
		c.mu.Unlock()
		return cached.(sqlfront.Statement), nil
	}
	c.mu.Unlock()

	stmt, err := sqlfront.Parse(sql)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tree.Insert(key, stmt)
	c.mu.Unlock()
	return stmt, nil
}
