package search

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/psearch/internal/store"
)

// DefaultCacheSize is the number of posting lists an Executor keeps in memory.
const DefaultCacheSize = 4096

type postingKey struct {
	field store.Field
	term  string
}

// postingCache memoizes posting lists of one generation. Cached lists are
// shared between queries and must not be modified.
type postingCache struct {
	reader *store.Reader
	lru    *lru.Cache[postingKey, []store.Posting]
}

func newPostingCache(reader *store.Reader, size int) (*postingCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[postingKey, []store.Posting](size)
	if err != nil {
		return nil, err
	}
	return &postingCache{reader: reader, lru: cache}, nil
}

func (c *postingCache) get(ctx context.Context, field store.Field, term string) ([]store.Posting, error) {
	key := postingKey{field: field, term: term}
	if postings, ok := c.lru.Get(key); ok {
		return postings, nil
	}
	postings, err := c.reader.Postings(ctx, field, term)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, postings)
	return postings, nil
}

// Len returns the number of cached posting lists.
func (c *postingCache) Len() int {
	return c.lru.Len()
}
