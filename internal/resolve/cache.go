package resolve

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes resolver answers by content key for the duration of one
// run. It is owned by the pipeline instance, never ambient: Reset drops
// everything between runs.
type Cache struct {
	entries *lru.Cache[string, Fields]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, Fields](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(key string) (Fields, bool) {
	return c.entries.Get(key)
}

func (c *Cache) Add(key string, f Fields) {
	c.entries.Add(key, f)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) Reset() {
	c.entries.Purge()
}
