package transport

import (
	"sync"

	"github.com/pumped-fn/pumped-gql/types"
)

// ResultCache stores the last successful result per result key, see
// Client.ResultKey.
type ResultCache struct {
	data sync.Map
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{}
}

func (c *ResultCache) Load(key string) (types.OperationResult, bool) {
	value, ok := c.data.Load(key)
	if !ok {
		return types.OperationResult{}, false
	}
	return value.(types.OperationResult), true
}

func (c *ResultCache) Store(key string, value types.OperationResult) {
	c.data.Store(key, value)
}

func (c *ResultCache) Delete(key string) {
	c.data.Delete(key)
}

func (c *ResultCache) Range(fn func(key string, value types.OperationResult) bool) {
	c.data.Range(func(key, value any) bool {
		return fn(key.(string), value.(types.OperationResult))
	})
}

func (c *ResultCache) Size() int {
	count := 0
	c.data.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

func (c *ResultCache) Clear() {
	c.data.Range(func(key, value any) bool {
		c.data.Delete(key)
		return true
	})
}
