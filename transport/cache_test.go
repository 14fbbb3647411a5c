package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pumped-fn/pumped-gql/types"
)

func TestResultCache(t *testing.T) {
	cache := NewResultCache()

	_, ok := cache.Load("a")
	assert.False(t, ok)

	cache.Store("a", types.OperationResult{Data: json.RawMessage(`1`)})
	cache.Store("b", types.OperationResult{Data: json.RawMessage(`2`)})
	assert.Equal(t, 2, cache.Size())

	r, ok := cache.Load("a")
	assert.True(t, ok)
	assert.Equal(t, json.RawMessage(`1`), r.Data)

	keys := map[string]bool{}
	cache.Range(func(key string, _ types.OperationResult) bool {
		keys[key] = true
		return true
	})
	assert.Equal(t, map[string]bool{"a": true, "b": true}, keys)

	cache.Delete("a")
	assert.Equal(t, 1, cache.Size())

	cache.Clear()
	assert.Zero(t, cache.Size())
}
