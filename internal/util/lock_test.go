package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("serializes holders of the same key", func(t *testing.T) {
		var km KeyedMutex
		counters := map[string]*int{"a": new(int), "b": new(int)}

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			for _, key := range []string{"a", "b"} {
				wg.Add(1)
				go func(key string) {
					defer wg.Done()
					unlock := km.Lock(key)
					defer unlock()
					*counters[key]++
				}(key)
			}
		}
		wg.Wait()

		assert.Equal(t, 50, *counters["a"])
		assert.Equal(t, 50, *counters["b"])
	})

	t.Run("entries are released with their last holder", func(t *testing.T) {
		var km KeyedMutex

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := km.Lock("shared")
				unlock()
			}()
		}
		wg.Wait()

		km.mu.Lock()
		defer km.mu.Unlock()
		assert.Empty(t, km.locks)
	})
}
