package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	km.lock("a")
	km.lock("b")
	assert.Len(t, km.entries, 2)

	km.unlock("a")
	km.unlock("b")
	assert.Empty(t, km.entries, "released keys must not stay in the map")
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	var active, maxActive int
	var mu sync.Mutex

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.lock("shared")
			defer km.unlock("shared")

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxActive, "only one holder per key at a time")
	assert.Empty(t, km.entries)
}
