package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Title string
}

func TestStoreAndRetrieve(t *testing.T) {
	c := New[testRecord]()
	c.Store("some-id", testRecord{Title: "first"})
	got, ok := c.Lookup("some-id")
	require.True(t, ok)
	require.Equal(t, "first", got.Title)

	_, ok = c.Lookup("other-id")
	require.False(t, ok)
}

func TestStoreAndRemove(t *testing.T) {
	c := New[testRecord]()
	c.Store("some-id", testRecord{Title: "first"})
	c.Remove("some-id")
	_, ok := c.Lookup("some-id")
	require.False(t, ok)
	// removing a missing key is a no-op
	c.Remove("some-id")
}

func TestStoreIfAbsentOnlyOnce(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if c.StoreIfAbsent("k", i) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestUpdate(t *testing.T) {
	c := New[testRecord]()
	_, ok := c.Update("missing", func(r testRecord) testRecord { return r })
	require.False(t, ok)

	c.Store("id", testRecord{Title: "a"})
	got, ok := c.Update("id", func(r testRecord) testRecord {
		r.Title += "b"
		return r
	})
	require.True(t, ok)
	require.Equal(t, "ab", got.Title)
	stored, _ := c.Lookup("id")
	require.Equal(t, "ab", stored.Title)
}
