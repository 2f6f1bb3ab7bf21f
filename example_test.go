package cachemap_test

import (
	"fmt"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/vearutop/cachemap"
)

func ExampleNew() {
	// Create cache instance.
	c, err := cachemap.New[string, []int](cachemap.Config{
		Name:       "dogs",
		Logger:     &ctxd.LoggerMock{},
		Stats:      &stats.TrackerMock{},
		LRU:        true,
		MaxSize:    2,
		LoadFactor: cachemap.DefaultLoadFactor,

		// Tweak these parameters to reduce/stabilize memory consumption at cost of cache hit rate.
		SoftSize:               100,                // Keep up to 100 evicted entries in overflow tier.
		HeapInUseSoftLimit:     200 * 1024 * 1024, // 200MB soft limit for process heap in use.
		HeapInUseEvictFraction: 0.2,               // Drop 20% of overflow entries on heap overuse.
	})
	if err != nil {
		panic(err)
	}
	defer c.Close()

	c.Put("a", []int{1})
	c.Put("b", []int{2})
	c.Pin("b")
	c.Put("c", []int{3}) // Demotes "a" to overflow tier.

	tier, pinned := c.Locate("a")
	fmt.Println(tier == cachemap.TierOverflow, pinned)

	// Reading overflow entry promotes it back.
	val, _ := c.Get("a")
	fmt.Printf("%v\n", val)

	tier, pinned = c.Locate("b")
	fmt.Println(tier == cachemap.TierPrimary, pinned)

	// Output:
	// true false
	// [1]
	// true true
}
