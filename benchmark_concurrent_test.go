package cachemap_test

import (
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/arc/v2"
	"github.com/vearutop/cachemap"
)

func Benchmark_concurrentRead(b *testing.B) {
	for _, cardinality := range []int{1e4} {
		for _, numRoutines := range []int{1, runtime.GOMAXPROCS(0)} {
			for _, loader := range []cacheLoader{
				tieredCache{},
				tieredCache{lru: true},
				arcCache{},
			} {
				b.Run(fmt.Sprintf("%d:%d:%s", cardinality, numRoutines, loader), func(b *testing.B) {
					before := heapInUse()

					c := loader.make(b, cardinality)

					b.ReportAllocs()
					b.ResetTimer()

					wg := sync.WaitGroup{}
					wg.Add(numRoutines)

					for r := 0; r < numRoutines; r++ {
						cnt := b.N / numRoutines
						if r == 0 {
							cnt = b.N - cnt*(numRoutines-1)
						}

						go func() {
							c.run(b, cnt)
							wg.Done()
						}()
					}

					wg.Wait()
					b.StopTimer()
					b.ReportMetric(float64(heapInUse()-before)/(1024*1024), "MB/inuse")
				})
			}
		}
	}
}

// smallCachedValue represents a small value for a cached item.
type smallCachedValue struct {
	b bool
	s string
	i int
}

func makeCachedValue(i int) smallCachedValue {
	return smallCachedValue{
		i: i,
		s: longString + strconv.Itoa(i),
		b: true,
	}
}

const (
	longString = "looooooooooooooooooooooooooongstring"
	keyPrefix  = "thekey"
)

type cacheLoader interface {
	make(b *testing.B, cardinality int) cacheLoader
	run(b *testing.B, cnt int)
}

type tieredCache struct {
	lru         bool
	c           *cachemap.Cache[string, smallCachedValue]
	cardinality int
}

func (tc tieredCache) String() string {
	return "tiered:lru=" + strconv.FormatBool(tc.lru)
}

func (tc tieredCache) make(b *testing.B, cardinality int) cacheLoader {
	b.Helper()

	c, err := cachemap.New[string, smallCachedValue](cachemap.Config{
		LRU:        tc.lru,
		MaxSize:    cardinality / 2,
		SoftSize:   cachemap.SoftUnbounded,
		SoftTTL:    -1,
		LoadFactor: cachemap.DefaultLoadFactor,
	})
	if err != nil {
		b.Fatal(err)
	}

	b.Cleanup(c.Close)

	for i := 0; i < cardinality; i++ {
		c.Put(keyPrefix+strconv.Itoa(i), makeCachedValue(i))
	}

	return tieredCache{
		lru:         tc.lru,
		c:           c,
		cardinality: cardinality,
	}
}

func (tc tieredCache) run(b *testing.B, cnt int) {
	b.Helper()

	for i := 0; i < cnt; i++ {
		i := (i ^ 12345) % tc.cardinality

		v, found := tc.c.Get(keyPrefix + strconv.Itoa(i))

		if !found || v.i != i {
			b.Fail()
		}
	}
}

type arcCache struct {
	c           *arc.ARCCache[string, smallCachedValue]
	cardinality int
}

func (ac arcCache) String() string {
	return "arc"
}

func (ac arcCache) make(b *testing.B, cardinality int) cacheLoader {
	b.Helper()

	c, err := arc.NewARC[string, smallCachedValue](cardinality)
	if err != nil {
		b.Fatal(err)
	}

	for i := 0; i < cardinality; i++ {
		c.Add(keyPrefix+strconv.Itoa(i), makeCachedValue(i))
	}

	return arcCache{
		c:           c,
		cardinality: cardinality,
	}
}

func (ac arcCache) run(b *testing.B, cnt int) {
	b.Helper()

	for i := 0; i < cnt; i++ {
		i := (i ^ 12345) % ac.cardinality

		v, found := ac.c.Get(keyPrefix + strconv.Itoa(i))

		if !found || v.i != i {
			b.Fail()
		}
	}
}

func heapInUse() uint64 {
	var (
		m         = runtime.MemStats{}
		prevInUse uint64
	)

	for {
		runtime.ReadMemStats(&m)

		if math.Abs(float64(m.HeapInuse-prevInUse)) < 1*1024 {
			break
		}

		prevInUse = m.HeapInuse

		time.Sleep(50 * time.Millisecond)
		runtime.GC()
		debug.FreeOSMemory()
	}

	return m.HeapInuse
}
