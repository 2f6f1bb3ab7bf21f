package cachemap_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/arc/v2"
	pca "github.com/patrickmn/go-cache"
	"github.com/vearutop/cachemap"
)

func Benchmark_Cache(b *testing.B) {
	for _, lru := range []bool{false, true} {
		b.Run("lru:"+strconv.FormatBool(lru), func(b *testing.B) {
			c, err := cachemap.New[string, int](cachemap.Config{
				LRU:        lru,
				MaxSize:    10000,
				LoadFactor: cachemap.DefaultLoadFactor,
			})
			if err != nil {
				b.Fatal(err)
			}
			defer c.Close()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				k := "oneone" + strconv.Itoa(i%10000)

				if i < 10000 {
					c.Put(k, 123)
				}

				_, _ = c.Get(k)
			}
		})
	}
}

// Benchmark_Cache_overflow reads keys that are mostly found in overflow tier.
func Benchmark_Cache_overflow(b *testing.B) {
	c, err := cachemap.New[string, int](cachemap.Config{
		LRU:        true,
		MaxSize:    1000,
		SoftSize:   cachemap.SoftUnbounded,
		LoadFactor: cachemap.DefaultLoadFactor,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		k := "oneone" + strconv.Itoa(i%10000)

		if i < 10000 {
			c.Put(k, 123)
		}

		_, _ = c.Get(k)
	}
}

func Benchmark_Loader(b *testing.B) {
	c, err := cachemap.New[string, int](cachemap.Config{MaxSize: 10000, LoadFactor: cachemap.DefaultLoadFactor})
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	l := cachemap.NewLoader(c, cachemap.LoaderConfig{})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		k := "oneone" + strconv.Itoa(i%10000)
		// nolint
		_, _ = l.Get(ctx, k, func(ctx context.Context) (int, error) {
			return 123, nil
		})
	}
}

func Benchmark_Patrickmn(b *testing.B) {
	c := pca.New(5*time.Minute, 10*time.Minute)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		k := "oneone" + strconv.Itoa(i%10000)

		if i < 10000 {
			c.Set(k, 123, time.Minute)
		}

		_, _ = c.Get(k)
	}
}

func Benchmark_ARC(b *testing.B) {
	c, err := arc.NewARC[string, int](10000)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		k := "oneone" + strconv.Itoa(i%10000)

		if i < 10000 {
			c.Add(k, 123)
		}

		_, _ = c.Get(k)
	}
}
