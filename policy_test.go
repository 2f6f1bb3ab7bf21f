package cachemap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vearutop/cachemap"
)

func TestRecency_Victim(t *testing.T) {
	p := cachemap.NewRecency[string](3)
	p.Admitted("a")
	p.Admitted("b")
	p.Admitted("c")

	k, ok := p.Victim(nil)
	assert.True(t, ok)
	assert.Equal(t, "a", k)

	p.Accessed("a")

	k, _ = p.Victim(nil)
	assert.Equal(t, "b", k)

	p.Updated("b")

	k, _ = p.Victim(nil)
	assert.Equal(t, "c", k)

	k, _ = p.Victim(func(key string) bool { return key == "c" })
	assert.Equal(t, "a", k)

	_, ok = p.Victim(func(string) bool { return true })
	assert.False(t, ok)

	p.Removed("c")
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []string{"a", "b"}, p.Keys())

	p.Reset()
	assert.Equal(t, 0, p.Len())

	_, ok = p.Victim(nil)
	assert.False(t, ok)
}

func TestInsertion_Victim(t *testing.T) {
	p := cachemap.NewInsertion[int](0)
	p.Admitted(1)
	p.Admitted(2)
	p.Admitted(3)
	p.Admitted(1)

	p.Accessed(1)
	p.Updated(1)

	k, ok := p.Victim(nil)
	assert.True(t, ok)
	assert.Equal(t, 1, k)

	k, _ = p.Victim(func(key int) bool { return key < 3 })
	assert.Equal(t, 3, k)

	p.Removed(1)

	k, _ = p.Victim(nil)
	assert.Equal(t, 2, k)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []int{2, 3}, p.Keys())
}
