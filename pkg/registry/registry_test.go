package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/deliverus/deliverus-schema/pkg/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUnit struct {
	version string
	name    string
}

func (u stubUnit) Version() string { return u.version }
func (u stubUnit) Name() string    { return u.name }

func (u stubUnit) Apply(context.Context, migration.SchemaHandle) error  { return nil }
func (u stubUnit) Revert(context.Context, migration.SchemaHandle) error { return nil }

func TestRegistry_Register(t *testing.T) {
	t.Run("register new unit", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(stubUnit{"20210629195916", "create-restaurant"}))
		assert.True(t, r.Has("20210629195916"))
		assert.Equal(t, 1, r.Len())
	})

	t.Run("duplicate version rejected", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(stubUnit{"20210629195916", "create-restaurant"}))

		err := r.Register(stubUnit{"20210629195916", "other"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create-restaurant")
		assert.Equal(t, 1, r.Len())
	})

	t.Run("nil unit", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(nil))
	})

	t.Run("empty version", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(stubUnit{"", "nameless"}))
	})
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(stubUnit{"1", "a"})
	assert.Panics(t, func() { r.MustRegister(stubUnit{"1", "b"}) })
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(stubUnit{"20210629195916", "create-restaurant"})

	unit, err := r.Get("20210629195916")
	require.NoError(t, err)
	assert.Equal(t, "create-restaurant", unit.Name())

	_, err = r.Get("19990101000000")
	assert.Error(t, err)
}

func TestRegistry_AllSorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(stubUnit{"20210701000000", "c"})
	r.MustRegister(stubUnit{"20210629195916", "a"})
	r.MustRegister(stubUnit{"20210630000000", "b"})

	var names []string
	for _, unit := range r.All() {
		names = append(names, unit.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(stubUnit{"1", "a"})
	r.Clear()

	assert.False(t, r.Has("1"))
	assert.Empty(t, r.All())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(stubUnit{fmt.Sprintf("%014d", i), fmt.Sprintf("unit-%d", i)})
		}(i)
		go func() {
			defer wg.Done()
			_ = r.All()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, r.Len())
}
