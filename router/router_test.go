package router_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats/router"
)

// TestRouter_VersionRouting reproduces spec.md §6 example 3: four
// registrations for handler_id=1 resolve requests for versions 0..10 into
// {first, first, second, second, 404, third, third, third, 404, last, last}.
func TestRouter_VersionRouting(t *testing.T) {
	var r router.Router
	r.Register(1, 0, -1, "first")
	r.Register(1, 2, 3, "second")
	r.Register(1, 5, 7, "third")
	r.Register(1, 9, -1, "last")
	r.Build()

	want := []any{"first", "first", "second", "second", nil, "third", "third", "third", nil, "last", "last"}
	for v, expect := range want {
		got, err := r.Lookup(1, uint32(v))
		if expect == nil {
			require.ErrorIs(t, err, router.ErrNotFound, "version %d", v)
			continue
		}
		require.NoError(t, err, "version %d", v)
		require.Equal(t, expect, got, "version %d", v)
	}
}

func TestRouter_UnknownHandlerID(t *testing.T) {
	var r router.Router
	r.Build()
	_, err := r.Lookup(99, 0)
	require.ErrorIs(t, err, router.ErrNotFound)
}
