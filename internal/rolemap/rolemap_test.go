package rolemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() RoleMap {
	lo, hi := 0.0, 10.0
	return New([]Column{
		{DisplayName: "lat", Roles: []string{Latitude}},
		{DisplayName: "lon", Roles: []string{Longitude}},
		{DisplayName: "pop", Roles: []string{Color, Tooltips}, Aggregates: &Aggregates{Min: &lo, Max: &hi}, Format: "0,0"},
		{DisplayName: "kind", Roles: []string{Color, Tooltips}},
		{DisplayName: "area", Roles: []string{Size}},
	})
}

func TestRoleMap_Accessors(t *testing.T) {
	rm := sample()

	assert.Equal(t, "lat", rm.Latitude())
	assert.Equal(t, "lon", rm.Longitude())
	assert.Equal(t, "area", rm.Size())

	pop, ok := rm.Color(0)
	require.True(t, ok)
	assert.Equal(t, "pop", pop.DisplayName)
	assert.True(t, pop.Continuous())

	kind, ok := rm.Get(Color, 1)
	require.True(t, ok)
	assert.False(t, kind.Continuous())

	_, ok = rm.Get(Color, 2)
	assert.False(t, ok)
	_, ok = rm.Get(Color, -1)
	assert.False(t, ok)

	assert.Len(t, rm.GetAll(Color), 2)
	assert.Equal(t, []string{"pop", "kind"}, []string{rm.Tooltips()[0].DisplayName, rm.Tooltips()[1].DisplayName})
	assert.Equal(t, "0,0", rm.Format("pop"))
	assert.Equal(t, "", rm.Format("missing"))
	assert.True(t, rm.Has(Size))
	assert.Len(t, rm.Columns(), 5)
}

func TestRoleMap_ZeroValue(t *testing.T) {
	var rm RoleMap
	assert.Equal(t, "", rm.Latitude())
	assert.Empty(t, rm.GetAll(Color))
	assert.False(t, rm.Has(Color))
	_, ok := rm.Color(0)
	assert.False(t, ok)
}
