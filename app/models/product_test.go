package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductStockCount(t *testing.T) {
	p := &Product{DigitalContent: StringList{"a", "b", "c"}}
	assert.Equal(t, 3, p.StockCount())
	assert.True(t, p.HasStock(3))
	assert.False(t, p.HasStock(4))
	assert.False(t, p.HasStock(0))
}

func TestStringListScan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["x","y"]`)))
	assert.Equal(t, StringList{"x", "y"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Empty(t, l)

	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
