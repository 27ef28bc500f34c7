package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type widget struct {
	id   int
	name string
}

func (w widget) ID() int { return w.id }

func TestCatalogueAddRejectsDuplicateID(t *testing.T) {
	c := NewCatalogue[widget]()

	assert.True(t, c.Add(widget{id: 1, name: "first"}))
	assert.False(t, c.Add(widget{id: 1, name: "second"}))

	got, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "first", got.name, "existing entity must not be replaced")
	assert.Equal(t, 1, c.Len())
}

func TestCatalogueGetMissing(t *testing.T) {
	c := NewCatalogue[widget]()

	_, ok := c.Get(42)
	assert.False(t, ok)
	assert.False(t, c.Has(42))
}

func TestCatalogueKeys(t *testing.T) {
	c := NewCatalogue[widget]()
	for _, id := range []int{3, 1, 2} {
		c.Add(widget{id: id})
	}

	assert.ElementsMatch(t, []int{1, 2, 3}, c.Keys())
}
