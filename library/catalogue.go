package library

// Identifiable is implemented by every entity a Catalogue can hold.
type Identifiable interface {
	ID() int
}

// Catalogue is a keyed store of entities. Entities are never removed.
type Catalogue[T Identifiable] struct {
	items map[int]T
}

func NewCatalogue[T Identifiable]() *Catalogue[T] {
	return &Catalogue[T]{items: make(map[int]T)}
}

// Add inserts item under its own id. It reports false and leaves the
// catalogue untouched when the id is already taken.
func (c *Catalogue[T]) Add(item T) bool {
	id := item.ID()
	if _, ok := c.items[id]; ok {
		return false
	}
	c.items[id] = item
	return true
}

func (c *Catalogue[T]) Get(id int) (T, bool) {
	item, ok := c.items[id]
	return item, ok
}

func (c *Catalogue[T]) Has(id int) bool {
	_, ok := c.items[id]
	return ok
}

// Keys returns every id in the catalogue in no particular order.
func (c *Catalogue[T]) Keys() []int {
	keys := make([]int, 0, len(c.items))
	for id := range c.items {
		keys = append(keys, id)
	}
	return keys
}

func (c *Catalogue[T]) Len() int { return len(c.items) }
