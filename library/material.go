package library

import (
	"sort"
	"time"
)

// Material is a single stocked item. It is available exactly when it carries
// no checkout timestamp.
type Material struct {
	id           int
	kind         MaterialType
	checkedOutAt time.Time
	checkedOut   bool
}

func (m *Material) ID() int            { return m.id }
func (m *Material) Type() MaterialType { return m.kind }
func (m *Material) Available() bool    { return !m.checkedOut }

// CheckedOutAt returns the checkout timestamp, if any.
func (m *Material) CheckedOutAt() (time.Time, bool) {
	return m.checkedOutAt, m.checkedOut
}

func (m *Material) daysCheckedOut(now time.Time) int {
	if !m.checkedOut {
		return -1
	}
	return elapsedDays(m.checkedOutAt, now)
}

func (m *Material) overdue(now time.Time) bool {
	return m.checkedOut && m.daysCheckedOut(now) > m.kind.OverdueThresholdDays()
}

func (m *Material) overdueCost(now time.Time) int {
	if !m.checkedOut {
		return 0
	}
	late := m.daysCheckedOut(now) - m.kind.OverdueThresholdDays()
	if late <= 0 {
		return 0
	}
	return late * m.kind.DailyFineRate
}

// MaterialCatalogue stocks materials and tracks their checkout status.
// Type names are resolved against the registry at stocking time.
type MaterialCatalogue struct {
	items *Catalogue[*Material]
	types *TypeRegistry
	now   Clock
}

func NewMaterialCatalogue(types *TypeRegistry, now Clock) *MaterialCatalogue {
	if now == nil {
		now = time.Now
	}
	return &MaterialCatalogue{
		items: NewCatalogue[*Material](),
		types: types,
		now:   now,
	}
}

// Stock adds an available material of the named type. It fails when the id
// is taken or the type is not registered.
func (c *MaterialCatalogue) Stock(id int, typeName string) bool {
	if c.items.Has(id) {
		return false
	}
	kind, ok := c.types.Lookup(typeName)
	if !ok {
		return false
	}
	return c.items.Add(&Material{id: id, kind: kind})
}

func (c *MaterialCatalogue) Get(id int) (*Material, bool) {
	return c.items.Get(id)
}

func (c *MaterialCatalogue) IsAvailable(id int) bool {
	m, ok := c.items.Get(id)
	return ok && m.Available()
}

// IsOverdue reports whether the material has been out longer than its type's
// threshold. Missing or available materials are never overdue.
func (c *MaterialCatalogue) IsOverdue(id int) bool {
	m, ok := c.items.Get(id)
	return ok && m.overdue(c.now())
}

// Checkout stamps the material as checked out now. Eligibility is the
// caller's concern; only a missing id makes it fail.
func (c *MaterialCatalogue) Checkout(id int) bool {
	m, ok := c.items.Get(id)
	if !ok {
		return false
	}
	m.checkedOutAt = c.now()
	m.checkedOut = true
	return true
}

// Return makes the material available again and yields the overdue cost
// accumulated while it was out.
func (c *MaterialCatalogue) Return(id int) int {
	m, ok := c.items.Get(id)
	if !ok {
		return 0
	}
	cost := m.overdueCost(c.now())
	m.checkedOutAt = time.Time{}
	m.checkedOut = false
	return cost
}

// OverdueCost is what Return would charge if the material came back now.
func (c *MaterialCatalogue) OverdueCost(id int) int {
	m, ok := c.items.Get(id)
	if !ok {
		return 0
	}
	return m.overdueCost(c.now())
}

// DaysCheckedOut returns whole days since checkout, or -1 when the material
// is available or unknown.
func (c *MaterialCatalogue) DaysCheckedOut(id int) int {
	m, ok := c.items.Get(id)
	if !ok {
		return -1
	}
	return m.daysCheckedOut(c.now())
}

// ValidateCheckoutEligibility requires the material to be available and none
// of heldIDs to be overdue. Any late item blocks, whatever its own margin.
func (c *MaterialCatalogue) ValidateCheckoutEligibility(id int, heldIDs []int) bool {
	if !c.IsAvailable(id) {
		return false
	}
	for _, held := range heldIDs {
		if c.IsOverdue(held) {
			return false
		}
	}
	return true
}

// IDs returns all material ids in ascending order.
func (c *MaterialCatalogue) IDs() []int {
	ids := c.items.Keys()
	sort.Ints(ids)
	return ids
}
