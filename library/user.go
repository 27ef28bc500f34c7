package library

import (
	"slices"
	"sort"
)

// User is an enrolled borrower. Held material ids keep insertion order.
type User struct {
	id           int
	organization string
	held         []int
}

func (u *User) ID() int              { return u.id }
func (u *User) Organization() string { return u.organization }
func (u *User) HeldCount() int       { return len(u.held) }

// Held returns a copy of the held material ids in checkout order.
func (u *User) Held() []int { return slices.Clone(u.held) }

func (u *User) Holds(materialID int) bool {
	return slices.Contains(u.held, materialID)
}

// UserCatalogue enrolls users and enforces the per-user checkout limit.
type UserCatalogue struct {
	items       *Catalogue[*User]
	maxCheckout int
}

func NewUserCatalogue(maxCheckout int) *UserCatalogue {
	return &UserCatalogue{
		items:       NewCatalogue[*User](),
		maxCheckout: maxCheckout,
	}
}

func (c *UserCatalogue) MaxCheckout() int { return c.maxCheckout }

// Enroll registers a user under an organization name. It fails if the id is
// already enrolled.
func (c *UserCatalogue) Enroll(id int, organizationName string) bool {
	return c.items.Add(&User{id: id, organization: organizationName})
}

func (c *UserCatalogue) Get(id int) (*User, bool) {
	return c.items.Get(id)
}

// CanCheckout reports whether the user holds fewer items than the limit.
func (c *UserCatalogue) CanCheckout(id int) bool {
	u, ok := c.items.Get(id)
	return ok && len(u.held) < c.maxCheckout
}

// AddHeld appends materialID to the user's held list. It refuses duplicates
// and anything that would break the checkout limit.
func (c *UserCatalogue) AddHeld(id, materialID int) bool {
	u, ok := c.items.Get(id)
	if !ok || len(u.held) >= c.maxCheckout || u.Holds(materialID) {
		return false
	}
	u.held = append(u.held, materialID)
	return true
}

// RemoveHeld drops materialID from the user's held list, keeping the order
// of the rest. It reports false when the material was not held.
func (c *UserCatalogue) RemoveHeld(id, materialID int) bool {
	u, ok := c.items.Get(id)
	if !ok {
		return false
	}
	i := slices.Index(u.held, materialID)
	if i < 0 {
		return false
	}
	u.held = slices.Delete(u.held, i, i+1)
	return true
}

// HeldIDs returns the held material ids in insertion order; nil for unknown users.
func (c *UserCatalogue) HeldIDs(id int) []int {
	u, ok := c.items.Get(id)
	if !ok {
		return nil
	}
	return u.Held()
}

// IDs returns all user ids in ascending order.
func (c *UserCatalogue) IDs() []int {
	ids := c.items.Keys()
	sort.Ints(ids)
	return ids
}
