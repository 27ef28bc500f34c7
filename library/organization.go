package library

import (
	"sort"
)

// Organization carries the fine balance shared by all of its members.
type Organization struct {
	id          int
	name        string
	fineBalance int
	members     map[int]struct{}
}

func (o *Organization) ID() int          { return o.id }
func (o *Organization) Name() string     { return o.name }
func (o *Organization) FineBalance() int { return o.fineBalance }

func (o *Organization) HasMember(userID int) bool {
	_, ok := o.members[userID]
	return ok
}

// Members returns member user ids in ascending order.
func (o *Organization) Members() []int {
	ids := make([]int, 0, len(o.members))
	for id := range o.members {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// OrganizationCatalogue assigns organization ids sequentially and resolves
// organizations by name or by member.
type OrganizationCatalogue struct {
	items    *Catalogue[*Organization]
	byName   map[string]int
	byMember map[int]int
	nextID   int
	maxFine  int
}

func NewOrganizationCatalogue(maxFine int) *OrganizationCatalogue {
	return &OrganizationCatalogue{
		items:    NewCatalogue[*Organization](),
		byName:   make(map[string]int),
		byMember: make(map[int]int),
		maxFine:  maxFine,
	}
}

func (c *OrganizationCatalogue) MaxFine() int { return c.maxFine }

// GetOrCreate returns the named organization, creating it with the next id
// and a zero balance on first use.
func (c *OrganizationCatalogue) GetOrCreate(name string) *Organization {
	if org, ok := c.Find(name); ok {
		return org
	}
	org := &Organization{
		id:      c.nextID,
		name:    name,
		members: make(map[int]struct{}),
	}
	c.nextID++
	c.items.Add(org)
	c.byName[name] = org.id
	return org
}

func (c *OrganizationCatalogue) Find(name string) (*Organization, bool) {
	id, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return c.items.Get(id)
}

// AddMember records userID as a member of the named organization. Membership
// is append-only and a user belongs to at most one organization.
func (c *OrganizationCatalogue) AddMember(name string, userID int) bool {
	org, ok := c.Find(name)
	if !ok {
		return false
	}
	if current, taken := c.byMember[userID]; taken {
		return current == org.id
	}
	org.members[userID] = struct{}{}
	c.byMember[userID] = org.id
	return true
}

// FindByMember resolves the organization a user belongs to.
func (c *OrganizationCatalogue) FindByMember(userID int) (*Organization, bool) {
	id, ok := c.byMember[userID]
	if !ok {
		return nil, false
	}
	return c.items.Get(id)
}

// AccrueFine adds a strictly positive amount to the organization's balance.
func (c *OrganizationCatalogue) AccrueFine(org *Organization, amount int) bool {
	if org == nil || amount <= 0 {
		return false
	}
	org.fineBalance += amount
	return true
}

// PayFine deducts a strictly positive amount no larger than the balance.
func (c *OrganizationCatalogue) PayFine(org *Organization, amount int) bool {
	if org == nil || amount <= 0 || amount > org.fineBalance {
		return false
	}
	org.fineBalance -= amount
	return true
}

// MaxFineAllowsCheckout reports whether the balance is still within the cap.
func (c *OrganizationCatalogue) MaxFineAllowsCheckout(org *Organization) bool {
	return org != nil && org.fineBalance <= c.maxFine
}

// IDs returns all organization ids in ascending order.
func (c *OrganizationCatalogue) IDs() []int {
	ids := c.items.Keys()
	sort.Ints(ids)
	return ids
}

func (c *OrganizationCatalogue) Get(id int) (*Organization, bool) {
	return c.items.Get(id)
}
