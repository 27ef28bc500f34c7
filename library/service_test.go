package library

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	goofusOrg  = "Twilight Town Disciplinary Committee"
	gallantOrg = "Frontier Militia"
)

func TestNewLendingServiceValidatesConfig(t *testing.T) {
	_, err := NewLendingService(Config{MaxCheckoutLimit: 0, MaxOrganizationFine: 100, Types: NewTypeRegistry()})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewLendingService(Config{MaxCheckoutLimit: 5, MaxOrganizationFine: -1, Types: NewTypeRegistry()})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewLendingService(Config{MaxCheckoutLimit: 5, MaxOrganizationFine: 100})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewLendingServiceSealsRegistry(t *testing.T) {
	cfg := DefaultConfig()
	_, err := NewLendingService(cfg)
	require.NoError(t, err)

	assert.ErrorIs(t, cfg.Types.Register("Map", 1, 1), ErrRegistrySealed)
}

func TestStockMaterial(t *testing.T) {
	svc := newService(t, newFakeClock())

	require.NoError(t, svc.StockMaterial(1, "DVD"))
	assert.ErrorIs(t, svc.StockMaterial(1, "Book"), ErrAlreadyExists)
	assert.ErrorIs(t, svc.StockMaterial(2, "Vinyl"), ErrNotFound)

	m, ok := svc.Material(1)
	require.True(t, ok)
	assert.Equal(t, MaterialView{ID: 1, Type: "DVD", Available: true, DaysCheckedOut: -1}, m)
	_, ok = svc.Material(2)
	assert.False(t, ok)
}

func TestEnrollUserTwiceLeavesStateUnchanged(t *testing.T) {
	svc := newService(t, newFakeClock())

	require.NoError(t, svc.EnrollUser(7, "X"))
	before := svc.Snapshot()

	err := svc.EnrollUser(7, "X")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, before, svc.Snapshot())

	err = svc.EnrollUser(7, "Y")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, ok := svc.Organization("Y")
	assert.False(t, ok, "a rejected enrollment must not create its organization")
}

func TestEnrollUserCreatesOrganizationOnce(t *testing.T) {
	svc := newService(t, newFakeClock())

	require.NoError(t, svc.EnrollUser(1, "X"))
	require.NoError(t, svc.EnrollUser(2, "X"))
	require.NoError(t, svc.EnrollUser(3, "Y"))

	orgs := svc.Organizations()
	require.Len(t, orgs, 2)
	assert.Equal(t, OrganizationView{ID: 0, Name: "X", FineBalance: 0, Members: []int{1, 2}}, orgs[0])
	assert.Equal(t, OrganizationView{ID: 1, Name: "Y", FineBalance: 0, Members: []int{3}}, orgs[1])

	assert.ErrorIs(t, svc.EnrollUser(4, " "), ErrInvalidArgument)
}

func TestAddOrganization(t *testing.T) {
	svc := newService(t, newFakeClock())

	require.NoError(t, svc.AddOrganization("X"))
	assert.ErrorIs(t, svc.AddOrganization("X"), ErrAlreadyExists)
	assert.ErrorIs(t, svc.AddOrganization(""), ErrInvalidArgument)

	require.NoError(t, svc.EnrollUser(1, "X"))
	org, ok := svc.Organization("X")
	require.True(t, ok)
	assert.Equal(t, []int{1}, org.Members)
}

func TestCheckoutReturnRoundTrip(t *testing.T) {
	clock := newFakeClock()
	svc := newService(t, clock)
	require.NoError(t, svc.StockMaterial(1, "DVD"))
	require.NoError(t, svc.EnrollUser(7, "X"))

	require.NoError(t, svc.Checkout(7, 1))
	m, _ := svc.Material(1)
	assert.False(t, m.Available)
	assert.Equal(t, 0, m.DaysCheckedOut)
	u, _ := svc.User(7)
	assert.Equal(t, []int{1}, u.Held)

	clock.AdvanceDays(2)
	cost, err := svc.ReturnMaterial(7, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, cost)

	m, _ = svc.Material(1)
	assert.Equal(t, MaterialView{ID: 1, Type: "DVD", Available: true, DaysCheckedOut: -1}, m)
	u, _ = svc.User(7)
	assert.Empty(t, u.Held)
	balance, _ := svc.FineBalance("X")
	assert.Equal(t, 0, balance)
}

func TestCheckoutRejections(t *testing.T) {
	svc := newService(t, newFakeClock())
	require.NoError(t, svc.StockMaterial(1, "Book"))
	require.NoError(t, svc.EnrollUser(7, "X"))
	require.NoError(t, svc.EnrollUser(8, "X"))

	assert.ErrorIs(t, svc.Checkout(99, 1), ErrNotFound)
	assert.ErrorIs(t, svc.Checkout(7, 99), ErrNotFound)

	require.NoError(t, svc.Checkout(7, 1))
	err := svc.Checkout(8, 1)
	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.ErrorContains(t, err, "checked out")

	u, _ := svc.User(8)
	assert.Empty(t, u.Held, "rejected checkout must not touch the user")
}

func TestCheckoutLimit(t *testing.T) {
	svc := newService(t, newFakeClock())
	require.NoError(t, svc.EnrollUser(1, "X"))
	for id := 1; id <= DefaultMaxCheckoutLimit+1; id++ {
		require.NoError(t, svc.StockMaterial(id, "Book"))
	}

	for id := 1; id <= DefaultMaxCheckoutLimit; id++ {
		require.NoError(t, svc.Checkout(1, id))
	}
	err := svc.Checkout(1, DefaultMaxCheckoutLimit+1)
	assert.ErrorIs(t, err, ErrPolicyViolation)

	u, _ := svc.User(1)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, u.Held)
	m, _ := svc.Material(DefaultMaxCheckoutLimit + 1)
	assert.True(t, m.Available, "rejected checkout must not touch the material")
}

func TestCheckoutBlockedWhileAnyHeldItemOverdue(t *testing.T) {
	clock := newFakeClock()
	svc := newService(t, clock)
	require.NoError(t, svc.EnrollUser(1, "X"))
	require.NoError(t, svc.StockMaterial(1, "Journal"))
	require.NoError(t, svc.StockMaterial(2, "Book"))
	require.NoError(t, svc.StockMaterial(3, "DVD"))

	require.NoError(t, svc.Checkout(1, 1))
	require.NoError(t, svc.Checkout(1, 2))
	clock.AdvanceDays(15)

	err := svc.Checkout(1, 3)
	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.ErrorContains(t, err, "overdue")

	_, err = svc.ReturnMaterial(1, 1)
	require.NoError(t, err)
	assert.NoError(t, svc.Checkout(1, 3), "the Book is still within its own threshold")
}

func TestOverdueFineScenario(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.Types = NewTypeRegistry()
	require.NoError(t, cfg.Types.Register("DVD", 1, 5))
	svc, err := NewLendingService(cfg, WithClock(clock.Now))
	require.NoError(t, err)

	require.NoError(t, svc.StockMaterial(1, "DVD"))
	require.NoError(t, svc.EnrollUser(420, goofusOrg))
	require.NoError(t, svc.Checkout(420, 1))
	clock.AdvanceDays(150)

	cost, err := svc.ReturnMaterial(420, 1)
	require.NoError(t, err)
	assert.Equal(t, (150-7)*5, cost)
	balance, ok := svc.FineBalance(goofusOrg)
	require.True(t, ok)
	assert.Equal(t, 715, balance)

	assert.ErrorIs(t, svc.Checkout(420, 1), ErrPolicyViolation, "balance above the cap")

	require.NoError(t, svc.PayFee(goofusOrg, 700))
	balance, _ = svc.FineBalance(goofusOrg)
	assert.Equal(t, 15, balance)
	assert.NoError(t, svc.Checkout(420, 1))
}

func TestFineCapBoundary(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.Types = NewTypeRegistry()
	require.NoError(t, cfg.Types.Register("Pamphlet", 0, 1))
	svc, err := NewLendingService(cfg, WithClock(clock.Now))
	require.NoError(t, err)

	require.NoError(t, svc.EnrollUser(1, "X"))
	require.NoError(t, svc.StockMaterial(1, "Pamphlet"))
	require.NoError(t, svc.StockMaterial(2, "Pamphlet"))

	require.NoError(t, svc.Checkout(1, 1))
	clock.AdvanceDays(DefaultMaxOrganizationFine + 1)
	cost, err := svc.ReturnMaterial(1, 1)
	require.NoError(t, err)
	require.Equal(t, DefaultMaxOrganizationFine+1, cost)

	assert.ErrorIs(t, svc.Checkout(1, 2), ErrPolicyViolation, "cap+1 blocks")

	require.NoError(t, svc.PayFee("X", 1))
	balance, _ := svc.FineBalance("X")
	require.Equal(t, DefaultMaxOrganizationFine, balance)
	assert.NoError(t, svc.Checkout(1, 2), "balance equal to the cap allows checkout")
}

func TestFinesAreSharedAcrossMembers(t *testing.T) {
	clock := newFakeClock()
	svc := newService(t, clock)
	require.NoError(t, svc.EnrollUser(1, "X"))
	require.NoError(t, svc.EnrollUser(2, "X"))
	require.NoError(t, svc.EnrollUser(3, "Y"))
	for id := 1; id <= 3; id++ {
		require.NoError(t, svc.StockMaterial(id, "DVD"))
	}

	require.NoError(t, svc.Checkout(1, 1))
	clock.AdvanceDays(40)
	_, err := svc.ReturnMaterial(1, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Checkout(2, 2), ErrPolicyViolation, "B pays for A's lateness")
	assert.NoError(t, svc.Checkout(3, 3), "other organizations are unaffected")
}

func TestReturnMaterialRejections(t *testing.T) {
	svc := newService(t, newFakeClock())
	require.NoError(t, svc.StockMaterial(1, "Book"))
	require.NoError(t, svc.StockMaterial(2, "Book"))
	require.NoError(t, svc.EnrollUser(7, gallantOrg))
	require.NoError(t, svc.EnrollUser(420, goofusOrg))
	require.NoError(t, svc.Checkout(7, 2))

	_, err := svc.ReturnMaterial(99, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ReturnMaterial(7, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ReturnMaterial(420, 2)
	assert.ErrorIs(t, err, ErrNotHeld)
	_, err = svc.ReturnMaterial(7, 1)
	assert.ErrorIs(t, err, ErrNotHeld)

	m, _ := svc.Material(2)
	assert.False(t, m.Available, "rejected return must not touch the material")
}

func TestPayFee(t *testing.T) {
	clock := newFakeClock()
	svc := newService(t, clock)
	require.NoError(t, svc.EnrollUser(1, "X"))
	require.NoError(t, svc.StockMaterial(1, "DVD"))
	require.NoError(t, svc.Checkout(1, 1))
	clock.AdvanceDays(17)
	_, err := svc.ReturnMaterial(1, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.PayFee("Nobody", 5), ErrNotFound)
	assert.ErrorIs(t, svc.PayFee("X", 0), ErrPolicyViolation)
	assert.ErrorIs(t, svc.PayFee("X", -5), ErrPolicyViolation)
	assert.ErrorIs(t, svc.PayFee("X", 51), ErrPolicyViolation)

	balance, _ := svc.FineBalance("X")
	require.Equal(t, 50, balance)
	require.NoError(t, svc.PayFee("X", 20))
	balance, _ = svc.FineBalance("X")
	assert.Equal(t, 30, balance)

	_, ok := svc.FineBalance("Nobody")
	assert.False(t, ok)
}

func TestJournalReceivesAcceptedOperations(t *testing.T) {
	clock := newFakeClock()
	journal := &recordingJournal{}
	svc := newService(t, clock, WithJournal(journal))

	require.NoError(t, svc.StockMaterial(1, "DVD"))
	require.NoError(t, svc.EnrollUser(7, "X"))
	require.NoError(t, svc.Checkout(7, 1))
	assert.Error(t, svc.Checkout(7, 1))
	clock.AdvanceDays(10)
	_, err := svc.ReturnMaterial(7, 1)
	require.NoError(t, err)
	require.NoError(t, svc.PayFee("X", 15))

	assert.Equal(t, []EventKind{
		EventMaterialStocked,
		EventOrganizationAdded,
		EventUserEnrolled,
		EventMaterialCheckedOut,
		EventMaterialReturned,
		EventFineAccrued,
		EventFinePaid,
	}, journal.kinds())

	accrued := journal.events[5]
	assert.Equal(t, 15, accrued.Amount)
	assert.Equal(t, "X", accrued.Organization)
	assert.Equal(t, clock.Now(), accrued.OccurredAt)
}

func TestJournalFailureDoesNotFailOperation(t *testing.T) {
	journal := &recordingJournal{err: errors.New("disk full")}
	svc := newService(t, newFakeClock(), WithJournal(journal))

	require.NoError(t, svc.StockMaterial(1, "DVD"))
	_, ok := svc.Material(1)
	assert.True(t, ok)
}

func TestSnapshotOrdersById(t *testing.T) {
	svc := newService(t, newFakeClock())
	require.NoError(t, svc.StockMaterial(3, "Book"))
	require.NoError(t, svc.StockMaterial(1, "DVD"))
	require.NoError(t, svc.EnrollUser(20, "B"))
	require.NoError(t, svc.EnrollUser(10, "A"))

	snap := svc.Snapshot()
	assert.Len(t, snap.Types, 3)
	require.Len(t, snap.Materials, 2)
	assert.Equal(t, 1, snap.Materials[0].ID)
	assert.Equal(t, 3, snap.Materials[1].ID)
	require.Len(t, snap.Users, 2)
	assert.Equal(t, 10, snap.Users[0].ID)
	require.Len(t, snap.Organizations, 2)
	assert.Equal(t, "B", snap.Organizations[0].Name, "organization ids follow creation order")
}

func TestWithNilClockFallsBackToTimeNow(t *testing.T) {
	svc, err := NewLendingService(DefaultConfig(), WithClock(nil))
	require.NoError(t, err)

	require.NoError(t, svc.StockMaterial(1, "DVD"))
	require.NoError(t, svc.EnrollUser(7, goofusOrg))
	require.NoError(t, svc.Checkout(7, 1))

	m, ok := svc.Material(1)
	require.True(t, ok)
	assert.False(t, m.Available)
	assert.Equal(t, 0, m.DaysCheckedOut)
}

func TestEnrollUserRejectsBlankOrganization(t *testing.T) {
	journal := &recordingJournal{}
	svc := newService(t, newFakeClock(), WithJournal(journal))

	for _, name := range []string{"", "   ", "\t"} {
		assert.ErrorIs(t, svc.EnrollUser(1, name), ErrInvalidArgument)
	}
	_, ok := svc.User(1)
	assert.False(t, ok)
	assert.Empty(t, svc.Organizations())
	assert.Empty(t, journal.events)
}
