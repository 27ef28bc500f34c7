package library

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LendingService is the entry point for every circulation operation. It owns
// the material, user and organization catalogues and evaluates each request
// completely before mutating anything, so a rejected request leaves no trace.
//
// All methods are safe for concurrent use; one mutex serialises them.
type LendingService struct {
	mu sync.Mutex

	types         *TypeRegistry
	materials     *MaterialCatalogue
	users         *UserCatalogue
	organizations *OrganizationCatalogue

	now     Clock
	logger  *slog.Logger
	journal Journal
}

// Option configures a LendingService.
type Option func(*LendingService)

// WithClock replaces time.Now as the source of checkout and return times.
// A nil clock leaves time.Now in place.
func WithClock(now Clock) Option {
	return func(s *LendingService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *LendingService) {
		s.logger = logger
	}
}

// WithJournal records every accepted operation to j.
func WithJournal(j Journal) Option {
	return func(s *LendingService) {
		s.journal = j
	}
}

// NewLendingService validates cfg and seals its type registry; no material
// types can be added afterwards.
func NewLendingService(cfg Config, opts ...Option) (*LendingService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &LendingService{
		types:   cfg.Types,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		journal: nopJournal{},
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg.Types.Seal()
	s.materials = NewMaterialCatalogue(cfg.Types, s.now)
	s.users = NewUserCatalogue(cfg.MaxCheckoutLimit)
	s.organizations = NewOrganizationCatalogue(cfg.MaxOrganizationFine)
	return s, nil
}

// ------------------ Stocking and enrollment ------------------

// StockMaterial adds an available material of a registered type.
func (s *LendingService) StockMaterial(id int, typeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.materials.items.Has(id) {
		return s.reject("stock", fmt.Errorf("material %d: %w", id, ErrAlreadyExists))
	}
	if _, ok := s.types.Lookup(typeName); !ok {
		return s.reject("stock", fmt.Errorf("material type %q: %w", typeName, ErrNotFound))
	}
	s.materials.Stock(id, typeName)

	s.logger.Info("material stocked", "material_id", id, "type", typeName)
	s.record(Event{Kind: EventMaterialStocked, MaterialID: id, MaterialType: typeName})
	return nil
}

// AddOrganization creates an empty organization ahead of enrolling members.
func (s *LendingService) AddOrganization(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validName(name); err != nil {
		return s.reject("add organization", err)
	}
	if _, ok := s.organizations.Find(name); ok {
		return s.reject("add organization", fmt.Errorf("organization %q: %w", name, ErrAlreadyExists))
	}
	org := s.organizations.GetOrCreate(name)

	s.logger.Info("organization added", "organization", name, "organization_id", org.ID())
	s.record(Event{Kind: EventOrganizationAdded, Organization: name})
	return nil
}

// EnrollUser enrolls a user, creating the organization on first use and
// recording the membership that makes the organization liable for fines.
func (s *LendingService) EnrollUser(id int, organizationName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users.items.Has(id) {
		return s.reject("enroll", fmt.Errorf("user %d: %w", id, ErrAlreadyExists))
	}
	if err := validName(organizationName); err != nil {
		return s.reject("enroll", err)
	}

	_, existed := s.organizations.Find(organizationName)
	org := s.organizations.GetOrCreate(organizationName)
	s.users.Enroll(id, organizationName)
	s.organizations.AddMember(organizationName, id)

	if !existed {
		s.record(Event{Kind: EventOrganizationAdded, Organization: organizationName})
	}
	s.logger.Info("user enrolled", "user_id", id, "organization", organizationName, "organization_id", org.ID())
	s.record(Event{Kind: EventUserEnrolled, UserID: id, Organization: organizationName})
	return nil
}

// ------------------ Circulation ------------------

// Checkout lends a material to a user. The user must be under the checkout
// limit, the user's organization within the fine cap, the material available
// and none of the user's current items overdue. Either the user's held list
// and the material both change, or neither does.
func (s *LendingService) Checkout(userID, materialID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users.Get(userID)
	if !ok {
		return s.reject("checkout", fmt.Errorf("user %d: %w", userID, ErrNotFound))
	}
	if !s.materials.items.Has(materialID) {
		return s.reject("checkout", fmt.Errorf("material %d: %w", materialID, ErrNotFound))
	}
	if !s.users.CanCheckout(userID) {
		return s.reject("checkout", fmt.Errorf("%w: user %d already holds %d items",
			ErrPolicyViolation, userID, s.users.MaxCheckout()))
	}
	org, ok := s.organizations.FindByMember(userID)
	if !ok {
		return s.reject("checkout", fmt.Errorf("organization of user %d: %w", userID, ErrNotFound))
	}
	if !s.organizations.MaxFineAllowsCheckout(org) {
		return s.reject("checkout", fmt.Errorf("%w: organization %q owes %d, above the cap of %d",
			ErrPolicyViolation, org.Name(), org.FineBalance(), s.organizations.MaxFine()))
	}
	held := user.Held()
	if !s.materials.ValidateCheckoutEligibility(materialID, held) {
		if !s.materials.IsAvailable(materialID) {
			return s.reject("checkout", fmt.Errorf("%w: material %d is checked out", ErrPolicyViolation, materialID))
		}
		return s.reject("checkout", fmt.Errorf("%w: user %d holds overdue material", ErrPolicyViolation, userID))
	}

	if !s.users.AddHeld(userID, materialID) {
		return s.reject("checkout", fmt.Errorf("%w: user %d cannot take material %d", ErrPolicyViolation, userID, materialID))
	}
	s.materials.Checkout(materialID)

	s.logger.Info("material checked out", "user_id", userID, "material_id", materialID, "organization", org.Name())
	s.record(Event{Kind: EventMaterialCheckedOut, UserID: userID, MaterialID: materialID, Organization: org.Name()})
	return nil
}

// ReturnMaterial takes a material back from the user holding it. Any overdue
// cost is charged to the user's organization and returned to the caller.
func (s *LendingService) ReturnMaterial(userID, materialID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users.Get(userID)
	if !ok {
		return 0, s.reject("return", fmt.Errorf("user %d: %w", userID, ErrNotFound))
	}
	if !s.materials.items.Has(materialID) {
		return 0, s.reject("return", fmt.Errorf("material %d: %w", materialID, ErrNotFound))
	}
	if !user.Holds(materialID) {
		return 0, s.reject("return", fmt.Errorf("user %d, material %d: %w", userID, materialID, ErrNotHeld))
	}
	org, ok := s.organizations.FindByMember(userID)
	if !ok {
		return 0, s.reject("return", fmt.Errorf("organization of user %d: %w", userID, ErrNotFound))
	}

	s.users.RemoveHeld(userID, materialID)
	cost := s.materials.Return(materialID)

	s.logger.Info("material returned", "user_id", userID, "material_id", materialID, "overdue_cost", cost)
	s.record(Event{Kind: EventMaterialReturned, UserID: userID, MaterialID: materialID, Organization: org.Name(), Amount: cost})

	if cost > 0 && s.organizations.AccrueFine(org, cost) {
		s.logger.Info("fine accrued", "organization", org.Name(), "amount", cost, "balance", org.FineBalance())
		s.record(Event{Kind: EventFineAccrued, UserID: userID, MaterialID: materialID, Organization: org.Name(), Amount: cost})
	}
	return cost, nil
}

// PayFee settles part or all of an organization's balance. Overpayment and
// non-positive amounts are refused.
func (s *LendingService) PayFee(organizationName string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.organizations.Find(organizationName)
	if !ok {
		return s.reject("pay fee", fmt.Errorf("organization %q: %w", organizationName, ErrNotFound))
	}
	if amount <= 0 {
		return s.reject("pay fee", fmt.Errorf("%w: amount %d must be positive", ErrPolicyViolation, amount))
	}
	if amount > org.FineBalance() {
		return s.reject("pay fee", fmt.Errorf("%w: amount %d exceeds balance %d of %q",
			ErrPolicyViolation, amount, org.FineBalance(), organizationName))
	}
	s.organizations.PayFine(org, amount)

	s.logger.Info("fine paid", "organization", organizationName, "amount", amount, "balance", org.FineBalance())
	s.record(Event{Kind: EventFinePaid, Organization: organizationName, Amount: amount})
	return nil
}

// FineBalance reports an organization's outstanding fines.
func (s *LendingService) FineBalance(organizationName string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.organizations.Find(organizationName)
	if !ok {
		return 0, false
	}
	return org.FineBalance(), true
}

// ------------------ Snapshots ------------------

func (s *LendingService) Types() []MaterialType {
	return s.types.Types()
}

func (s *LendingService) Material(id int) (MaterialView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materialView(id)
}

func (s *LendingService) User(id int) (UserView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userView(id)
}

func (s *LendingService) Organization(name string) (OrganizationView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.organizations.Find(name)
	if !ok {
		return OrganizationView{}, false
	}
	return organizationView(org), true
}

// Materials lists every material ordered by id.
func (s *LendingService) Materials() []MaterialView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materialViews()
}

// Users lists every user ordered by id.
func (s *LendingService) Users() []UserView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userViews()
}

// Organizations lists every organization ordered by id.
func (s *LendingService) Organizations() []OrganizationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.organizationViews()
}

// Snapshot captures the whole circulation state at one instant.
func (s *LendingService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Types:         s.types.Types(),
		Materials:     s.materialViews(),
		Users:         s.userViews(),
		Organizations: s.organizationViews(),
	}
}

func (s *LendingService) materialViews() []MaterialView {
	ids := s.materials.IDs()
	out := make([]MaterialView, 0, len(ids))
	for _, id := range ids {
		v, _ := s.materialView(id)
		out = append(out, v)
	}
	return out
}

func (s *LendingService) userViews() []UserView {
	ids := s.users.IDs()
	out := make([]UserView, 0, len(ids))
	for _, id := range ids {
		v, _ := s.userView(id)
		out = append(out, v)
	}
	return out
}

func (s *LendingService) organizationViews() []OrganizationView {
	ids := s.organizations.IDs()
	out := make([]OrganizationView, 0, len(ids))
	for _, id := range ids {
		org, _ := s.organizations.Get(id)
		out = append(out, organizationView(org))
	}
	return out
}

func (s *LendingService) materialView(id int) (MaterialView, bool) {
	m, ok := s.materials.Get(id)
	if !ok {
		return MaterialView{}, false
	}
	return MaterialView{
		ID:             m.ID(),
		Type:           m.Type().Name,
		Available:      m.Available(),
		DaysCheckedOut: s.materials.DaysCheckedOut(id),
		Overdue:        s.materials.IsOverdue(id),
		OverdueCost:    s.materials.OverdueCost(id),
	}, true
}

func (s *LendingService) userView(id int) (UserView, bool) {
	u, ok := s.users.Get(id)
	if !ok {
		return UserView{}, false
	}
	return UserView{ID: u.ID(), Organization: u.Organization(), Held: u.Held()}, true
}

func organizationView(org *Organization) OrganizationView {
	return OrganizationView{
		ID:          org.ID(),
		Name:        org.Name(),
		FineBalance: org.FineBalance(),
		Members:     org.Members(),
	}
}

// ------------------ Helpers ------------------

func (s *LendingService) reject(op string, err error) error {
	s.logger.Debug("request rejected", "op", op, "reason", err.Error())
	return err
}

func (s *LendingService) record(e Event) {
	e.OccurredAt = s.now()
	if err := s.journal.Record(e); err != nil {
		s.logger.Warn("journal write failed", "kind", string(e.Kind), "error", err)
	}
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("organization name is empty: %w", ErrInvalidArgument)
	}
	return nil
}
